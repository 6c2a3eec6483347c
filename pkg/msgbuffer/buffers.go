package msgbuffer

// MsgBuffers holds the ordered chunks of one logical outgoing or incoming
// message, bounded by a configured maximum chunk count, per §3's
// "MsgBuffers holds a configured maximum number of chunks for one logical
// message; each chunk has its own raw buffer, payload range, sequence
// number, and final marker."
type MsgBuffers struct {
	chunkSize int
	maxChunks int
	chunks    []*Chunk
}

// Chunk pairs one MsgBuffer with the sequencing metadata the chunk codec
// assigns it.
type Chunk struct {
	Buf            *MsgBuffer
	SequenceNumber uint32
	Final          bool
	Abort          bool
}

// NewMsgBuffers allocates an empty chunk collection for a message whose
// chunks are each up to chunkSize bytes, capped at maxChunks chunks.
func NewMsgBuffers(chunkSize, maxChunks int) *MsgBuffers {
	return &MsgBuffers{chunkSize: chunkSize, maxChunks: maxChunks}
}

// ChunkSize returns the fixed per-chunk buffer size.
func (m *MsgBuffers) ChunkSize() int { return m.chunkSize }

// Len returns the number of chunks currently held.
func (m *MsgBuffers) Len() int { return len(m.chunks) }

// At returns the chunk at index i.
func (m *MsgBuffers) At(i int) *Chunk { return m.chunks[i] }

// All returns the chunks in order.
func (m *MsgBuffers) All() []*Chunk { return m.chunks }

// NewChunk allocates and appends a new chunk buffer, failing with
// ErrTooManyChunks if maxChunks would be exceeded.
func (m *MsgBuffers) NewChunk(sequenceNumber uint32) (*Chunk, error) {
	if len(m.chunks) >= m.maxChunks {
		return nil, ErrTooManyChunks
	}
	c := &Chunk{Buf: NewMsgBuffer(m.chunkSize), SequenceNumber: sequenceNumber}
	m.chunks = append(m.chunks, c)
	return c, nil
}

// MarkFinal marks the most recently appended chunk final.
func (m *MsgBuffers) MarkFinal() {
	if len(m.chunks) == 0 {
		return
	}
	m.chunks[len(m.chunks)-1].Final = true
}

// MarkAbort marks the most recently appended chunk an abort chunk.
func (m *MsgBuffers) MarkAbort() {
	if len(m.chunks) == 0 {
		return
	}
	m.chunks[len(m.chunks)-1].Abort = true
}

// Reset clears all chunks, releasing their buffers for reuse by the caller.
func (m *MsgBuffers) Reset() {
	m.chunks = nil
}

// ReassemblyBuffer accumulates body fragments from successive inbound
// chunks of one logical message, keyed externally by requestId. It has no
// fixed chunk boundary — the chunk codec simply appends each chunk's body
// fragment as it arrives.
type ReassemblyBuffer struct {
	RequestID uint32
	data      []byte
	chunks    int
	maxChunks int
}

// NewReassemblyBuffer starts reassembly for requestID, bounded to at most
// maxChunks appended fragments.
func NewReassemblyBuffer(requestID uint32, maxChunks int) *ReassemblyBuffer {
	return &ReassemblyBuffer{RequestID: requestID, maxChunks: maxChunks}
}

// Append adds a body fragment, returning ErrTooManyChunks once the
// configured maximum is exceeded (§4.4's "TooManyChunks").
func (r *ReassemblyBuffer) Append(fragment []byte) error {
	if r.chunks >= r.maxChunks {
		return ErrTooManyChunks
	}
	r.data = append(r.data, fragment...)
	r.chunks++
	return nil
}

// Bytes returns the reassembled body accumulated so far.
func (r *ReassemblyBuffer) Bytes() []byte { return r.data }

// Chunks returns the number of fragments appended so far.
func (r *ReassemblyBuffer) Chunks() int { return r.chunks }
