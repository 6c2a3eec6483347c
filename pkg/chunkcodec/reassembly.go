package chunkcodec

import (
	"github.com/systerel/s2opc-sc/pkg/msgbuffer"
)

// ReassemblyTable tracks in-progress inbound message reassembly, keyed by
// requestId, per §4.4's "Multiple pipelined requests share one reception
// buffer... key an indexed table by requestId with a small fixed
// capacity; overflow ⇒ TooManyChunks." It intentionally carries no mutex:
// it is owned by exactly one connection's single-threaded receive path,
// per §5's cooperative concurrency model.
type ReassemblyTable struct {
	maxChunksPerMessage int
	inProgress          map[uint32]*msgbuffer.ReassemblyBuffer
}

// NewReassemblyTable returns an empty table bounding each in-progress
// message to maxChunksPerMessage fragments.
func NewReassemblyTable(maxChunksPerMessage int) *ReassemblyTable {
	return &ReassemblyTable{
		maxChunksPerMessage: maxChunksPerMessage,
		inProgress:          make(map[uint32]*msgbuffer.ReassemblyBuffer),
	}
}

// Append adds dc's body fragment to the in-progress buffer for its
// requestId, starting a new one if needed. It implements
// check_prec_chunk: if a different requestId was already in progress with
// no prior entry under dc.RequestID, the orphaned previous assembly is
// discarded (the earlier message was implicitly aborted) and its requestId
// is returned as orphanRequestID so the caller can surface an abort event.
func (t *ReassemblyTable) Append(dc *DecodedChunk) (orphanRequestID uint32, hasOrphan bool, err error) {
	buf, ok := t.inProgress[dc.RequestID]
	if !ok {
		if len(t.inProgress) > 0 {
			for id := range t.inProgress {
				orphanRequestID = id
				hasOrphan = true
				delete(t.inProgress, id)
				break
			}
		}
		buf = msgbuffer.NewReassemblyBuffer(dc.RequestID, t.maxChunksPerMessage)
		t.inProgress[dc.RequestID] = buf
	}

	if err := buf.Append(dc.Body); err != nil {
		delete(t.inProgress, dc.RequestID)
		return orphanRequestID, hasOrphan, err
	}
	return orphanRequestID, hasOrphan, nil
}

// TakeFinal removes and returns the fully reassembled body for requestID,
// called once the Final chunk has been appended.
func (t *ReassemblyTable) TakeFinal(requestID uint32) []byte {
	buf, ok := t.inProgress[requestID]
	if !ok {
		return nil
	}
	delete(t.inProgress, requestID)
	return buf.Bytes()
}

// Abort discards the in-progress assembly for requestID, per an Abort
// chunk's "discard the buffer for that requestId".
func (t *ReassemblyTable) Abort(requestID uint32) {
	delete(t.inProgress, requestID)
}
