// Package wire encodes and decodes the OPC UA TCP-UA message header, the
// asymmetric and symmetric security headers, and the sequence header, per
// §6.1's field-level wire format. All multi-byte fields are little-endian.
package wire

import (
	"encoding/binary"

	"github.com/systerel/s2opc-sc/pkg/scerr"
)

// MsgType identifies a TCP-UA chunk's message type, the first three bytes
// of every chunk.
type MsgType [3]byte

var (
	MsgTypeHello  = MsgType{'H', 'E', 'L'}
	MsgTypeAck    = MsgType{'A', 'C', 'K'}
	MsgTypeError  = MsgType{'E', 'R', 'R'}
	MsgTypeOpen   = MsgType{'O', 'P', 'N'}
	MsgTypeMsg    = MsgType{'M', 'S', 'G'}
	MsgTypeClose  = MsgType{'C', 'L', 'O'}
)

func (t MsgType) String() string { return string(t[:]) }

// ChunkMarker is the fourth byte of the message header: isFinal.
type ChunkMarker byte

const (
	ChunkIntermediate ChunkMarker = 'C'
	ChunkFinal        ChunkMarker = 'F'
	ChunkAbort        ChunkMarker = 'A'
)

// MessageHeaderSize is the fixed size of the message prefix:
// msgType[3] || isFinal[1] || length:u32 || secureChannelId:u32.
const MessageHeaderSize = 3 + 1 + 4 + 4

// MessageHeader is the prefix carried by every TCP-UA chunk.
type MessageHeader struct {
	MsgType          MsgType
	IsFinal          ChunkMarker
	Length           uint32 // total chunk length including this header
	SecureChannelID  uint32
}

// Size returns MessageHeaderSize; kept as a method for symmetry with the
// Size/Encode/EncodeTo/Decode quadruplet used throughout this package.
func (h *MessageHeader) Size() int { return MessageHeaderSize }

// Encode serialises h into a freshly allocated buffer.
func (h *MessageHeader) Encode() []byte {
	buf := make([]byte, MessageHeaderSize)
	h.EncodeTo(buf)
	return buf
}

// EncodeTo serialises h into buf, which must be at least MessageHeaderSize
// bytes, returning the number of bytes written.
func (h *MessageHeader) EncodeTo(buf []byte) int {
	copy(buf[0:3], h.MsgType[:])
	buf[3] = byte(h.IsFinal)
	binary.LittleEndian.PutUint32(buf[4:8], h.Length)
	binary.LittleEndian.PutUint32(buf[8:12], h.SecureChannelID)
	return MessageHeaderSize
}

// Decode parses a MessageHeader from the front of data, returning the
// number of bytes consumed.
func Decode(data []byte) (*MessageHeader, int, error) {
	if len(data) < MessageHeaderSize {
		return nil, 0, scerr.Wrap(scerr.KindEncodingError, "message header truncated", scerr.ErrShortBuffer)
	}
	h := &MessageHeader{
		IsFinal:         ChunkMarker(data[3]),
		Length:          binary.LittleEndian.Uint32(data[4:8]),
		SecureChannelID: binary.LittleEndian.Uint32(data[8:12]),
	}
	copy(h.MsgType[:], data[0:3])
	return h, MessageHeaderSize, nil
}

// PatchLength overwrites the length field in an already-encoded header in
// place, the "length:u32 placeholder" §4.3 step 2 describes: the chunk's
// true length is only known once the chunk is fully built.
func PatchLength(buf []byte, length uint32) {
	binary.LittleEndian.PutUint32(buf[4:8], length)
}
