package wire

import (
	"encoding/binary"

	"github.com/systerel/s2opc-sc/pkg/scerr"
)

// AsymmetricSecurityHeader is carried on OPN chunks only:
// securityPolicyUri: String || senderCertificate: ByteString ||
// receiverCertificateThumbprint: ByteString.
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI             string
	SenderCertificate              []byte
	ReceiverCertificateThumbprint []byte
}

// Size returns the encoded size of h.
func (h *AsymmetricSecurityHeader) Size() int {
	return uaStringSize(h.SecurityPolicyURI) + uaByteStringSize(h.SenderCertificate) + uaByteStringSize(h.ReceiverCertificateThumbprint)
}

// Encode serialises h into a freshly allocated buffer.
func (h *AsymmetricSecurityHeader) Encode() []byte {
	buf := make([]byte, h.Size())
	h.EncodeTo(buf)
	return buf
}

// EncodeTo serialises h into buf, returning the number of bytes written.
func (h *AsymmetricSecurityHeader) EncodeTo(buf []byte) int {
	off := encodeUAString(buf, h.SecurityPolicyURI)
	off += encodeUAByteString(buf[off:], h.SenderCertificate)
	off += encodeUAByteString(buf[off:], h.ReceiverCertificateThumbprint)
	return off
}

// DecodeAsymmetricSecurityHeader parses an AsymmetricSecurityHeader from
// the front of data, returning the number of bytes consumed.
func DecodeAsymmetricSecurityHeader(data []byte) (*AsymmetricSecurityHeader, int, error) {
	uri, n1, err := decodeUAString(data)
	if err != nil {
		return nil, 0, err
	}
	cert, n2, err := decodeUAByteString(data[n1:])
	if err != nil {
		return nil, 0, err
	}
	thumb, n3, err := decodeUAByteString(data[n1+n2:])
	if err != nil {
		return nil, 0, err
	}
	return &AsymmetricSecurityHeader{
		SecurityPolicyURI:             uri,
		SenderCertificate:             cert,
		ReceiverCertificateThumbprint: thumb,
	}, n1 + n2 + n3, nil
}

// SymmetricSecurityHeaderSize is the fixed size of the symmetric security
// header carried on MSG/CLO chunks: tokenId: u32.
const SymmetricSecurityHeaderSize = 4

// SymmetricSecurityHeader identifies which SecurityToken's key sets decrypt
// a chunk.
type SymmetricSecurityHeader struct {
	TokenID uint32
}

func (h *SymmetricSecurityHeader) Size() int { return SymmetricSecurityHeaderSize }

func (h *SymmetricSecurityHeader) Encode() []byte {
	buf := make([]byte, SymmetricSecurityHeaderSize)
	h.EncodeTo(buf)
	return buf
}

func (h *SymmetricSecurityHeader) EncodeTo(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], h.TokenID)
	return SymmetricSecurityHeaderSize
}

func DecodeSymmetricSecurityHeader(data []byte) (*SymmetricSecurityHeader, int, error) {
	if len(data) < SymmetricSecurityHeaderSize {
		return nil, 0, scerr.Wrap(scerr.KindEncodingError, "symmetric security header truncated", scerr.ErrShortBuffer)
	}
	return &SymmetricSecurityHeader{
		TokenID: binary.LittleEndian.Uint32(data[0:4]),
	}, SymmetricSecurityHeaderSize, nil
}

// SequenceHeaderSize is the fixed size of the sequence header:
// sequenceNumber: u32 || requestId: u32.
const SequenceHeaderSize = 4 + 4

// SequenceHeader correlates a chunk with its logical message and position
// in the replay-protected sequence stream.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

func (h *SequenceHeader) Size() int { return SequenceHeaderSize }

func (h *SequenceHeader) Encode() []byte {
	buf := make([]byte, SequenceHeaderSize)
	h.EncodeTo(buf)
	return buf
}

func (h *SequenceHeader) EncodeTo(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], h.SequenceNumber)
	binary.LittleEndian.PutUint32(buf[4:8], h.RequestID)
	return SequenceHeaderSize
}

func DecodeSequenceHeader(data []byte) (*SequenceHeader, int, error) {
	if len(data) < SequenceHeaderSize {
		return nil, 0, scerr.Wrap(scerr.KindEncodingError, "sequence header truncated", scerr.ErrShortBuffer)
	}
	return &SequenceHeader{
		SequenceNumber: binary.LittleEndian.Uint32(data[0:4]),
		RequestID:      binary.LittleEndian.Uint32(data[4:8]),
	}, SequenceHeaderSize, nil
}

// uaStringSize/uaByteStringSize/encodeUAString/... implement the OPC UA
// binary String and ByteString encodings: a u32 length prefix (0xFFFFFFFF
// for null) followed by that many raw bytes. Both wire types share the
// same layout; String additionally assumes UTF-8 content.

func uaStringSize(s string) int      { return 4 + len(s) }
func uaByteStringSize(b []byte) int  { return 4 + len(b) }

func encodeUAString(buf []byte, s string) int {
	return encodeUAByteString(buf, []byte(s))
}

func encodeUAByteString(buf []byte, b []byte) int {
	if b == nil {
		binary.LittleEndian.PutUint32(buf[0:4], 0xFFFFFFFF)
		return 4
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	copy(buf[4:], b)
	return 4 + len(b)
}

func decodeUAString(data []byte) (string, int, error) {
	b, n, err := decodeUAByteString(data)
	if err != nil {
		return "", 0, err
	}
	return string(b), n, nil
}

func decodeUAByteString(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, scerr.Wrap(scerr.KindEncodingError, "byte string length truncated", scerr.ErrShortBuffer)
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	if length == 0xFFFFFFFF {
		return nil, 4, nil
	}
	if uint64(4+length) > uint64(len(data)) {
		return nil, 0, scerr.Wrap(scerr.KindEncodingError, "byte string content truncated", scerr.ErrShortBuffer)
	}
	out := make([]byte, length)
	copy(out, data[4:4+length])
	return out, 4 + int(length), nil
}
