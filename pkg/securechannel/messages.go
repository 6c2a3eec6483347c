package securechannel

import (
	"encoding/binary"

	"github.com/systerel/s2opc-sc/pkg/encodeable"
	"github.com/systerel/s2opc-sc/pkg/scerr"
)

// Binary encoding ids for the handshake and close message bodies this
// package registers in an encodeable.Registry. §6.1 specifies the body as
// "the binary-encoded ExpandedNodeId of the message type followed by the
// message's fields"; this implementation represents that ExpandedNodeId as
// a single little-endian u32 numeric id rather than the full OPC UA
// NodeId encoding rules, since the core never exchanges these ids with a
// third-party stack that would expect the full form (see DESIGN.md).
const (
	binIDOpenRequest  uint32 = 446
	binIDOpenResponse uint32 = 449
	binIDCloseRequest uint32 = 452
	binIDRenewRequest uint32 = binIDOpenRequest
	binIDRenewResponse uint32 = binIDOpenResponse
)

// newHandshakeRegistry returns a registry carrying the handshake and close
// body types every Connection needs, independent of whatever service
// message types the caller's own EncodeableRegistry additionally serves.
func newHandshakeRegistry() *encodeable.Registry {
	r := encodeable.NewRegistry()
	r.Register(&encodeable.Type{BinaryEncodingID: binIDOpenRequest, Name: "OpenSecureChannelRequest", New: func() encodeable.Object { return &openRequestBody{} }})
	r.Register(&encodeable.Type{BinaryEncodingID: binIDOpenResponse, Name: "OpenSecureChannelResponse", New: func() encodeable.Object { return &openResponseBody{} }})
	r.Register(&encodeable.Type{BinaryEncodingID: binIDCloseRequest, Name: "CloseSecureChannelRequest", New: func() encodeable.Object { return &closeRequestBody{} }})
	return r
}

// encodeBody prefixes obj's encoded fields with its binaryEncodingId, the
// wire shape the chunk codec's Body field carries.
func encodeBody(typeID uint32, obj encodeable.Object) ([]byte, error) {
	fields, err := obj.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4+len(fields))
	binary.LittleEndian.PutUint32(out[0:4], typeID)
	copy(out[4:], fields)
	return out, nil
}

// decodeBody reads the leading binaryEncodingId, looks it up in registry,
// and decodes the remaining bytes into a fresh Object.
func decodeBody(registry *encodeable.Registry, data []byte) (uint32, encodeable.Object, error) {
	if len(data) < 4 {
		return 0, nil, scerr.Wrap(scerr.KindEncodingError, "message body shorter than type prefix", scerr.ErrShortBuffer)
	}
	typeID := binary.LittleEndian.Uint32(data[0:4])
	obj, err := registry.New(typeID)
	if err != nil {
		return typeID, nil, err
	}
	if _, err := obj.Decode(data[4:]); err != nil {
		return typeID, nil, err
	}
	return typeID, obj, nil
}

// openRequestBody is OpenSecureChannelRequest's payload: the client's
// nonce and requested token lifetime. RequestType/SecurityMode are not
// represented since a channel's mode is fixed for its lifetime by Config
// in this implementation rather than renegotiated.
type openRequestBody struct {
	ClientNonce       []byte
	RequestedLifetime uint32 // milliseconds
}

func (b *openRequestBody) Initialise() { *b = openRequestBody{} }
func (b *openRequestBody) Clear()      { zeroiseBytes(b.ClientNonce) }

func (b *openRequestBody) Encode() ([]byte, error) {
	out := make([]byte, 4+len(b.ClientNonce)+4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b.ClientNonce)))
	copy(out[4:], b.ClientNonce)
	binary.LittleEndian.PutUint32(out[4+len(b.ClientNonce):], b.RequestedLifetime)
	return out, nil
}

func (b *openRequestBody) Decode(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, scerr.Wrap(scerr.KindEncodingError, "open request truncated", scerr.ErrShortBuffer)
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	if len(data) < 4+n+4 {
		return 0, scerr.Wrap(scerr.KindEncodingError, "open request truncated", scerr.ErrShortBuffer)
	}
	b.ClientNonce = append([]byte(nil), data[4:4+n]...)
	b.RequestedLifetime = binary.LittleEndian.Uint32(data[4+n : 4+n+4])
	return 4 + n + 4, nil
}

// openResponseBody is OpenSecureChannelResponse's payload: the assigned
// channel/token identifiers, the revised lifetime, and the server's nonce.
type openResponseBody struct {
	SecureChannelID uint32
	TokenID         uint32
	RevisedLifetime uint32 // milliseconds
	ServerNonce     []byte
}

func (b *openResponseBody) Initialise() { *b = openResponseBody{} }
func (b *openResponseBody) Clear()      { zeroiseBytes(b.ServerNonce) }

func (b *openResponseBody) Encode() ([]byte, error) {
	out := make([]byte, 4+4+4+4+len(b.ServerNonce))
	binary.LittleEndian.PutUint32(out[0:4], b.SecureChannelID)
	binary.LittleEndian.PutUint32(out[4:8], b.TokenID)
	binary.LittleEndian.PutUint32(out[8:12], b.RevisedLifetime)
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(b.ServerNonce)))
	copy(out[16:], b.ServerNonce)
	return out, nil
}

func (b *openResponseBody) Decode(data []byte) (int, error) {
	if len(data) < 16 {
		return 0, scerr.Wrap(scerr.KindEncodingError, "open response truncated", scerr.ErrShortBuffer)
	}
	b.SecureChannelID = binary.LittleEndian.Uint32(data[0:4])
	b.TokenID = binary.LittleEndian.Uint32(data[4:8])
	b.RevisedLifetime = binary.LittleEndian.Uint32(data[8:12])
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	if len(data) < 16+n {
		return 0, scerr.Wrap(scerr.KindEncodingError, "open response truncated", scerr.ErrShortBuffer)
	}
	b.ServerNonce = append([]byte(nil), data[16:16+n]...)
	return 16 + n, nil
}

// closeRequestBody is CloseSecureChannelRequest's payload: empty, a pure
// marker that the chunk's presence (msgType CLO) already identifies.
type closeRequestBody struct{}

func (b *closeRequestBody) Initialise()                  {}
func (b *closeRequestBody) Clear()                        {}
func (b *closeRequestBody) Encode() ([]byte, error)        { return nil, nil }
func (b *closeRequestBody) Decode(data []byte) (int, error) { return 0, nil }

func zeroiseBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
