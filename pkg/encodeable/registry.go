// Package encodeable provides the table of known message types the chunk
// codec's receiver path decodes a final chunk's body into, per §6.3's
// EncodeableRegistry: lookup(binaryEncodingId) → &EncodeableType.
package encodeable

import (
	"sync"

	"github.com/systerel/s2opc-sc/pkg/scerr"
)

// Object is the uniform contract a decoded message body satisfies,
// per the spec's "opaque encodable objects with a uniform
// encode/decode/initialise/clear contract".
type Object interface {
	// Initialise resets the object to its zero value before Decode fills it.
	Initialise()
	// Clear releases any resources the object holds (e.g. zeroises secrets
	// embedded in a handshake message).
	Clear()
	// Encode serialises the object's fields (not including the
	// ExpandedNodeId type prefix, which the codec writes separately).
	Encode() ([]byte, error)
	// Decode parses the object's fields from data, returning the number of
	// bytes consumed.
	Decode(data []byte) (int, error)
}

// Factory constructs a new, Initialise-d instance of one Object type.
type Factory func() Object

// Type describes one registered message type: its binary encoding id and
// the factory that builds a fresh instance for decoding.
type Type struct {
	BinaryEncodingID uint32
	Name             string
	New              Factory
}

// Registry is a sync.RWMutex-guarded table of known message types, one
// instance per NewRegistry call, mirroring the teacher's session Table and the crypto
// package's ProfileRegistry.
type Registry struct {
	mu    sync.RWMutex
	types map[uint32]*Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[uint32]*Type)}
}

// Register adds or replaces a Type entry.
func (r *Registry) Register(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.BinaryEncodingID] = t
}

// Lookup returns the Type for binaryEncodingID, per §6.3.
func (r *Registry) Lookup(binaryEncodingID uint32) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[binaryEncodingID]
	return t, ok
}

// New builds a fresh, initialised Object for binaryEncodingID, returning
// scerr.KindUnknownEncoding if nothing is registered for it, per §4.7's
// "Unknown binaryEncodingId on receive ⇒ reject chunk with UnknownEncoding".
func (r *Registry) New(binaryEncodingID uint32) (Object, error) {
	t, ok := r.Lookup(binaryEncodingID)
	if !ok {
		return nil, scerr.New(scerr.KindUnknownEncoding, "unregistered binaryEncodingId")
	}
	obj := t.New()
	obj.Initialise()
	return obj, nil
}
