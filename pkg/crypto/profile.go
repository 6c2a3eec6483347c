package crypto

import (
	"crypto/rsa"
	"sync"
)

// PolicyURI identifies an OPC UA security policy by its canonical URI.
type PolicyURI string

const (
	// PolicyNone disables sign/encrypt but still supports nonce
	// generation and length queries, per §4.1's "a null profile is valid".
	PolicyNone PolicyURI = "http://opcfoundation.org/UA/SecurityPolicy#None"

	// PolicyBasic256Sha256 is the sole cryptographically active profile
	// this layer implements, per §6.4.
	PolicyBasic256Sha256 PolicyURI = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
)

// Profile is an immutable bundle of algorithm parameters and primitive
// function values for one security policy. It owns no per-connection
// state; Provider wraps one Profile with an entropy source.
type Profile struct {
	URI PolicyURI

	SymKeyLen   int // symmetric key length in bytes
	SymSigLen   int // symmetric signature (MAC) length in bytes
	SymBlockLen int // symmetric cipher block length in bytes

	CertThumbprintLen int // certificate thumbprint length in bytes

	MinAsymKeyBits int
	MaxAsymKeyBits int

	// SymEncrypt/SymDecrypt implement the policy's symmetric cipher.
	SymEncrypt func(key, iv, plaintext []byte) ([]byte, error)
	SymDecrypt func(key, iv, ciphertext []byte) ([]byte, error)

	// SymSign/SymVerify implement the policy's symmetric MAC.
	SymSign   func(key, data []byte) []byte
	SymVerify func(key, data, tag []byte) bool

	// DerivePseudoRandom implements the policy's KDF, P_SHA-256 for
	// Basic256Sha256.
	DerivePseudoRandom func(secret, seed []byte, outLen int) []byte

	// AsymEncrypt/AsymDecrypt implement the policy's asymmetric cipher
	// (RSA-OAEP/SHA-1 for Basic256Sha256).
	AsymEncrypt func(pub *rsa.PublicKey, plaintext []byte) ([]byte, error)
	AsymDecrypt func(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error)

	// AsymSign/AsymVerify implement the policy's asymmetric signature
	// (RSASSA-PKCS1-v1_5/SHA-256 for Basic256Sha256).
	AsymSign   func(priv *rsa.PrivateKey, data []byte) ([]byte, error)
	AsymVerify func(pub *rsa.PublicKey, data, sig []byte) error

	// CertThumbprint computes the policy's certificate thumbprint.
	CertThumbprint func(certDER []byte) []byte

	// ValidateKeySize enforces the policy's RSA key size bound; nil for
	// the None profile.
	ValidateKeySize func(pub *rsa.PublicKey) error
}

// ProfileRegistry is the process-wide read-only table of registered
// profiles, mirroring the teacher's convention of a package-level
// sync.RWMutex-guarded map for long-lived lookup tables (see the session
// table and encodeable registry). It is safe for concurrent read access
// once populated at start-up; profiles are seldom if ever registered after
// init, but the mutex guards the rare pluggable-policy case.
type ProfileRegistry struct {
	mu       sync.RWMutex
	profiles map[PolicyURI]*Profile
}

var defaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *ProfileRegistry {
	r := &ProfileRegistry{profiles: make(map[PolicyURI]*Profile)}
	r.Register(noneProfile())
	r.Register(basic256Sha256Profile())
	return r
}

// DefaultRegistry returns the process-wide registry pre-populated with
// None and Basic256Sha256.
func DefaultRegistry() *ProfileRegistry {
	return defaultRegistry
}

// Register adds or replaces a profile entry.
func (r *ProfileRegistry) Register(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.URI] = p
}

// Lookup returns the profile for uri, or (nil, false) if unregistered.
func (r *ProfileRegistry) Lookup(uri PolicyURI) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[uri]
	return p, ok
}

func noneProfile() *Profile {
	return &Profile{
		URI:               PolicyNone,
		SymKeyLen:         0,
		SymSigLen:         0,
		SymBlockLen:       1,
		CertThumbprintLen: SHA1LenBytes,
		SymEncrypt: func(_, _, plaintext []byte) ([]byte, error) {
			return plaintext, nil
		},
		SymDecrypt: func(_, _, ciphertext []byte) ([]byte, error) {
			return ciphertext, nil
		},
		SymSign:            func(_, _ []byte) []byte { return nil },
		SymVerify:          func(_, _, tag []byte) bool { return len(tag) == 0 },
		DerivePseudoRandom: func(_, _ []byte, outLen int) []byte { return make([]byte, outLen) },
		CertThumbprint:     SHA1ThumbprintSlice,
	}
}

func basic256Sha256Profile() *Profile {
	return &Profile{
		URI:               PolicyBasic256Sha256,
		SymKeyLen:         AESCBCKeySize,
		SymSigLen:         SHA256LenBytes,
		SymBlockLen:       AESCBCBlockSize,
		CertThumbprintLen: SHA1LenBytes,
		MinAsymKeyBits:    MinRSAKeyBits,
		MaxAsymKeyBits:    MaxRSAKeyBits,

		SymEncrypt: AESCBCEncrypt,
		SymDecrypt: AESCBCDecrypt,

		SymSign:   HMACSHA256Slice,
		SymVerify: func(key, data, tag []byte) bool { return HMACEqual(HMACSHA256Slice(key, data), tag) },

		DerivePseudoRandom: PSHA256,

		AsymEncrypt: AsymEncrypt,
		AsymDecrypt: AsymDecrypt,
		AsymSign:    AsymSign,
		AsymVerify:  AsymVerify,

		CertThumbprint:  SHA1ThumbprintSlice,
		ValidateKeySize: ValidateRSAKeySize,
	}
}
