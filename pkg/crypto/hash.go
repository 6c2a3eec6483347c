// Package crypto implements the Basic256Sha256 security policy: the
// symmetric and asymmetric primitives, the P_SHA-256 key derivation
// function, and the profile/provider abstraction the secure channel layer
// is built on.
package crypto

import (
	"crypto/sha1" //nolint:gosec // SHA-1 certificate thumbprints are mandated by the OPC UA profile, not used for signing.
	"crypto/sha256"
	"hash"
)

// NewSHA256AsFactory matches the func() hash.Hash signature hkdf.New and
// pbkdf2.Key expect. Named separately from NewSHA256 (which most call
// sites use directly) to make the factory use explicit at call sites.
func NewSHA256AsFactory() hash.Hash {
	return sha256.New()
}

// SHA-256 and SHA-1 output sizes.
const (
	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32

	// SHA1LenBytes is the SHA-1 output length in bytes, used for
	// certificate thumbprints per the Basic256Sha256 policy.
	SHA1LenBytes = 20
)

// SHA256 computes the SHA-256 cryptographic hash of a message, returning a
// 32-byte (256-bit) digest.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// SHA256Slice computes the SHA-256 hash and returns it as a slice.
// This is a convenience function for cases where a slice is preferred.
func SHA256Slice(message []byte) []byte {
	h := sha256.Sum256(message)
	return h[:]
}

// NewSHA256 returns a new hash.Hash for computing SHA-256 digests incrementally.
// This is useful for hashing large data or streaming data.
//
// Usage:
//
//	h := crypto.NewSHA256()
//	h.Write(data1)
//	h.Write(data2)
//	digest := h.Sum(nil)
func NewSHA256() hash.Hash {
	return sha256.New()
}

// SHA1Thumbprint computes the SHA-1 digest of a DER-encoded certificate,
// per the Basic256Sha256 policy's cert_thumbprint_len of 20 bytes.
func SHA1Thumbprint(certDER []byte) [SHA1LenBytes]byte {
	return sha1.Sum(certDER) //nolint:gosec
}

// SHA1ThumbprintSlice is the slice-returning convenience form of
// SHA1Thumbprint.
func SHA1ThumbprintSlice(certDER []byte) []byte {
	h := sha1.Sum(certDER) //nolint:gosec
	return h[:]
}
