package crypto

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // PSHA1 legacy helper only, not used by Basic256Sha256.

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PSHA256 computes the TLS 1.2 pseudo-random function P_SHA-256 defined in
// RFC 5246 Section 5:
//
//	P_hash(secret, seed) = HMAC_hash(secret, A(1) || seed) ||
//	                        HMAC_hash(secret, A(2) || seed) || ...
//	A(0) = seed
//	A(i) = HMAC_hash(secret, A(i-1))
//
// This is algorithmically distinct from HKDF (RFC 5869): HKDF separates
// extract and expand into two different HMAC roles, while P_SHA-256
// repeatedly re-keys the HMAC on the secret and walks an iterated chain
// A(i). OPC UA's Basic256Sha256 policy specifies P_SHA-256 verbatim, so it
// is hand-rolled here from crypto/hmac + crypto/sha256 rather than reusing
// golang.org/x/crypto/hkdf, which would produce different output bytes for
// the same inputs (see DESIGN.md for the full justification and the vector
// this is checked against).
func PSHA256(secret, seed []byte, outLen int) []byte {
	out := make([]byte, 0, outLen+SHA256LenBytes)

	a := make([]byte, len(seed))
	copy(a, seed) // A(0) = seed

	for len(out) < outLen {
		a = HMACSHA256Slice(secret, a) // A(i) = HMAC(secret, A(i-1))

		block := make([]byte, 0, len(a)+len(seed))
		block = append(block, a...)
		block = append(block, seed...)
		out = append(out, HMACSHA256Slice(secret, block)...)
	}

	return out[:outLen]
}

// PSHA1 is the SHA-1 analogue of PSHA256, used only by legacy
// Basic128Rsa15-style profiles. Basic256Sha256 itself never calls this; it
// is kept as a second KDF entry point so the Crypto Profile Registry has a
// real extension point, grounded on the same RFC 5246 construction as
// PSHA256 but with the hash swapped.
func PSHA1(secret, seed []byte, outLen int) []byte {
	out := make([]byte, 0, outLen+sha1.Size) //nolint:gosec

	a := make([]byte, len(seed))
	copy(a, seed)

	for len(out) < outLen {
		a = hmacSHA1(secret, a)
		block := make([]byte, 0, len(a)+len(seed))
		block = append(block, a...)
		block = append(block, seed...)
		out = append(out, hmacSHA1(secret, block)...)
	}

	return out[:outLen]
}

func hmacSHA1(key, msg []byte) []byte {
	h := hmac.New(sha1.New, key) //nolint:gosec
	h.Write(msg)
	return h.Sum(nil)
}

// HKDFDeriveLegacy exercises golang.org/x/crypto/hkdf for profiles that
// genuinely call for HKDF rather than the TLS PRF; no Basic256Sha256
// component uses it, but it is retained so a future profile entry has a
// real HKDF code path to call instead of reinventing one.
func HKDFDeriveLegacy(secret, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(NewSHA256AsFactory, secret, salt, info)
	out := make([]byte, outLen)
	if _, err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// PBKDF2DeriveLegacy wraps golang.org/x/crypto/pbkdf2 for the CLI's
// passphrase-protected private-key unwrap helper (cmd/opcua-scdemo); the
// secure channel core itself never derives keys from a passphrase.
func PBKDF2DeriveLegacy(password, salt []byte, iterations, outLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, outLen, NewSHA256AsFactory)
}
