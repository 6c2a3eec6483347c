// RSA asymmetric primitives for the Basic256Sha256 policy: RSA-OAEP with
// SHA-1 for encryption, RSASSA-PKCS1-v1_5 with SHA-256 for signatures.
// Grounded on the teacher codebase's convention of a typed wrapper plus
// package-level convenience functions (see AESCBC, AESCTR); the primitives
// themselves come straight from crypto/rsa, crypto/sha1 and crypto/sha256,
// which is the idiomatic Go way to do RSA rather than hand-rolling it.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // OAEP hash mandated by Basic256Sha256, not used for certificate signing.
	"crypto/sha256"
	"crypto/x509"
	"errors"
)

var (
	ErrRSAKeyTooSmall      = errors.New("crypto: RSA key smaller than 2048 bits")
	ErrRSAKeyTooLarge      = errors.New("crypto: RSA key larger than 4096 bits")
	ErrRSAPlaintextTooLong = errors.New("crypto: plaintext exceeds asymmetric plain block size")
)

// MinRSAKeyBits and MaxRSAKeyBits bound accepted key sizes per the
// Basic256Sha256 policy catalogue.
const (
	MinRSAKeyBits = 2048
	MaxRSAKeyBits = 4096
)

// ValidateRSAKeySize enforces the policy's 2048-4096 bit bound on an RSA
// public key.
func ValidateRSAKeySize(pub *rsa.PublicKey) error {
	bits := pub.N.BitLen()
	if bits < MinRSAKeyBits {
		return ErrRSAKeyTooSmall
	}
	if bits > MaxRSAKeyBits {
		return ErrRSAKeyTooLarge
	}
	return nil
}

// AsymPlainBlockSize returns the maximum plaintext size RSA-OAEP/SHA-1 can
// encrypt in one block for the given key: k - 2*hLen - 2, where k is the
// key size in bytes and hLen is the OAEP hash length (20 for SHA-1).
func AsymPlainBlockSize(pub *rsa.PublicKey) int {
	k := (pub.N.BitLen() + 7) / 8
	return k - 2*sha1.Size - 2 //nolint:gosec
}

// AsymCipherBlockSize returns the ciphertext block size for the given key:
// equal to the key size in bytes, since RSA-OAEP output is exactly one
// modulus-sized block.
func AsymCipherBlockSize(pub *rsa.PublicKey) int {
	return (pub.N.BitLen() + 7) / 8
}

// AsymEncryptionLength computes the output ciphertext length for an input
// of inputLen bytes, chunked into AsymPlainBlockSize()-sized blocks and
// encrypted one block per AsymCipherBlockSize() output bytes.
func AsymEncryptionLength(pub *rsa.PublicKey, inputLen int) int {
	plainBlock := AsymPlainBlockSize(pub)
	cipherBlock := AsymCipherBlockSize(pub)
	if inputLen == 0 {
		return 0
	}
	blocks := (inputLen + plainBlock - 1) / plainBlock
	return blocks * cipherBlock
}

// AsymEncrypt encrypts plaintext under RSA-OAEP/SHA-1, chunking it into
// AsymPlainBlockSize()-sized blocks and concatenating the per-block
// ciphertexts, per §4.1's "operate in blocks of the key's cipher/plain
// sizes" contract.
func AsymEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	plainBlock := AsymPlainBlockSize(pub)
	out := make([]byte, 0, AsymEncryptionLength(pub, len(plaintext)))

	for off := 0; off < len(plaintext); off += plainBlock {
		end := off + plainBlock
		if end > len(plaintext) {
			end = len(plaintext)
		}
		block, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plaintext[off:end], nil) //nolint:gosec
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	if len(plaintext) == 0 {
		block, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, nil, nil) //nolint:gosec
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

// AsymDecrypt is the inverse of AsymEncrypt: splits ciphertext into
// AsymCipherBlockSize()-sized blocks and decrypts each with the private key.
func AsymDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	cipherBlock := AsymCipherBlockSize(&priv.PublicKey)
	if cipherBlock == 0 || len(ciphertext)%cipherBlock != 0 {
		return nil, ErrLengthMismatchCipher
	}

	out := make([]byte, 0, len(ciphertext))
	for off := 0; off < len(ciphertext); off += cipherBlock {
		block, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext[off:off+cipherBlock], nil) //nolint:gosec
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

var ErrLengthMismatchCipher = errors.New("crypto: ciphertext length is not a multiple of the asymmetric cipher block size")

// AsymSign hashes data with SHA-256 and signs it with RSASSA-PKCS1-v1_5,
// per the Basic256Sha256 policy (§9 records the PKCS1-v1_5-vs-PSS open
// question and the decision to implement PKCS1-v1_5 only).
func AsymSign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
}

// AsymVerify verifies a RSASSA-PKCS1-v1_5/SHA-256 signature.
func AsymVerify(pub *rsa.PublicKey, data, sig []byte) error {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
}

// AsymSigLen returns the RSASSA-PKCS1-v1_5 signature length for the given
// key: equal to the key size in bytes.
func AsymSigLen(pub *rsa.PublicKey) int {
	return (pub.N.BitLen() + 7) / 8
}

// VerifyCertificateSignature checks that leaf was signed by issuer's
// public key using SHA-256, the certificate signature algorithm the policy
// mandates.
func VerifyCertificateSignature(leaf, issuer *x509.Certificate) error {
	switch leaf.SignatureAlgorithm {
	case x509.SHA256WithRSA, x509.SHA256WithRSAPSS:
	default:
		return x509.InsecureAlgorithmError(leaf.SignatureAlgorithm)
	}
	return leaf.CheckSignatureFrom(issuer)
}
