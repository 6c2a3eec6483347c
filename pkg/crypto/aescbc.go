// AES-256-CBC implementation for the Basic256Sha256 symmetric message
// encryption path. Modeled on the teacher codebase's AESCTR wrapper
// (typed cipher.Block holder + package-level convenience functions), but
// built on crypto/cipher.NewCBCEncrypter/Decrypter instead of CTR mode,
// since the OPC UA policy specifies CBC rather than a stream construction.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// AES-256-CBC constants from the Basic256Sha256 policy.
const (
	// AESCBCKeySize is the AES-256 key size in bytes.
	AESCBCKeySize = 32

	// AESCBCBlockSize is the AES block size and also the CBC IV size.
	AESCBCBlockSize = 16
)

var (
	ErrAESCBCInvalidKeySize = errors.New("crypto: invalid AES-256-CBC key size, must be 32 bytes")
	ErrAESCBCInvalidIVSize  = errors.New("crypto: invalid AES-256-CBC IV size, must be 16 bytes")
	ErrAESCBCNotBlockSized  = errors.New("crypto: input length is not a multiple of the AES block size")
)

// AESCBC wraps an AES-256 cipher.Block for repeated CBC operations with
// different IVs.
type AESCBC struct {
	block cipher.Block
}

// NewAESCBC creates an AES-256-CBC cipher. The key must be exactly 32 bytes.
func NewAESCBC(key []byte) (*AESCBC, error) {
	if len(key) != AESCBCKeySize {
		return nil, ErrAESCBCInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AESCBC{block: block}, nil
}

// Encrypt CBC-encrypts plaintext, whose length must be a multiple of the
// block size (padding is the caller's responsibility, per §4.3 of the
// design). iv must be 16 bytes.
func (c *AESCBC) Encrypt(iv, plaintext []byte) ([]byte, error) {
	if len(iv) != AESCBCBlockSize {
		return nil, ErrAESCBCInvalidIVSize
	}
	if len(plaintext)%AESCBCBlockSize != 0 {
		return nil, ErrAESCBCNotBlockSized
	}
	ciphertext := make([]byte, len(plaintext))
	mode := cipher.NewCBCEncrypter(c.block, iv)
	mode.CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

// Decrypt CBC-decrypts ciphertext, whose length must be a multiple of the
// block size. iv must be 16 bytes and match the one used for encryption.
func (c *AESCBC) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != AESCBCBlockSize {
		return nil, ErrAESCBCInvalidIVSize
	}
	if len(ciphertext)%AESCBCBlockSize != 0 {
		return nil, ErrAESCBCNotBlockSized
	}
	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(c.block, iv)
	mode.CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// AESCBCEncrypt is a convenience one-shot form of AESCBC.Encrypt.
func AESCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	c, err := NewAESCBC(key)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(iv, plaintext)
}

// AESCBCDecrypt is a convenience one-shot form of AESCBC.Decrypt.
func AESCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	c, err := NewAESCBC(key)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(iv, ciphertext)
}
