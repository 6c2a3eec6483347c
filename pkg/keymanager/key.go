package keymanager

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
)

// AsymKey is the opaque private-key handle §6.3 calls AsymKey.
type AsymKey struct {
	priv *rsa.PrivateKey
}

// KeyFromDER parses a DER-encoded RSA private key in either PKCS1 or
// PKCS8 form, the key_from_der operation. passphrase is accepted for
// signature-compatibility with key_from_der(bytes, passphrase?) but is
// unused here: unencrypted DER has no passphrase to apply. Use KeyFromPEM
// for passphrase-protected keys loaded from disk.
func KeyFromDER(der []byte, _ []byte) (*AsymKey, error) {
	if len(der) == 0 {
		return nil, ErrEmptyInput
	}
	if priv, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return &AsymKey{priv: priv}, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return &AsymKey{priv: priv}, nil
}

// KeyFromPEM parses a PEM-encoded private key, the passphrase?-bearing
// entry point the demonstration CLI uses to load an application instance
// key from disk. passphrase may be nil for an unencrypted key.
//
//nolint:staticcheck // x509.IsEncryptedPEMBlock/DecryptPEMBlock are deprecated
// (PEM encryption is weak) but remain the only stdlib path for the
// passphrase-protected PEM keys real OPC UA deployments still ship. PKCS8
// "ENCRYPTED PRIVATE KEY" blocks are not supported and return
// ErrUnsupportedPEMType.
func KeyFromPEM(pemBytes []byte, passphrase []byte) (*AsymKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		decrypted, err := x509.DecryptPEMBlock(block, passphrase)
		if err != nil {
			return nil, ErrPassphraseIncorrect
		}
		der = decrypted
	}

	switch block.Type {
	case "RSA PRIVATE KEY", "PRIVATE KEY":
		return KeyFromDER(der, nil)
	default:
		return nil, ErrUnsupportedPEMType
	}
}

// RSA exposes the underlying *rsa.PrivateKey for the crypto provider's
// asymmetric operations.
func (k *AsymKey) RSA() *rsa.PrivateKey { return k.priv }

// ToDER re-encodes the key as PKCS1 DER.
func (k *AsymKey) ToDER() []byte {
	return x509.MarshalPKCS1PrivateKey(k.priv)
}
