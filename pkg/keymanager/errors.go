// Package keymanager loads and parses X.509 certificates and RSA private
// keys, computing thumbprints and exposing the opaque handles §6.3's
// KeyManager operations are specified against: cert_from_der, key_from_der,
// cert_thumbprint, cert_public_key, cert_copy_der.
package keymanager

import "errors"

var (
	ErrEmptyInput          = errors.New("keymanager: empty certificate or key input")
	ErrNotRSAKey           = errors.New("keymanager: key is not an RSA private key")
	ErrNotRSAPublicKey     = errors.New("keymanager: certificate public key is not RSA")
	ErrNoPEMBlock          = errors.New("keymanager: no PEM block found")
	ErrUnsupportedPEMType  = errors.New("keymanager: unsupported PEM block type")
	ErrPassphraseRequired  = errors.New("keymanager: private key is encrypted but no passphrase was supplied")
	ErrPassphraseIncorrect = errors.New("keymanager: incorrect passphrase or corrupt encrypted key")
)
