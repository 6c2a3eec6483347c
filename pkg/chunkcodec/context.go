package chunkcodec

import (
	"crypto/rsa"

	"github.com/systerel/s2opc-sc/pkg/crypto"
)

// SymmetricContext carries the key material and token identity needed to
// sign/encrypt (sender) or verify/decrypt (receiver) a MSG/CLO chunk.
type SymmetricContext struct {
	Provider   *crypto.Provider
	TokenID    uint32
	SignKey    []byte
	EncryptKey []byte
	InitVector []byte
}

// AsymmetricContext carries the key and certificate material needed to
// sign/encrypt (sender) or verify/decrypt (receiver) an OPN chunk.
type AsymmetricContext struct {
	Provider *crypto.Provider

	SecurityPolicyURI string

	// SenderPrivateKey signs and (on the receiver side) decrypts.
	SenderPrivateKey *rsa.PrivateKey
	// SenderCertificateDER is this side's own certificate, written into
	// the asymmetric security header on send.
	SenderCertificateDER []byte

	// ReceiverPublicKey encrypts (sender side); ReceiverCertificateThumbprint
	// identifies which of the receiver's certificates to address.
	ReceiverPublicKey             *rsa.PublicKey
	ReceiverCertificateThumbprint []byte

	// PeerPublicKey verifies the peer's signature (receiver side), taken
	// from the peer certificate once validated against the PKI.
	PeerPublicKey *rsa.PublicKey
}
