package keymanager

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	sccrypto "github.com/systerel/s2opc-sc/pkg/crypto"
)

// Cert is the opaque certificate handle §6.3 calls Cert: the parsed
// *x509.Certificate plus the raw DER it was parsed from, since the wire
// path needs the exact bytes back for cert_copy_der and signature checks.
type Cert struct {
	parsed *x509.Certificate
	der    []byte
}

// CertFromDER parses a DER-encoded certificate, the cert_from_der
// operation.
func CertFromDER(der []byte) (*Cert, error) {
	if len(der) == 0 {
		return nil, ErrEmptyInput
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Cert{parsed: parsed, der: der}, nil
}

// CertFromPEM parses a single PEM-encoded "CERTIFICATE" block, a
// convenience entry point the demonstration CLI uses to load endpoint
// certificates from disk.
func CertFromPEM(pemBytes []byte) (*Cert, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	if block.Type != "CERTIFICATE" {
		return nil, ErrUnsupportedPEMType
	}
	return CertFromDER(block.Bytes)
}

// X509 exposes the parsed certificate for chain/date validation in the pki
// package, which needs the full x509.Certificate API rather than a
// narrower handle.
func (c *Cert) X509() *x509.Certificate { return c.parsed }

// CertCopyDER returns a copy of the certificate's original DER encoding,
// the cert_copy_der operation.
func (c *Cert) CertCopyDER() []byte {
	out := make([]byte, len(c.der))
	copy(out, c.der)
	return out
}

// CertPublicKey returns the certificate's RSA public key, the
// cert_public_key operation. Returns ErrNotRSAPublicKey if the certificate
// carries a non-RSA key, which is out of scope for Basic256Sha256.
func (c *Cert) CertPublicKey() (*rsa.PublicKey, error) {
	pub, ok := c.parsed.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAPublicKey
	}
	return pub, nil
}

// CertThumbprint computes the certificate's SHA-1 thumbprint over its DER
// encoding, the cert_thumbprint operation.
func (c *Cert) CertThumbprint() []byte {
	return sccrypto.SHA1ThumbprintSlice(c.der)
}
