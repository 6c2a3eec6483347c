package crypto

import (
	"crypto/rand"
	"crypto/rsa"

	"github.com/systerel/s2opc-sc/pkg/scerr"
)

// Provider is a stateful context wrapping an immutable Profile with an
// entropy source. It owns no connection state — it is the stateless
// vocabulary of §4.1 bound to one security policy.
type Provider struct {
	profile *Profile
}

// NewProvider looks up uri in registry and wraps it. Returns
// scerr.KindInvalidParameters wrapping scerr.ErrUnknownPolicy for an
// unregistered URI.
func NewProvider(registry *ProfileRegistry, uri PolicyURI) (*Provider, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	profile, ok := registry.Lookup(uri)
	if !ok {
		return nil, scerr.Wrap(scerr.KindInvalidParameters, string(uri), scerr.ErrUnknownPolicy)
	}
	return &Provider{profile: profile}, nil
}

// Policy returns the wrapped profile's URI.
func (p *Provider) Policy() PolicyURI { return p.profile.URI }

// SymKeyLen, SymSigLen, SymBlockLen are pure length queries over the
// profile.
func (p *Provider) SymKeyLen() int   { return p.profile.SymKeyLen }
func (p *Provider) SymSigLen() int   { return p.profile.SymSigLen }
func (p *Provider) SymBlockLen() int { return p.profile.SymBlockLen }

// CertThumbprintLen is the profile's certificate thumbprint length.
func (p *Provider) CertThumbprintLen() int { return p.profile.CertThumbprintLen }

// DeriveLens returns (signKeyLen, encryptKeyLen, ivLen), the three lengths
// packed by DeriveKeySets.
func (p *Provider) DeriveLens() (signLen, encLen, ivLen int) {
	return p.profile.SymSigLen, p.profile.SymKeyLen, p.profile.SymBlockLen
}

// AsymKeyBits, AsymPlainBlock, AsymCipherBlock, AsymSigLen are pure
// functions of a specific RSA key rather than of the profile alone.
func (p *Provider) AsymKeyBits(pub *rsa.PublicKey) int      { return pub.N.BitLen() }
func (p *Provider) AsymPlainBlock(pub *rsa.PublicKey) int   { return AsymPlainBlockSize(pub) }
func (p *Provider) AsymCipherBlock(pub *rsa.PublicKey) int  { return AsymCipherBlockSize(pub) }
func (p *Provider) AsymSigLen(pub *rsa.PublicKey) int       { return AsymSigLen(pub) }
func (p *Provider) AsymEncryptionLength(pub *rsa.PublicKey, n int) int {
	return AsymEncryptionLength(pub, n)
}

// SymEncrypt encrypts in under the profile's symmetric cipher. in's length
// must be a multiple of SymBlockLen, key must be SymKeyLen, iv must be
// SymBlockLen; otherwise returns scerr.KindInvalidParameters.
func (p *Provider) SymEncrypt(in, key, iv []byte) ([]byte, error) {
	if err := p.checkSymParams(in, key, iv); err != nil {
		return nil, err
	}
	return p.profile.SymEncrypt(key, iv, in)
}

// SymDecrypt is the inverse of SymEncrypt.
func (p *Provider) SymDecrypt(in, key, iv []byte) ([]byte, error) {
	if err := p.checkSymParams(in, key, iv); err != nil {
		return nil, err
	}
	return p.profile.SymDecrypt(key, iv, in)
}

func (p *Provider) checkSymParams(in, key, iv []byte) error {
	blockLen := p.profile.SymBlockLen
	if blockLen > 1 && len(in)%blockLen != 0 {
		return scerr.Wrap(scerr.KindInvalidParameters, "input not block-aligned", scerr.ErrLengthMismatch)
	}
	if p.profile.SymKeyLen > 0 && len(key) != p.profile.SymKeyLen {
		return scerr.Wrap(scerr.KindInvalidParameters, "symmetric key length mismatch", scerr.ErrLengthMismatch)
	}
	if blockLen > 1 && len(iv) != blockLen {
		return scerr.Wrap(scerr.KindInvalidParameters, "iv length mismatch", scerr.ErrLengthMismatch)
	}
	return nil
}

// SymSign returns the symmetric MAC (HMAC-SHA-256 tag for Basic256Sha256)
// over in, using key.
func (p *Provider) SymSign(in, key []byte) []byte {
	return p.profile.SymSign(key, in)
}

// SymVerify compares a computed tag against the supplied one in constant
// time, returning scerr.KindSecurityChecksFailed wrapping
// scerr.ErrSignatureMismatch on mismatch.
func (p *Provider) SymVerify(in, key, tag []byte) error {
	if len(tag) != p.profile.SymSigLen {
		return scerr.Wrap(scerr.KindSecurityChecksFailed, "tag length mismatch", scerr.ErrSignatureMismatch)
	}
	if !p.profile.SymVerify(key, in, tag) {
		return scerr.Wrap(scerr.KindSecurityChecksFailed, "symmetric signature mismatch", scerr.ErrSignatureMismatch)
	}
	return nil
}

// SymGenerateKey draws SymKeyLen fresh random bytes from crypto/rand and
// returns them as a SecretBuffer, per §4.1's sym_generate_key.
func (p *Provider) SymGenerateKey() (*SecretBuffer, error) {
	buf := make([]byte, p.profile.SymKeyLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, scerr.Wrap(scerr.KindInvalidParameters, "entropy source failure", err)
	}
	return NewSecretBuffer(buf), nil
}

// GenerateNonce draws a fresh nonce the length of the profile's symmetric
// key, the length §4.1 mandates for per-handshake nonces.
func (p *Provider) GenerateNonce() ([]byte, error) {
	nonce := make([]byte, p.profile.SymKeyLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, scerr.Wrap(scerr.KindInvalidParameters, "entropy source failure", err)
	}
	return nonce, nil
}

// DerivePseudoRandom runs the profile's KDF (P_SHA-256 for Basic256Sha256).
func (p *Provider) DerivePseudoRandom(secret, seed []byte, outLen int) []byte {
	return p.profile.DerivePseudoRandom(secret, seed, outLen)
}

// AsymEncrypt encrypts plaintext under the profile's asymmetric cipher.
func (p *Provider) AsymEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return p.profile.AsymEncrypt(pub, plaintext)
}

// AsymDecrypt is the inverse of AsymEncrypt.
func (p *Provider) AsymDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return p.profile.AsymDecrypt(priv, ciphertext)
}

// AsymSign signs data with the profile's asymmetric signature scheme.
func (p *Provider) AsymSign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	return p.profile.AsymSign(priv, data)
}

// AsymVerify verifies a signature produced by AsymSign.
func (p *Provider) AsymVerify(pub *rsa.PublicKey, data, sig []byte) error {
	if err := p.profile.AsymVerify(pub, data, sig); err != nil {
		return scerr.Wrap(scerr.KindSecurityChecksFailed, "asymmetric signature mismatch", err)
	}
	return nil
}

// CertThumbprint computes the profile's certificate thumbprint (SHA-1 for
// Basic256Sha256).
func (p *Provider) CertThumbprint(certDER []byte) []byte {
	return p.profile.CertThumbprint(certDER)
}

// ValidateCertKeySize runs the profile-specific key-size sanity check
// ("RSA 2048-4096") that precedes delegation to the PKI in §4.1's
// cert_validate.
func (p *Provider) ValidateCertKeySize(pub *rsa.PublicKey) error {
	if p.profile.ValidateKeySize == nil {
		return nil
	}
	if err := p.profile.ValidateKeySize(pub); err != nil {
		return scerr.Wrap(scerr.KindSecurityChecksFailed, "asymmetric key size out of policy bounds", err)
	}
	return nil
}
