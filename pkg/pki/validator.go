package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"math/big"
	"time"

	"github.com/pion/logging"

	"github.com/systerel/s2opc-sc/pkg/keymanager"
)

// Validator is the pluggable certificate-chain validator §6.3 calls PKI:
// Validate(cert) → Ok | CertificateInvalid(reason).
type Validator interface {
	Validate(cert *keymanager.Cert) error
}

// Config configures Validator, following the teacher's typed
// Config/DefaultConfig/Validate trio.
type Config struct {
	// TrustedRoots is the "one trusted CA" root pool. A certificate that
	// does not chain to one of these is rejected.
	TrustedRoots *x509.CertPool

	// RevokedSerials is the optional CRL: serial numbers that are always
	// rejected regardless of chain validity.
	RevokedSerials []*big.Int

	// MinKeyBits/MaxKeyBits bound the leaf certificate's RSA key size;
	// zero disables the corresponding bound.
	MinKeyBits int
	MaxKeyBits int

	// Now, if non-nil, overrides time.Now for validity-period checks
	// (test injection point).
	Now func() time.Time
}

// DefaultConfig returns a Config with no trusted roots configured — callers
// must add at least one via TrustedRoots before Validate will accept
// anything.
func DefaultConfig() Config {
	return Config{
		TrustedRoots: x509.NewCertPool(),
		MinKeyBits:   2048,
		MaxKeyBits:   4096,
	}
}

// WithDefaults fills zero-valued fields of cfg from DefaultConfig.
func (cfg Config) WithDefaults() Config {
	d := DefaultConfig()
	if cfg.TrustedRoots == nil {
		cfg.TrustedRoots = d.TrustedRoots
	}
	if cfg.MinKeyBits == 0 {
		cfg.MinKeyBits = d.MinKeyBits
	}
	if cfg.MaxKeyBits == 0 {
		cfg.MaxKeyBits = d.MaxKeyBits
	}
	return cfg
}

// Validate checks cfg for internal consistency.
func (cfg Config) Validate() error {
	if cfg.TrustedRoots == nil {
		return ErrNoTrustedRoot
	}
	return nil
}

type minimalValidator struct {
	cfg Config
	log logging.LeveledLogger
}

// NewValidator builds the stack's minimal PKI: chain-to-trusted-root,
// optional CRL, validity window, and key-size sanity check — nothing more,
// matching the original stack's stance that a full configurable PKI is out
// of scope for the secure channel layer itself.
func NewValidator(cfg Config, loggerFactory logging.LoggerFactory) (Validator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var log logging.LeveledLogger
	if loggerFactory != nil {
		log = loggerFactory.NewLogger("pki")
	} else {
		log = logging.NewDefaultLoggerFactory().NewLogger("pki")
	}
	return &minimalValidator{cfg: cfg, log: log}, nil
}

func (v *minimalValidator) Validate(cert *keymanager.Cert) error {
	leaf := cert.X509()

	if v.isRevoked(leaf.SerialNumber) {
		v.log.Warnf("certificate serial %s is revoked", leaf.SerialNumber)
		return ErrCertificateRevoked
	}

	if err := v.validateKeySize(leaf); err != nil {
		return err
	}

	now := time.Now
	if v.cfg.Now != nil {
		now = v.cfg.Now
	}
	if err := validateTimeWindow(leaf, now()); err != nil {
		return err
	}

	opts := x509.VerifyOptions{
		Roots:     v.cfg.TrustedRoots,
		CurrentTime: now(),
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := leaf.Verify(opts); err != nil {
		v.log.Warnf("certificate chain validation failed: %v", err)
		return ErrCertificateChainBroken
	}

	return nil
}

func (v *minimalValidator) isRevoked(serial *big.Int) bool {
	for _, s := range v.cfg.RevokedSerials {
		if s.Cmp(serial) == 0 {
			return true
		}
	}
	return false
}

func (v *minimalValidator) validateKeySize(leaf *x509.Certificate) error {
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return ErrKeySizeOutOfPolicy
	}
	bits := pub.N.BitLen()
	if v.cfg.MinKeyBits > 0 && bits < v.cfg.MinKeyBits {
		return ErrKeySizeOutOfPolicy
	}
	if v.cfg.MaxKeyBits > 0 && bits > v.cfg.MaxKeyBits {
		return ErrKeySizeOutOfPolicy
	}
	return nil
}

func validateTimeWindow(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return ErrCertificateNotYetValid
	}
	if now.After(cert.NotAfter) {
		return ErrCertificateExpired
	}
	return nil
}

// NewSkipValidator builds a Validator that accepts any certificate. Test
// and demonstration use only — never wire this into a production
// configuration.
func NewSkipValidator() Validator {
	return skipValidator{}
}

type skipValidator struct{}

func (skipValidator) Validate(*keymanager.Cert) error { return nil }
