package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-sc/pkg/keymanager"
)

func generateCA(t *testing.T) (*x509.Certificate, *rsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	ca, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return ca, priv, der
}

func issueLeaf(t *testing.T, ca *x509.Certificate, caKey *rsa.PrivateKey, serial int64, notBefore, notAfter time.Time) *keymanager.Cert {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "test leaf"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &priv.PublicKey, caKey)
	require.NoError(t, err)

	cert, err := keymanager.CertFromDER(der)
	require.NoError(t, err)
	return cert
}

func TestValidator_AcceptsChainedCert(t *testing.T) {
	ca, caKey, _ := generateCA(t)
	pool := x509.NewCertPool()
	pool.AddCert(ca)

	cfg := DefaultConfig()
	cfg.TrustedRoots = pool

	v, err := NewValidator(cfg, nil)
	require.NoError(t, err)

	leaf := issueLeaf(t, ca, caKey, 2, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.NoError(t, v.Validate(leaf))
}

func TestValidator_RejectsUntrustedRoot(t *testing.T) {
	ca, caKey, _ := generateCA(t)
	otherCA, _, _ := generateCA(t)

	pool := x509.NewCertPool()
	pool.AddCert(otherCA) // wrong root on purpose

	cfg := DefaultConfig()
	cfg.TrustedRoots = pool
	v, err := NewValidator(cfg, nil)
	require.NoError(t, err)

	leaf := issueLeaf(t, ca, caKey, 3, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.ErrorIs(t, v.Validate(leaf), ErrCertificateChainBroken)
}

func TestValidator_RejectsExpiredCert(t *testing.T) {
	ca, caKey, _ := generateCA(t)
	pool := x509.NewCertPool()
	pool.AddCert(ca)

	cfg := DefaultConfig()
	cfg.TrustedRoots = pool
	v, err := NewValidator(cfg, nil)
	require.NoError(t, err)

	leaf := issueLeaf(t, ca, caKey, 4, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))
	require.ErrorIs(t, v.Validate(leaf), ErrCertificateExpired)
}

func TestValidator_RejectsNotYetValidCert(t *testing.T) {
	ca, caKey, _ := generateCA(t)
	pool := x509.NewCertPool()
	pool.AddCert(ca)

	cfg := DefaultConfig()
	cfg.TrustedRoots = pool
	v, err := NewValidator(cfg, nil)
	require.NoError(t, err)

	leaf := issueLeaf(t, ca, caKey, 5, time.Now().Add(time.Hour), time.Now().Add(48*time.Hour))
	require.ErrorIs(t, v.Validate(leaf), ErrCertificateNotYetValid)
}

func TestValidator_RejectsRevokedSerial(t *testing.T) {
	ca, caKey, _ := generateCA(t)
	pool := x509.NewCertPool()
	pool.AddCert(ca)

	cfg := DefaultConfig()
	cfg.TrustedRoots = pool
	cfg.RevokedSerials = []*big.Int{big.NewInt(6)}
	v, err := NewValidator(cfg, nil)
	require.NoError(t, err)

	leaf := issueLeaf(t, ca, caKey, 6, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.ErrorIs(t, v.Validate(leaf), ErrCertificateRevoked)
}

func TestSkipValidator_AcceptsAnything(t *testing.T) {
	ca, caKey, _ := generateCA(t)
	leaf := issueLeaf(t, ca, caKey, 7, time.Now().Add(time.Hour), time.Now().Add(48*time.Hour))
	require.NoError(t, NewSkipValidator().Validate(leaf))
}
