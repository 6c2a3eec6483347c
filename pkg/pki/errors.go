// Package pki implements a minimal certificate validator: one trusted CA
// plus an optional CRL, chain verification, and validity-period checks.
// It deliberately does not attempt to be a general-purpose configurable
// PKI — per §6.3's Validate(cert) → Ok | CertificateInvalid(reason)
// contract, the stack only ever needs a single yes/no answer.
package pki

import "errors"

var (
	ErrCertificateExpired     = errors.New("pki: certificate expired")
	ErrCertificateNotYetValid = errors.New("pki: certificate not yet valid")
	ErrCertificateChainBroken = errors.New("pki: certificate chain validation failed")
	ErrCertificateRevoked     = errors.New("pki: certificate is on the revocation list")
	ErrKeySizeOutOfPolicy     = errors.New("pki: certificate key size outside policy bounds")
	ErrNoTrustedRoot          = errors.New("pki: no trusted root certificate configured")
)
