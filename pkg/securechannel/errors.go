// Package securechannel implements the OPC UA Secure Channel layer: the
// per-connection state machine that opens, renews, and closes a secure
// channel over a TCP-UA transport, chunking and encrypting every message
// that crosses it via the chunkcodec and crypto packages.
package securechannel

import "errors"

var (
	// ErrNoTransport is returned when a Config has no Transport set.
	ErrNoTransport = errors.New("securechannel: no transport configured")

	// ErrNotConnected is returned when Send is called outside StateConnected.
	ErrNotConnected = errors.New("securechannel: channel is not connected")

	// ErrAlreadyOpen is returned when Open is called more than once.
	ErrAlreadyOpen = errors.New("securechannel: channel already opened")

	// ErrMissingCredentials is returned when SecurityMode != None but no
	// local certificate/key pair was configured.
	ErrMissingCredentials = errors.New("securechannel: security mode requires a local certificate and private key")

	// ErrMissingPeerCertificate is returned when a client Config has no
	// PeerCertificate to address the OpenSecureChannel request to.
	ErrMissingPeerCertificate = errors.New("securechannel: client requires the peer's certificate to open a channel")

	// ErrMissingPKI is returned when SecurityMode != None but no PKI
	// validator was configured to validate the peer's certificate.
	ErrMissingPKI = errors.New("securechannel: security mode requires a PKI validator")

	// ErrTokenExpired is returned (and the channel is refused further
	// sends) once the current token's lifetime has elapsed, per §4.7.
	ErrTokenExpired = errors.New("securechannel: security token expired")

	// ErrUnknownToken is returned when an inbound symmetric chunk's
	// tokenId matches neither the current nor the previous token.
	ErrUnknownToken = errors.New("securechannel: tokenId matches neither current nor previous token")
)
