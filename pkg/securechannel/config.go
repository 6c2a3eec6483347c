package securechannel

import (
	"time"

	"github.com/pion/logging"

	"github.com/systerel/s2opc-sc/pkg/crypto"
	"github.com/systerel/s2opc-sc/pkg/keymanager"
	"github.com/systerel/s2opc-sc/pkg/pki"
	"github.com/systerel/s2opc-sc/pkg/transport"
)

// Callbacks carries the user-visible events §7 requires, fired outside
// any lock (following the teacher's securechannel.Manager pattern: lock,
// mutate, unlock, then invoke). Any field left nil is simply not called.
type Callbacks struct {
	// OnConnected fires once a security token and key sets are installed.
	OnConnected func(c *Connection)
	// OnDisconnected fires once the channel has torn down, with a nil err
	// on a clean local/remote close.
	OnDisconnected func(c *Connection, err error)
	// OnSecureMessageChunk fires for every intermediate chunk of an
	// inbound message, before reassembly completes.
	OnSecureMessageChunk func(c *Connection, requestID uint32)
	// OnSecureMessageComplete fires once a message's final chunk has been
	// reassembled and decoded.
	OnSecureMessageComplete func(c *Connection, requestID uint32, typeID uint32, body []byte)
	// OnSecureMessageAbort fires when a peer aborts an in-flight message.
	OnSecureMessageAbort func(c *Connection, requestID uint32, reason error)
	// OnUnexpectedError fires for any error the channel could not recover
	// from locally, after the relevant state transition has been applied.
	OnUnexpectedError func(c *Connection, err error)
	// OnConnectionFailed fires when the handshake itself cannot complete.
	OnConnectionFailed func(c *Connection, err error)
}

// Config configures a Connection, following the teacher's typed
// Config/DefaultConfig/WithDefaults/Validate trio.
type Config struct {
	// Transport is the already-established byte transport this channel
	// runs over (borrowed; owned by the caller). Required.
	Transport transport.TransportConnection

	// IsClient selects which side of the handshake this Connection plays:
	// true initiates OpenSecureChannel, false waits to receive it.
	IsClient bool

	// SecurityPolicy selects the crypto profile (§6.4). Defaults to
	// Basic256Sha256.
	SecurityPolicy crypto.PolicyURI

	// SecurityMode selects which protections apply to messages. Defaults
	// to SignAndEncrypt.
	SecurityMode SecurityMode

	// LocalCertificate/LocalPrivateKey identify this endpoint. Required
	// unless SecurityMode is None.
	LocalCertificate *keymanager.Cert
	LocalPrivateKey  *keymanager.AsymKey

	// PeerCertificate is, for a client, the server certificate to address
	// the OpenSecureChannel request to (required unless SecurityMode is
	// None); for a server, an optional expected client certificate (nil
	// accepts any certificate the PKI validates).
	PeerCertificate *keymanager.Cert

	// PKI validates the peer's certificate. Required unless SecurityMode
	// is None.
	PKI pki.Validator

	// ChunkSize bounds each wire chunk, including all headers. Defaults
	// to 8192.
	ChunkSize int

	// MaxChunksPerMessage bounds reassembly, per §4.4. Defaults to 128.
	MaxChunksPerMessage int

	// RequestedLifetimeMS is the client's requested token lifetime.
	// Defaults to 3600000 (one hour).
	RequestedLifetimeMS uint32

	// Metrics is an optional prometheus sink; nil disables metrics.
	Metrics *Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	Callbacks Callbacks
}

// DefaultConfig returns a Config with every optional field at its
// documented default. Transport, LocalCertificate/LocalPrivateKey,
// PeerCertificate, and PKI still need to be set by the caller.
func DefaultConfig() Config {
	return Config{
		SecurityPolicy:      crypto.PolicyBasic256Sha256,
		SecurityMode:        SecurityModeSignAndEncrypt,
		ChunkSize:           8192,
		MaxChunksPerMessage: 128,
		RequestedLifetimeMS: 3600000,
	}
}

// WithDefaults returns a copy of c with zero-valued optional fields filled
// in from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = d.SecurityPolicy
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.MaxChunksPerMessage == 0 {
		c.MaxChunksPerMessage = d.MaxChunksPerMessage
	}
	if c.RequestedLifetimeMS == 0 {
		c.RequestedLifetimeMS = d.RequestedLifetimeMS
	}
	return c
}

// Validate checks the Config's invariants, returning the first violation
// found.
func (c Config) Validate() error {
	if c.Transport == nil {
		return ErrNoTransport
	}
	if c.SecurityMode != SecurityModeNone {
		if c.LocalCertificate == nil || c.LocalPrivateKey == nil {
			return ErrMissingCredentials
		}
		if c.PKI == nil {
			return ErrMissingPKI
		}
		if c.IsClient && c.PeerCertificate == nil {
			return ErrMissingPeerCertificate
		}
	}
	return nil
}

func (c Config) requestedLifetime() time.Duration {
	return time.Duration(c.RequestedLifetimeMS) * time.Millisecond
}
