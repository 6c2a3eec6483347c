package securechannel

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/systerel/s2opc-sc/pkg/chunkcodec"
	"github.com/systerel/s2opc-sc/pkg/crypto"
	"github.com/systerel/s2opc-sc/pkg/encodeable"
	"github.com/systerel/s2opc-sc/pkg/scerr"
	"github.com/systerel/s2opc-sc/pkg/wire"
)

// Connection is a single secure channel: the per-connection state §3.1
// describes, bound to one transport.TransportConnection. Exported state
// access goes through its methods; internal fields are guarded by mu.
//
// §5 models the core as single-threaded cooperative, driven by a
// transport completion loop that never needs a lock. This implementation's
// transport instead delivers receive callbacks and send completions from
// its own goroutines, so Connection adapts that model with one mutex
// guarding state transitions and token/keyset access; the sendToken
// discipline of §4.6 is still what serialises the actual wire traffic
// (see sendqueue.go), not the mutex.
type Connection struct {
	cfg               Config
	log               logging.LeveledLogger
	metrics           *Metrics
	registry          *encodeable.Registry
	handshakeRegistry *encodeable.Registry
	traceID           uuid.UUID

	mu               sync.Mutex
	state            State
	secureChannelID  uint32
	current          *tokenState
	previous         *tokenState
	previousDeadline time.Time
	localNonce       []byte

	sendSeq *chunkcodec.SendSequenceCounter
	recvSeq *chunkcodec.ReceiveSequenceTracker
	reasm   *chunkcodec.ReassemblyTable

	nextRequestID   uint32
	nextTokenID     uint32
	openRequestID   uint32
	renewInFlight   bool
	renewTimer      *time.Timer

	sendQ *sendQueue
}

// NewConnection validates cfg and returns an unopened Connection bound to
// cfg.Transport. Call Open to begin the handshake.
func NewConnection(cfg Config, registry *encodeable.Registry) (*Connection, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = encodeable.NewRegistry()
	}

	c := &Connection{
		cfg:               cfg,
		registry:          registry,
		handshakeRegistry: newHandshakeRegistry(),
		traceID:           uuid.New(),
		state:             StateConnectingTransport,
		sendSeq:           chunkcodec.NewSendSequenceCounter(),
		recvSeq:           chunkcodec.NewReceiveSequenceTracker(),
		reasm:             chunkcodec.NewReassemblyTable(cfg.MaxChunksPerMessage),
	}
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("securechannel")
	}
	c.metrics = cfg.Metrics
	c.sendQ = newSendQueue(cfg.Transport)

	cfg.Transport.SetReceiveHandler(c.handleChunk)
	cfg.Transport.SetCloseHandler(c.handleTransportClosed)

	return c, nil
}

// TraceID returns the connection's diagnostic id, attached to every log
// line and event this connection emits.
func (c *Connection) TraceID() uuid.UUID { return c.traceID }

// State returns the connection's current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SecureChannelID returns the server-assigned channel id, valid once
// Connected.
func (c *Connection) SecureChannelID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secureChannelID
}

// Open begins the handshake: a client sends OpenSecureChannel-Request; a
// server merely arms itself to accept one, since the transport is already
// assumed connected (dialed or accepted) by the caller before Open is
// called.
func (c *Connection) Open() error {
	c.mu.Lock()
	if c.state != StateConnectingTransport {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateConnectingSecure
	isClient := c.cfg.IsClient
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("[%s] transport connected, opening secure channel (client=%v)", c.traceID, isClient)
	}

	if !isClient {
		return nil
	}
	return c.sendOpenRequest()
}

func (c *Connection) sendOpenRequest() error {
	provider, err := crypto.NewProvider(nil, c.cfg.SecurityPolicy)
	if err != nil {
		return err
	}

	nonce, err := provider.GenerateNonce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.localNonce = nonce
	requestID := c.nextRequestID + 1
	c.nextRequestID = requestID
	c.openRequestID = requestID
	c.mu.Unlock()

	body := &openRequestBody{ClientNonce: nonce, RequestedLifetime: c.cfg.RequestedLifetimeMS}
	encoded, err := encodeBody(binIDOpenRequest, body)
	if err != nil {
		return err
	}

	asym, err := c.buildAsymSendContext(provider)
	if err != nil {
		return err
	}

	return c.encodeAndSend(wire.MsgTypeOpen, 0, requestID, encoded, nil, asym, nil)
}

func (c *Connection) buildAsymSendContext(provider *crypto.Provider) (*chunkcodec.AsymmetricContext, error) {
	peerPub, err := c.cfg.PeerCertificate.CertPublicKey()
	if err != nil {
		return nil, err
	}
	return &chunkcodec.AsymmetricContext{
		Provider:                      provider,
		SecurityPolicyURI:             string(c.cfg.SecurityPolicy),
		SenderPrivateKey:              c.cfg.LocalPrivateKey.RSA(),
		SenderCertificateDER:          c.cfg.LocalCertificate.CertCopyDER(),
		ReceiverPublicKey:             peerPub,
		ReceiverCertificateThumbprint: c.cfg.PeerCertificate.CertThumbprint(),
		PeerPublicKey:                 peerPub,
	}, nil
}

// encodeAndSend runs one message through the chunk codec and the send
// queue. sym/asym select the security context; exactly one must be
// non-nil (chunkcodec.Encode itself also enforces this).
func (c *Connection) encodeAndSend(msgType wire.MsgType, secureChannelID, requestID uint32, body []byte, sym *chunkcodec.SymmetricContext, asym *chunkcodec.AsymmetricContext, done func(error)) error {
	if done == nil {
		done = func(error) {}
	}
	errCh := make(chan error, 1)
	c.sendQ.enqueue(func() ([][]byte, error) {
		req := &chunkcodec.EncodeRequest{
			MsgType:         msgType,
			SecureChannelID: secureChannelID,
			RequestID:       requestID,
			Body:            body,
			ChunkSize:       c.cfg.ChunkSize,
			MaxChunks:       c.cfg.MaxChunksPerMessage,
			Sym:             sym,
			Asym:            asym,
			Sequence:        c.sendSeq,
		}
		chunks, err := chunkcodec.Encode(req)
		if err == nil {
			for range chunks {
				c.metrics.incChunksSent()
			}
		}
		return chunks, err
	}, func(err error) {
		done(err)
		errCh <- err
	})
	return <-errCh
}

// Send encodes and ships an application message over the established
// symmetric channel, returning the requestId the caller should expect in
// any correlated response.
func (c *Connection) Send(typeID uint32, body []byte) (uint32, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return 0, ErrNotConnected
	}
	if err := c.checkTokenNotExpired(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.nextRequestID++
	requestID := c.nextRequestID
	channelID := c.secureChannelID
	c.mu.Unlock()

	payload := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(payload[0:4], typeID)
	copy(payload[4:], body)

	sym, err := c.currentSymContext(true)
	if err != nil {
		return 0, err
	}

	err = c.encodeAndSend(wire.MsgTypeMsg, channelID, requestID, payload, sym, nil, nil)
	return requestID, err
}

// Close initiates CloseSecureChannel and releases all cryptographic
// material once the transport confirms the close.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateDisconnecting || c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	wasConnected := c.state == StateConnected
	c.state = StateDisconnecting
	channelID := c.secureChannelID
	c.nextRequestID++
	requestID := c.nextRequestID
	c.mu.Unlock()

	if c.renewTimer != nil {
		c.renewTimer.Stop()
	}

	if wasConnected {
		sym, err := c.currentSymContext(true)
		if err == nil {
			body, _ := encodeBody(binIDCloseRequest, &closeRequestBody{})
			_ = c.encodeAndSend(wire.MsgTypeClose, channelID, requestID, body, sym, nil, nil)
		}
	}

	err := c.cfg.Transport.Close()
	c.teardown(nil)
	return err
}

func (c *Connection) teardown(err error) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.current.zeroize()
	c.previous.zeroize()
	zeroiseBytes(c.localNonce)
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("[%s] secure channel torn down: %v", c.traceID, err)
	}
	if c.cfg.Callbacks.OnDisconnected != nil {
		c.cfg.Callbacks.OnDisconnected(c, err)
	}
}

func (c *Connection) handleTransportClosed(err error) {
	c.teardown(err)
}

// enterError transitions to StateError and fires OnUnexpectedError/
// OnConnectionFailed as appropriate, per §4.5/§4.7.
func (c *Connection) enterError(err error) {
	c.mu.Lock()
	wasHandshaking := c.state == StateConnectingTransport || c.state == StateConnectingSecure
	alreadyError := c.state == StateError
	c.state = StateError
	c.current.zeroize()
	c.previous.zeroize()
	c.mu.Unlock()

	if alreadyError {
		return
	}
	if kind, ok := scerr.KindOf(err); ok {
		c.metrics.incError(kind.String())
	}
	if c.log != nil {
		c.log.Errorf("[%s] secure channel entering Error: %v", c.traceID, err)
	}

	if wasHandshaking {
		if c.cfg.Callbacks.OnConnectionFailed != nil {
			c.cfg.Callbacks.OnConnectionFailed(c, err)
		}
	} else if c.cfg.Callbacks.OnUnexpectedError != nil {
		c.cfg.Callbacks.OnUnexpectedError(c, err)
	}

	c.cfg.Transport.Close()
}

func (c *Connection) checkTokenNotExpired() error {
	if c.current == nil {
		return ErrNotConnected
	}
	if time.Now().After(c.current.token.expiresAt()) {
		return scerr.Wrap(scerr.KindSecurityChecksFailed, "current security token expired", ErrTokenExpired)
	}
	return nil
}
