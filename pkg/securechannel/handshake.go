package securechannel

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/systerel/s2opc-sc/pkg/chunkcodec"
	"github.com/systerel/s2opc-sc/pkg/crypto"
	"github.com/systerel/s2opc-sc/pkg/keymanager"
	"github.com/systerel/s2opc-sc/pkg/scerr"
	"github.com/systerel/s2opc-sc/pkg/wire"
)

// currentSymContext builds a chunkcodec.SymmetricContext from the current
// token/keyset, selecting the Sender keys for an outgoing message or the
// Receiver keys for decoding an inbound one.
func (c *Connection) currentSymContext(forSend bool) (*chunkcodec.SymmetricContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNotConnected
	}
	return tokenSymContext(c.current, forSend), nil
}

func tokenSymContext(ts *tokenState, forSend bool) *chunkcodec.SymmetricContext {
	ks := ts.keySets.Sender
	if !forSend {
		ks = ts.keySets.Receiver
	}
	return &chunkcodec.SymmetricContext{
		Provider:   ts.provider,
		TokenID:    ts.token.TokenID,
		SignKey:    ks.SignKey.Expose(),
		EncryptKey: ks.EncryptKey.Expose(),
		InitVector: ks.InitVector.Expose(),
	}
}

// handleChunk is the transport's ReceiveHandler: the receiver pipeline's
// dispatch step. It never returns an error to the caller; failures drive
// the connection to StateError directly, per §4.7.
func (c *Connection) handleChunk(raw []byte) {
	c.metrics.incChunksReceived()

	if len(raw) < 3 {
		c.enterError(scerr.Wrap(scerr.KindEncodingError, "chunk shorter than message type prefix", scerr.ErrShortBuffer))
		return
	}
	msgType := wire.MsgType{raw[0], raw[1], raw[2]}

	switch msgType {
	case wire.MsgTypeOpen:
		c.handleOpenChunk(raw)
	case wire.MsgTypeMsg, wire.MsgTypeClose:
		c.handleSymmetricChunk(raw, msgType)
	default:
		// HEL/ACK/ERR belong to the transport handshake layer, out of
		// this module's scope (§1).
		if c.log != nil {
			c.log.Warnf("[%s] ignoring unexpected message type %s on secure channel", c.traceID, msgType)
		}
	}
}

// handleOpenChunk decodes an inbound OPN chunk. The sender certificate
// travels inside the asymmetric security header, so it is parsed and
// checked against the PKI before chunkcodec.Decode verifies the chunk's
// signature against that same certificate's public key.
func (c *Connection) handleOpenChunk(raw []byte) {
	asymHeader, _, err := wire.DecodeAsymmetricSecurityHeader(raw[wire.MessageHeaderSize:])
	if err != nil {
		c.enterError(err)
		return
	}

	provider, err := crypto.NewProvider(nil, c.cfg.SecurityPolicy)
	if err != nil {
		c.enterError(err)
		return
	}

	senderCert, err := keymanager.CertFromDER(asymHeader.SenderCertificate)
	if err != nil {
		c.enterError(err)
		return
	}
	peerPub, err := senderCert.CertPublicKey()
	if err != nil {
		c.enterError(err)
		return
	}
	if c.cfg.SecurityMode != SecurityModeNone {
		if err := provider.ValidateCertKeySize(peerPub); err != nil {
			c.enterError(err)
			return
		}
		if err := c.cfg.PKI.Validate(senderCert); err != nil {
			c.enterError(err)
			return
		}
		if !c.cfg.IsClient && c.cfg.PeerCertificate != nil && string(c.cfg.PeerCertificate.CertCopyDER()) != string(asymHeader.SenderCertificate) {
			c.enterError(scerr.Wrap(scerr.KindSecurityChecksFailed, "client certificate does not match the expected peer certificate", scerr.ErrCertificateInvalid))
			return
		}
	}

	asym := &chunkcodec.AsymmetricContext{
		Provider:         provider,
		SenderPrivateKey: c.cfg.LocalPrivateKey.RSA(),
		PeerPublicKey:    peerPub,
	}

	dc, err := chunkcodec.Decode(raw, nil, asym, c.recvSeq)
	if err != nil {
		c.enterError(err)
		return
	}

	if !c.reassembleAndMaybeComplete(dc) {
		return
	}
	body := c.reasm.TakeFinal(dc.RequestID)
	if body == nil {
		return
	}

	typeID, obj, err := decodeBody(c.handshakeRegistry, body)
	if err != nil {
		c.enterError(err)
		return
	}

	switch typeID {
	case binIDOpenRequest:
		c.processOpenRequest(dc, senderCert, obj.(*openRequestBody), provider)
	case binIDOpenResponse:
		c.processOpenResponse(dc, obj.(*openResponseBody), provider)
	default:
		c.enterError(scerr.New(scerr.KindEncodingError, "unexpected message type on the asymmetric path"))
	}
}

// reassembleAndMaybeComplete feeds dc into the reassembly table, firing
// OnSecureMessageAbort for any orphaned predecessor and
// OnSecureMessageChunk for an intermediate fragment. It returns true only
// when dc completed a message (the caller should then call
// c.reasm.TakeFinal), false otherwise (including on error, already
// reported via enterError).
func (c *Connection) reassembleAndMaybeComplete(dc *chunkcodec.DecodedChunk) bool {
	orphan, hasOrphan, err := c.reasm.Append(dc)
	if err != nil {
		c.enterError(err)
		return false
	}
	if hasOrphan && c.cfg.Callbacks.OnSecureMessageAbort != nil {
		c.cfg.Callbacks.OnSecureMessageAbort(c, orphan, scerr.New(scerr.KindAborted, "superseded by a new in-progress message"))
	}
	if dc.Marker != wire.ChunkFinal {
		if c.cfg.Callbacks.OnSecureMessageChunk != nil {
			c.cfg.Callbacks.OnSecureMessageChunk(c, dc.RequestID)
		}
		return false
	}
	return true
}

// processOpenRequest runs the server side of the handshake: accepting an
// inbound OpenSecureChannelRequest and answering it, per §4.5's
// "Connecting-Secure | OpenRequest valid -> Connected".
func (c *Connection) processOpenRequest(dc *chunkcodec.DecodedChunk, senderCert *keymanager.Cert, req *openRequestBody, provider *crypto.Provider) {
	serverNonce, err := provider.GenerateNonce()
	if err != nil {
		c.enterError(err)
		return
	}

	c.mu.Lock()
	c.secureChannelID = newSecureChannelID()
	c.nextTokenID++
	tokenID := c.nextTokenID
	revised := clampLifetime(time.Duration(req.RequestedLifetime) * time.Millisecond)
	token := SecurityToken{ChannelID: c.secureChannelID, TokenID: tokenID, CreatedAt: time.Now(), RevisedLifetime: revised}
	keySets := provider.DeriveKeySets(req.ClientNonce, serverNonce, false)
	c.current = &tokenState{token: token, keySets: keySets, provider: provider}
	c.state = StateConnected
	channelID := c.secureChannelID
	c.mu.Unlock()

	resp := &openResponseBody{
		SecureChannelID: channelID,
		TokenID:         tokenID,
		RevisedLifetime: uint32(revised / time.Millisecond),
		ServerNonce:     serverNonce,
	}
	encoded, err := encodeBody(binIDOpenResponse, resp)
	if err != nil {
		c.enterError(err)
		return
	}

	peerPub, err := senderCert.CertPublicKey()
	if err != nil {
		c.enterError(err)
		return
	}
	asym := &chunkcodec.AsymmetricContext{
		Provider:                      provider,
		SecurityPolicyURI:             string(c.cfg.SecurityPolicy),
		SenderPrivateKey:              c.cfg.LocalPrivateKey.RSA(),
		SenderCertificateDER:          c.cfg.LocalCertificate.CertCopyDER(),
		ReceiverPublicKey:             peerPub,
		ReceiverCertificateThumbprint: senderCert.CertThumbprint(),
	}

	if err := c.encodeAndSend(wire.MsgTypeOpen, channelID, dc.RequestID, encoded, nil, asym, nil); err != nil {
		c.enterError(err)
		return
	}

	c.armRenewTimer(token)
	if c.log != nil {
		c.log.Infof("[%s] secure channel %d opened (server), token %d, lifetime %s", c.traceID, channelID, tokenID, revised)
	}
	if c.cfg.Callbacks.OnConnected != nil {
		c.cfg.Callbacks.OnConnected(c)
	}
}

// processOpenResponse runs the client side of "Connecting-Secure |
// OpenResponse valid -> Connected", and also completes a Renew exchange
// when it arrives over the symmetric path (see handleSymmetricChunk).
func (c *Connection) processOpenResponse(dc *chunkcodec.DecodedChunk, resp *openResponseBody, provider *crypto.Provider) {
	c.mu.Lock()
	if dc.RequestID != c.openRequestID {
		c.mu.Unlock()
		c.enterError(scerr.New(scerr.KindInvalidRequestID, "open response request id does not match the pending request"))
		return
	}
	clientNonce := c.localNonce
	renewing := c.renewInFlight
	c.renewInFlight = false
	keySets := provider.DeriveKeySets(clientNonce, resp.ServerNonce, true)
	token := SecurityToken{
		ChannelID:       resp.SecureChannelID,
		TokenID:         resp.TokenID,
		CreatedAt:       time.Now(),
		RevisedLifetime: time.Duration(resp.RevisedLifetime) * time.Millisecond,
	}

	if renewing {
		c.previous = c.current
		c.previousDeadline = c.previous.token.overlapEndsAt()
	}
	c.current = &tokenState{token: token, keySets: keySets, provider: provider}
	c.secureChannelID = resp.SecureChannelID
	c.state = StateConnected
	c.mu.Unlock()

	c.armRenewTimer(token)
	if renewing {
		c.metrics.incRenewal("ok")
		if c.log != nil {
			c.log.Infof("[%s] secure channel %d renewed, token %d", c.traceID, resp.SecureChannelID, resp.TokenID)
		}
		return
	}

	if c.log != nil {
		c.log.Infof("[%s] secure channel %d opened (client), token %d, lifetime %s", c.traceID, resp.SecureChannelID, resp.TokenID, token.RevisedLifetime)
	}
	if c.cfg.Callbacks.OnConnected != nil {
		c.cfg.Callbacks.OnConnected(c)
	}
}

// handleSymmetricChunk decodes an inbound MSG/CLO chunk, trying the
// current token first and falling back to the previous one, per §4.2's
// key-set coexistence during the Renew overlap window.
func (c *Connection) handleSymmetricChunk(raw []byte, msgType wire.MsgType) {
	symHeader, _, err := wire.DecodeSymmetricSecurityHeader(raw[wire.MessageHeaderSize:])
	if err != nil {
		c.enterError(err)
		return
	}

	c.mu.Lock()
	var ts *tokenState
	switch {
	case c.current != nil && c.current.token.TokenID == symHeader.TokenID:
		ts = c.current
	case c.previous != nil && c.previous.token.TokenID == symHeader.TokenID && !time.Now().After(c.previousDeadline):
		ts = c.previous
	}
	c.mu.Unlock()

	if ts == nil {
		c.enterError(ErrUnknownToken)
		return
	}

	sym := tokenSymContext(ts, false)
	dc, err := chunkcodec.Decode(raw, sym, nil, c.recvSeq)
	if err != nil {
		c.enterError(err)
		return
	}

	if dc.Marker == wire.ChunkAbort {
		c.reasm.Abort(dc.RequestID)
		if c.cfg.Callbacks.OnSecureMessageAbort != nil {
			c.cfg.Callbacks.OnSecureMessageAbort(c, dc.RequestID, scerr.New(scerr.KindAborted, "message aborted by peer"))
		}
		return
	}

	if !c.reassembleAndMaybeComplete(dc) {
		return
	}
	body := c.reasm.TakeFinal(dc.RequestID)
	if body == nil {
		return
	}

	if msgType == wire.MsgTypeClose {
		c.teardown(nil)
		c.cfg.Transport.Close()
		return
	}

	typeID, obj, err := peekHandshakeTypeID(body)
	if err != nil {
		c.enterError(err)
		return
	}

	switch req := obj.(type) {
	case *openRequestBody:
		c.processRenewRequest(dc, req)
		return
	case *openResponseBody:
		c.processOpenResponse(dc, req, ts.provider)
		return
	}

	if c.cfg.Callbacks.OnSecureMessageComplete != nil {
		c.cfg.Callbacks.OnSecureMessageComplete(c, dc.RequestID, typeID, body[4:])
	}
}

// peekHandshakeTypeID reads body's leading binaryEncodingId and, if it
// names a Renew request/response, decodes it; any other id is returned
// unparsed so the caller can hand the raw body to its own service
// dispatch via OnSecureMessageComplete.
func peekHandshakeTypeID(body []byte) (uint32, interface{}, error) {
	if len(body) < 4 {
		return 0, nil, scerr.Wrap(scerr.KindEncodingError, "message body shorter than type prefix", scerr.ErrShortBuffer)
	}
	typeID := binary.LittleEndian.Uint32(body[0:4])
	switch typeID {
	case binIDOpenRequest:
		b := &openRequestBody{}
		if _, err := b.Decode(body[4:]); err != nil {
			return typeID, nil, err
		}
		return typeID, b, nil
	case binIDOpenResponse:
		b := &openResponseBody{}
		if _, err := b.Decode(body[4:]); err != nil {
			return typeID, nil, err
		}
		return typeID, b, nil
	default:
		return typeID, nil, nil
	}
}

// Renew sends an OpenSecureChannelRequest over the established symmetric
// channel to roll the token before it expires, per §4.5's "Connected |
// RenewRequest/Response signed by current keyset | Connected."
func (c *Connection) Renew() error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	channelID := c.secureChannelID
	c.renewInFlight = true
	c.nextRequestID++
	requestID := c.nextRequestID
	c.mu.Unlock()

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
	c.openRequestID = requestID
	c.mu.Unlock()

	body := &openRequestBody{ClientNonce: nonce, RequestedLifetime: c.cfg.RequestedLifetimeMS}
	encoded, err := encodeBody(binIDOpenRequest, body)
	if err != nil {
		return err
	}

	sym, err := c.currentSymContext(true)
	if err != nil {
		return err
	}

	err = c.encodeAndSend(wire.MsgTypeMsg, channelID, requestID, encoded, sym, nil, nil)
	if err != nil {
		c.metrics.incRenewal("failed")
	}
	return err
}

// processRenewRequest runs the server side of a Renew exchange. The
// response must still be encrypted under the OLD token: the peer cannot
// decrypt anything signed with a key it has not received yet. current
// moves to the new token before the response is encoded, so the response
// is encoded with oldTS's context explicitly.
func (c *Connection) processRenewRequest(dc *chunkcodec.DecodedChunk, req *openRequestBody) {
	c.mu.Lock()
	oldTS := c.current
	provider := oldTS.provider
	channelID := c.secureChannelID
	c.nextTokenID++
	tokenID := c.nextTokenID
	c.mu.Unlock()

	serverNonce, err := provider.GenerateNonce()
	if err != nil {
		c.enterError(err)
		return
	}

	revised := clampLifetime(time.Duration(req.RequestedLifetime) * time.Millisecond)
	token := SecurityToken{ChannelID: channelID, TokenID: tokenID, CreatedAt: time.Now(), RevisedLifetime: revised}
	keySets := provider.DeriveKeySets(req.ClientNonce, serverNonce, false)
	newTS := &tokenState{token: token, keySets: keySets, provider: provider}

	c.mu.Lock()
	c.previous = oldTS
	c.previousDeadline = oldTS.token.overlapEndsAt()
	c.current = newTS
	c.mu.Unlock()

	resp := &openResponseBody{SecureChannelID: channelID, TokenID: tokenID, RevisedLifetime: uint32(revised / time.Millisecond), ServerNonce: serverNonce}
	encoded, err := encodeBody(binIDOpenResponse, resp)
	if err != nil {
		c.enterError(err)
		return
	}

	sym := tokenSymContext(oldTS, true)
	if err := c.encodeAndSend(wire.MsgTypeMsg, channelID, dc.RequestID, encoded, sym, nil, nil); err != nil {
		c.enterError(err)
		return
	}

	c.armRenewTimer(token)
	c.metrics.incRenewal("ok")
	if c.log != nil {
		c.log.Infof("[%s] secure channel %d renewed, token %d", c.traceID, channelID, tokenID)
	}
}

func (c *Connection) armRenewTimer(token SecurityToken) {
	if c.renewTimer != nil {
		c.renewTimer.Stop()
	}
	d := time.Until(token.renewAt())
	if d <= 0 {
		d = time.Millisecond
	}
	c.renewTimer = time.AfterFunc(d, func() {
		c.mu.Lock()
		isClient := c.cfg.IsClient
		connected := c.state == StateConnected
		c.mu.Unlock()
		if connected && isClient {
			if err := c.Renew(); err != nil && c.log != nil {
				c.log.Warnf("[%s] renew failed: %v", c.traceID, err)
			}
		}
		c.sweepPreviousToken()
	})
}

// sweepPreviousToken drops the previous keyset once its overlap period
// has elapsed, the timer-driven half of SPEC_FULL.md Open Question 2's
// decision (the lazy, receive-path half lives in handleSymmetricChunk's
// token lookup, which stops matching previous once previousDeadline has
// passed).
func (c *Connection) sweepPreviousToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previous != nil && time.Now().After(c.previousDeadline) {
		c.previous.zeroize()
		c.previous = nil
	}
}

func clampLifetime(requested time.Duration) time.Duration {
	const min = 10 * time.Second
	const max = 24 * time.Hour
	if requested < min {
		return min
	}
	if requested > max {
		return max
	}
	return requested
}

// newSecureChannelID draws a random, non-zero channel id. A real server
// would also need to guard against colliding with another live channel's
// id; this demonstration stack only ever serves one Connection per
// transport, so a random draw is sufficient.
func newSecureChannelID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	id := binary.LittleEndian.Uint32(b[:])
	if id == 0 {
		id = 1
	}
	return id
}
