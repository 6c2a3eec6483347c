package transport

import "net"

// ReceiveHandler is invoked once per self-framed chunk delivered by a
// TransportConnection, per §6.2. The chunk slice is only valid for the
// duration of the call; implementations that need to retain it must copy.
type ReceiveHandler func(chunk []byte)

// SendCompleteFunc is invoked exactly once for the Send call it was passed
// to, per §6.2's "on_complete fires exactly once per send." A non-nil err
// means the chunk was not delivered.
type SendCompleteFunc func(err error)

// CloseHandler is invoked once when the connection is closed, whether by
// the local or the remote side.
type CloseHandler func(err error)

// TransportConnection is the byte-transport contract the secure channel
// core requires (§6.2): a reliable, ordered, bidirectional stream of
// already self-framed chunks (each chunk carries its own length field per
// §6.1), with asynchronous send completion and a close notification. The
// core never parses a length prefix itself beyond what the chunk codec
// already reads from the message header.
type TransportConnection interface {
	// Send hands one already-encoded chunk to the transport. onComplete
	// fires exactly once, after the chunk has been written (or failed to
	// write). Send must not be called again for this connection before
	// the previous call's onComplete has fired; callers rely on the
	// secure channel's sendToken to guarantee this.
	Send(chunk []byte, onComplete SendCompleteFunc) error

	// SetReceiveHandler installs the callback invoked for each chunk
	// delivered by the peer. Must be called before the connection starts
	// receiving traffic.
	SetReceiveHandler(h ReceiveHandler)

	// SetCloseHandler installs the callback invoked once the connection
	// closes, for any reason.
	SetCloseHandler(h CloseHandler)

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr identifies the peer, for logging and diagnostics.
	RemoteAddr() net.Addr
}
