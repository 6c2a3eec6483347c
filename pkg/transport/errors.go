package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no receive handler is configured.
	ErrNoHandler = errors.New("transport: no receive handler configured")

	// ErrNotStarted is returned when an operation requires a started transport.
	ErrNotStarted = errors.New("transport: not started")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrSendFailed is returned when sending a chunk fails.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrSendInProgress is returned when Send is called while a previous
	// send on the same connection has not completed. The secure channel
	// layer's send queue (sendToken) is expected to prevent this from ever
	// happening; its appearance signals a caller bug, not a protocol error.
	ErrSendInProgress = errors.New("transport: send already in progress on this connection")

	// ErrShortChunk is returned when the peer closes the connection before
	// a full self-framed chunk (per its length field) was received.
	ErrShortChunk = errors.New("transport: connection closed before a full chunk was received")
)
