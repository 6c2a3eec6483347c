// Package scerr defines the error taxonomy shared by every layer of the
// OPC UA secure channel implementation.
package scerr

import (
	"errors"
	"fmt"
)

// Kind classifies a secure-channel error so callers can branch on the
// taxonomy without string matching, independent of the wrapped cause.
type Kind uint8

const (
	// KindInvalidParameters is a caller-side contract violation (length
	// mismatch, nil input). Recovered locally; never surfaced as a
	// protocol error.
	KindInvalidParameters Kind = iota
	// KindInvalidState is an operation attempted in the wrong connection
	// state.
	KindInvalidState
	// KindEncodingError is malformed or truncated wire data.
	KindEncodingError
	// KindSecurityChecksFailed covers signature mismatch, bad padding,
	// invalid certificate, expired token, or replay.
	KindSecurityChecksFailed
	// KindInvalidSequenceNumber is a chunking/framing sequence violation.
	KindInvalidSequenceNumber
	// KindInvalidRequestID is a chunking/framing request-id violation.
	KindInvalidRequestID
	// KindTooManyChunks means the reassembly table exceeded its bound.
	KindTooManyChunks
	// KindMessageTooLarge means an encoded message exceeded its bound.
	KindMessageTooLarge
	// KindUnknownEncoding is an unrecognised binaryEncodingId.
	KindUnknownEncoding
	// KindConnectionFailed is a terminal transport failure.
	KindConnectionFailed
	// KindDisconnected means the channel is no longer usable.
	KindDisconnected
	// KindAborted means the peer aborted an in-flight message.
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameters:
		return "InvalidParameters"
	case KindInvalidState:
		return "InvalidState"
	case KindEncodingError:
		return "EncodingError"
	case KindSecurityChecksFailed:
		return "SecurityChecksFailed"
	case KindInvalidSequenceNumber:
		return "InvalidSequenceNumber"
	case KindInvalidRequestID:
		return "InvalidRequestId"
	case KindTooManyChunks:
		return "TooManyChunks"
	case KindMessageTooLarge:
		return "MessageTooLarge"
	case KindUnknownEncoding:
		return "UnknownEncoding"
	case KindConnectionFailed:
		return "ConnectionFailed"
	case KindDisconnected:
		return "Disconnected"
	case KindAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Fault is a typed secure-channel error: a Kind plus the underlying cause.
// It implements error and supports errors.Is/As via Unwrap.
type Fault struct {
	Kind   Kind
	Reason string
	Err    error
}

func New(kind Kind, reason string) *Fault {
	return &Fault{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, err error) *Fault {
	return &Fault{Kind: kind, Reason: reason, Err: err}
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("securechannel: %s: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("securechannel: %s: %s", f.Kind, f.Reason)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is reports whether target is a *Fault with the same Kind, so callers can
// write errors.Is(err, scerr.New(scerr.KindInvalidSequenceNumber, "")).
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// KindOf extracts the Kind from err if it (or a wrapped cause) is a *Fault.
// Returns ok=false for plain errors.
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// Sentinel causes reused across packages so errors.Is works on the
// underlying cause as well as on the Kind.
var (
	ErrShortBuffer        = errors.New("scerr: buffer too short")
	ErrLengthMismatch     = errors.New("scerr: length mismatch")
	ErrNilInput           = errors.New("scerr: nil or empty input")
	ErrSignatureMismatch  = errors.New("scerr: signature mismatch")
	ErrPaddingInvalid     = errors.New("scerr: invalid padding")
	ErrUnknownPolicy      = errors.New("scerr: unknown security policy uri")
	ErrCertificateInvalid = errors.New("scerr: certificate invalid")
)
