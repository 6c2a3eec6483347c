// Package chunkcodec implements §4.3's sender-side chunk encoding pipeline
// and §4.4's receiver-side chunk decoding pipeline: header writing, padding,
// signing, encryption (and their inverses), and sequence-number checking.
// It is deliberately independent of the secure channel state machine —
// securechannel supplies the key material and consumes the results.
package chunkcodec

import "errors"

var (
	ErrEmptyBody        = errors.New("chunkcodec: message body is empty")
	ErrNoSecurityContext = errors.New("chunkcodec: neither symmetric nor asymmetric security context supplied")
	ErrSequenceGap      = errors.New("chunkcodec: sequence number is not contiguous with the last received")
	ErrRequestIDMismatch = errors.New("chunkcodec: chunk requestId does not match in-progress reassembly")
)
