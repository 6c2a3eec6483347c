// Package msgbuffer implements the sized byte slabs the chunk codec builds
// chunks into: a single fixed-capacity MsgBuffer with position/length/max
// tracking, and MsgBuffers, a fixed-capacity collection of per-chunk
// buffers for one logical outgoing or incoming message.
package msgbuffer

import "errors"

var (
	ErrBufferFull      = errors.New("msgbuffer: buffer capacity exceeded")
	ErrReadPastLength  = errors.New("msgbuffer: read past current length")
	ErrTooManyChunks   = errors.New("msgbuffer: chunk count exceeds configured maximum")
)
