package chunkcodec

import (
	"math"
	"sync"

	"github.com/systerel/s2opc-sc/pkg/scerr"
)

// SendSequenceCounter hands out strictly increasing sequence numbers for
// outgoing chunks, continuing across logical messages per §4's "between
// consecutive messages, the sequence counter continues." Modeled on the
// teacher's MessageCounter (a mutex-guarded uint32 with a Next() method),
// but with OPC UA's own wrap rule instead of the teacher's random-init /
// exhaustion-flag convention, since the secure channel layer defines its
// own reset condition.
type SendSequenceCounter struct {
	mu    sync.Mutex
	value uint32
}

// NewSendSequenceCounter starts a counter at 1, the first valid OPC UA
// sequence number.
func NewSendSequenceCounter() *SendSequenceCounter {
	return &SendSequenceCounter{value: 1}
}

// Next returns the next sequence number and advances the counter, wrapping
// to 1 once the wrap boundary is crossed.
func (c *SendSequenceCounter) Next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.value
	if c.value > math.MaxUint32-1024 {
		c.value = 1
	} else {
		c.value++
	}
	return v
}

// ReceiveSequenceTracker enforces §4.4 step 3's check_seq_num_received:
// strict contiguity, with a wrap permitted once the last received value
// exceeds MaxUint32-1024. This is deliberately NOT a sliding-window replay
// bitmap: OPC UA chunks arrive over a single ordered
// TCP-UA byte stream, so the only valid next sequence number is
// lastReceived+1 (or a wrap to <=1024); there is no reordering to
// tolerate, unlike the datagram-replay problem a bitmap detector solves.
type ReceiveSequenceTracker struct {
	mu          sync.Mutex
	lastReceived uint32
	initialized bool
}

// NewReceiveSequenceTracker returns a tracker that accepts any sequence
// number as the first one seen.
func NewReceiveSequenceTracker() *ReceiveSequenceTracker {
	return &ReceiveSequenceTracker{}
}

// Check validates seqNum against the last received value and, if valid,
// records it as the new lastReceived. Returns scerr.KindInvalidSequenceNumber
// on a gap or out-of-order number.
func (t *ReceiveSequenceTracker) Check(seqNum uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		t.lastReceived = seqNum
		t.initialized = true
		return nil
	}

	if t.lastReceived > math.MaxUint32-1024 {
		if seqNum <= 1024 {
			t.lastReceived = seqNum
			return nil
		}
		return scerr.New(scerr.KindInvalidSequenceNumber, "expected wrapped sequence number <= 1024")
	}

	if seqNum != t.lastReceived+1 {
		return scerr.New(scerr.KindInvalidSequenceNumber, "sequence number is not lastReceived+1")
	}
	t.lastReceived = seqNum
	return nil
}

// LastReceived returns the last accepted sequence number.
func (t *ReceiveSequenceTracker) LastReceived() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReceived
}
