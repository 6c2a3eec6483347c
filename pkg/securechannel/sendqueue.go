package securechannel

import (
	"sync"

	"github.com/systerel/s2opc-sc/pkg/transport"
)

// sendJob is one FIFO entry: encode is deferred until the job is actually
// dequeued, since it must run against whichever token/keyset is current
// at that moment, not at Enqueue time.
type sendJob struct {
	encode func() ([][]byte, error)
	done   func(error)
}

// sendQueue is the per-connection Send Action Queue of §4.6: a FIFO of
// pending messages guarded by a single boolean "available" token rather
// than a general mutex held for the encode+flush pipeline's duration.
// Exactly one message is ever being chunked/flushed at a time; the token
// is released by the transport's completion callback for that message's
// last chunk, which re-arms the queue.
type sendQueue struct {
	transport transport.TransportConnection

	mu        sync.Mutex
	pending   []sendJob
	available bool
}

func newSendQueue(t transport.TransportConnection) *sendQueue {
	return &sendQueue{transport: t, available: true}
}

// enqueue appends a job and attempts to drain immediately.
func (q *sendQueue) enqueue(encode func() ([][]byte, error), done func(error)) {
	q.mu.Lock()
	q.pending = append(q.pending, sendJob{encode: encode, done: done})
	q.mu.Unlock()
	q.drain()
}

func (q *sendQueue) drain() {
	q.mu.Lock()
	if !q.available || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.available = false
	q.mu.Unlock()

	chunks, err := job.encode()
	if err != nil {
		q.release()
		job.done(err)
		return
	}
	if len(chunks) == 0 {
		q.release()
		job.done(nil)
		return
	}

	q.sendChunks(chunks, job.done)
}

// sendChunks hands chunks to the transport one at a time, in order,
// completing job.done only once the last chunk's on_complete has fired
// (or an earlier one failed), per §4.3 step 6's "hand to transport" and
// §4.6's "on the transport's per-chunk completion of the last chunk, the
// pipeline sets sendToken = true."
func (q *sendQueue) sendChunks(chunks [][]byte, done func(error)) {
	var sendNext func(i int)
	sendNext = func(i int) {
		err := q.transport.Send(chunks[i], func(sendErr error) {
			if sendErr != nil {
				q.release()
				done(sendErr)
				return
			}
			if i == len(chunks)-1 {
				q.release()
				done(nil)
				return
			}
			sendNext(i + 1)
		})
		if err != nil {
			q.release()
			done(err)
		}
	}
	sendNext(0)
}

func (q *sendQueue) release() {
	q.mu.Lock()
	q.available = true
	q.mu.Unlock()
	q.drain()
}
