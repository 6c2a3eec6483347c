package transport

import (
	"time"

	"github.com/pion/transport/v3/test"
)

// pipeTickInterval mirrors the teacher's PipeConfig.ProcessInterval default:
// how often the background goroutine drains test.Bridge's queued packets.
const pipeTickInterval = 1 * time.Millisecond

// NewPipe returns two in-memory TransportConnections wired to each other via
// a pion/transport/v3/test.Bridge, for deterministic tests that exercise the
// secure channel state machine without real network I/O. This is the same
// "virtual network" idiom the teacher's own pkg/transport/pipe.go builds on
// test.Bridge for, scaled down to the single-connection contract this
// module's TransportConnection needs (no multi-peer packet bridge, no
// condition simulation: the secure channel layer has its own handling for
// the error paths a lossy network would exercise, covered directly by the
// chunkcodec and securechannel test suites instead).
//
// test.Bridge only delivers a queued packet when Tick is called, so a small
// background goroutine ticks it continuously, the same role the teacher's
// Pipe.startAutoProcess plays for its own bridge.
func NewPipe() (a, b *TCPConnection, err error) {
	bridge := test.NewBridge()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pipeTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bridge.Tick()
			}
		}
	}()

	a, err = NewTCPConnection(TCPConfig{Conn: bridge.GetConn0()})
	if err != nil {
		close(stop)
		bridge.GetConn0().Close()
		bridge.GetConn1().Close()
		return nil, nil, err
	}
	b, err = NewTCPConnection(TCPConfig{Conn: bridge.GetConn1()})
	if err != nil {
		close(stop)
		a.Close()
		bridge.GetConn1().Close()
		return nil, nil, err
	}

	// Both TCPConnections' own Close already tear down their half of the
	// bridge; stop the ticker once both are closed so the goroutine doesn't
	// outlive the test that created this pipe.
	go func() {
		<-a.doneCh
		<-b.doneCh
		close(stop)
	}()

	return a, b, nil
}
