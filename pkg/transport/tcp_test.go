package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipe_SendAndReceive(t *testing.T) {
	a, b, err := NewPipe()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	received := make(chan []byte, 1)
	b.SetReceiveHandler(func(chunk []byte) {
		received <- append([]byte(nil), chunk...)
	})

	chunk := []byte{'M', 'S', 'G', 'F', 12, 0, 0, 0, 1, 2, 3, 4}
	var completed sync.WaitGroup
	completed.Add(1)
	err = a.Send(chunk, func(err error) {
		require.NoError(t, err)
		completed.Done()
	})
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, chunk, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chunk")
	}
	completed.Wait()
}

func TestPipe_CloseNotifiesBothSides(t *testing.T) {
	a, b, err := NewPipe()
	require.NoError(t, err)

	aClosed := make(chan struct{})
	bClosed := make(chan struct{})
	a.SetCloseHandler(func(err error) { close(aClosed) })
	b.SetCloseHandler(func(err error) { close(bClosed) })

	require.NoError(t, a.Close())

	select {
	case <-aClosed:
	case <-time.After(time.Second):
		t.Fatal("local close handler not invoked")
	}
	select {
	case <-bClosed:
	case <-time.After(time.Second):
		t.Fatal("remote close handler not invoked")
	}
}

func TestPipe_SendAfterCloseFails(t *testing.T) {
	a, b, err := NewPipe()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Close())
	err = a.Send([]byte{0, 0, 0, 0, 8, 0, 0, 0}, nil)
	require.ErrorIs(t, err, ErrClosed)
}
