package msgbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMsgBuffer_WriteAndBytes(t *testing.T) {
	b := NewMsgBuffer(16)
	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), b.Bytes())
	require.Equal(t, 11, b.Remaining())
}

func TestMsgBuffer_OverflowsAtMax(t *testing.T) {
	b := NewMsgBuffer(4)
	_, err := b.Write([]byte("12345"))
	require.ErrorIs(t, err, ErrBufferFull)
}

func TestMsgBuffer_WriteAtPatchesWithoutMovingCursor(t *testing.T) {
	b := NewMsgBuffer(8)
	_, err := b.Write([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, b.WriteAt(0, []byte{0xAA}))
	require.Equal(t, byte(0xAA), b.Bytes()[0])
	require.Equal(t, 4, b.Pos())
}

func TestMsgBuffers_NewChunkRespectsMax(t *testing.T) {
	m := NewMsgBuffers(32, 2)
	_, err := m.NewChunk(1)
	require.NoError(t, err)
	_, err = m.NewChunk(2)
	require.NoError(t, err)
	_, err = m.NewChunk(3)
	require.ErrorIs(t, err, ErrTooManyChunks)
	require.Equal(t, 2, m.Len())
}

func TestMsgBuffers_MarkFinalOnlyAffectsLast(t *testing.T) {
	m := NewMsgBuffers(32, 4)
	_, _ = m.NewChunk(1)
	_, _ = m.NewChunk(2)
	m.MarkFinal()
	require.False(t, m.At(0).Final)
	require.True(t, m.At(1).Final)
}

func TestReassemblyBuffer_AppendAndOverflow(t *testing.T) {
	r := NewReassemblyBuffer(7, 2)
	require.NoError(t, r.Append([]byte("ab")))
	require.NoError(t, r.Append([]byte("cd")))
	require.Equal(t, []byte("abcd"), r.Bytes())

	require.ErrorIs(t, r.Append([]byte("e")), ErrTooManyChunks)
}
