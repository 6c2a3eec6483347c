package chunkcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-sc/pkg/crypto"
	"github.com/systerel/s2opc-sc/pkg/wire"
)

func newTestProvider(t *testing.T) *crypto.Provider {
	t.Helper()
	p, err := crypto.NewProvider(nil, crypto.PolicyBasic256Sha256)
	require.NoError(t, err)
	return p
}

func TestEncodeDecode_SymmetricSingleChunk(t *testing.T) {
	provider := newTestProvider(t)
	clientNonce, err := provider.GenerateNonce()
	require.NoError(t, err)
	serverNonce, err := provider.GenerateNonce()
	require.NoError(t, err)

	clientSets := provider.DeriveKeySets(clientNonce, serverNonce, true)
	serverSets := provider.DeriveKeySets(clientNonce, serverNonce, false)

	senderCtx := &SymmetricContext{
		Provider:   provider,
		TokenID:    1,
		SignKey:    clientSets.Sender.SignKey.Expose(),
		EncryptKey: clientSets.Sender.EncryptKey.Expose(),
		InitVector: clientSets.Sender.InitVector.Expose(),
	}
	receiverCtx := &SymmetricContext{
		Provider:   provider,
		TokenID:    1,
		SignKey:    serverSets.Receiver.SignKey.Expose(),
		EncryptKey: serverSets.Receiver.EncryptKey.Expose(),
		InitVector: serverSets.Receiver.InitVector.Expose(),
	}

	body := []byte("a short OPC UA service request body")
	req := &EncodeRequest{
		MsgType:         wire.MsgTypeMsg,
		SecureChannelID: 7,
		RequestID:       42,
		Body:            body,
		ChunkSize:       4096,
		MaxChunks:       8,
		Sym:             senderCtx,
		Sequence:        NewSendSequenceCounter(),
	}

	chunks, err := Encode(req)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	tracker := NewReceiveSequenceTracker()
	dc, err := Decode(chunks[0], receiverCtx, nil, tracker)
	require.NoError(t, err)
	require.Equal(t, wire.ChunkFinal, dc.Marker)
	require.Equal(t, uint32(42), dc.RequestID)
	require.Equal(t, body, dc.Body)
}

func TestEncodeDecode_SymmetricMultiChunk(t *testing.T) {
	provider := newTestProvider(t)
	clientNonce, err := provider.GenerateNonce()
	require.NoError(t, err)
	serverNonce, err := provider.GenerateNonce()
	require.NoError(t, err)

	clientSets := provider.DeriveKeySets(clientNonce, serverNonce, true)
	serverSets := provider.DeriveKeySets(clientNonce, serverNonce, false)

	senderCtx := &SymmetricContext{
		Provider: provider, TokenID: 3,
		SignKey:    clientSets.Sender.SignKey.Expose(),
		EncryptKey: clientSets.Sender.EncryptKey.Expose(),
		InitVector: clientSets.Sender.InitVector.Expose(),
	}
	receiverCtx := &SymmetricContext{
		Provider: provider, TokenID: 3,
		SignKey:    serverSets.Receiver.SignKey.Expose(),
		EncryptKey: serverSets.Receiver.EncryptKey.Expose(),
		InitVector: serverSets.Receiver.InitVector.Expose(),
	}

	body := make([]byte, 2000)
	for i := range body {
		body[i] = byte(i)
	}

	req := &EncodeRequest{
		MsgType:         wire.MsgTypeMsg,
		SecureChannelID: 1,
		RequestID:       1,
		Body:            body,
		ChunkSize:       256, // force multiple chunks
		MaxChunks:       64,
		Sym:             senderCtx,
		Sequence:        NewSendSequenceCounter(),
	}

	chunks, err := Encode(req)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	tracker := NewReceiveSequenceTracker()
	table := NewReassemblyTable(64)
	var final []byte
	for _, raw := range chunks {
		dc, err := Decode(raw, receiverCtx, nil, tracker)
		require.NoError(t, err)
		_, _, err = table.Append(dc)
		require.NoError(t, err)
		if dc.Marker == wire.ChunkFinal {
			final = table.TakeFinal(dc.RequestID)
		}
	}
	require.Equal(t, body, final)
}

func TestDecode_RejectsTamperedSignature(t *testing.T) {
	provider := newTestProvider(t)
	clientNonce, _ := provider.GenerateNonce()
	serverNonce, _ := provider.GenerateNonce()
	clientSets := provider.DeriveKeySets(clientNonce, serverNonce, true)
	serverSets := provider.DeriveKeySets(clientNonce, serverNonce, false)

	senderCtx := &SymmetricContext{
		Provider: provider, TokenID: 1,
		SignKey:    clientSets.Sender.SignKey.Expose(),
		EncryptKey: clientSets.Sender.EncryptKey.Expose(),
		InitVector: clientSets.Sender.InitVector.Expose(),
	}
	receiverCtx := &SymmetricContext{
		Provider: provider, TokenID: 1,
		SignKey:    serverSets.Receiver.SignKey.Expose(),
		EncryptKey: serverSets.Receiver.EncryptKey.Expose(),
		InitVector: serverSets.Receiver.InitVector.Expose(),
	}

	chunks, err := Encode(&EncodeRequest{
		MsgType: wire.MsgTypeMsg, SecureChannelID: 1, RequestID: 1,
		Body: []byte("tamper me"), ChunkSize: 4096, MaxChunks: 4,
		Sym: senderCtx, Sequence: NewSendSequenceCounter(),
	})
	require.NoError(t, err)

	tampered := append([]byte(nil), chunks[0]...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = Decode(tampered, receiverCtx, nil, NewReceiveSequenceTracker())
	require.Error(t, err)
}

func TestReceiveSequenceTracker_RejectsGap(t *testing.T) {
	tr := NewReceiveSequenceTracker()
	require.NoError(t, tr.Check(5))
	require.Error(t, tr.Check(7))
}

func TestReceiveSequenceTracker_WrapAllowed(t *testing.T) {
	tr := &ReceiveSequenceTracker{lastReceived: 4294966273, initialized: true} // MaxUint32-1022
	require.NoError(t, tr.Check(1))
}
