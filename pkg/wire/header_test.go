package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageHeader_RoundTrip(t *testing.T) {
	h := &MessageHeader{
		MsgType:         MsgTypeOpen,
		IsFinal:         ChunkFinal,
		Length:          64,
		SecureChannelID: 42,
	}
	buf := h.Encode()
	require.Len(t, buf, MessageHeaderSize)

	got, n, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, MessageHeaderSize, n)
	require.Equal(t, h, got)
}

func TestMessageHeader_PatchLength(t *testing.T) {
	h := &MessageHeader{MsgType: MsgTypeMsg, IsFinal: ChunkIntermediate, SecureChannelID: 7}
	buf := h.Encode()
	PatchLength(buf, 1234)

	got, _, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(1234), got.Length)
}

func TestMessageHeader_Truncated(t *testing.T) {
	_, _, err := Decode([]byte{0x4f, 0x50})
	require.Error(t, err)
}

func TestAsymmetricSecurityHeader_RoundTrip(t *testing.T) {
	h := &AsymmetricSecurityHeader{
		SecurityPolicyURI:            "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256",
		SenderCertificate:            []byte{0x01, 0x02, 0x03},
		ReceiverCertificateThumbprint: []byte{0xaa, 0xbb},
	}
	buf := h.Encode()
	require.Equal(t, h.Size(), len(buf))

	got, n, err := DecodeAsymmetricSecurityHeader(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, h, got)
}

func TestAsymmetricSecurityHeader_NullCertificate(t *testing.T) {
	h := &AsymmetricSecurityHeader{SecurityPolicyURI: "none"}
	buf := h.Encode()

	got, _, err := DecodeAsymmetricSecurityHeader(buf)
	require.NoError(t, err)
	require.Nil(t, got.SenderCertificate)
	require.Nil(t, got.ReceiverCertificateThumbprint)
}

func TestSymmetricSecurityHeader_RoundTrip(t *testing.T) {
	h := &SymmetricSecurityHeader{TokenID: 99}
	buf := h.Encode()
	require.Len(t, buf, SymmetricSecurityHeaderSize)

	got, n, err := DecodeSymmetricSecurityHeader(buf)
	require.NoError(t, err)
	require.Equal(t, SymmetricSecurityHeaderSize, n)
	require.Equal(t, h, got)
}

func TestSequenceHeader_RoundTrip(t *testing.T) {
	h := &SequenceHeader{SequenceNumber: 1001, RequestID: 7}
	buf := h.Encode()
	require.Len(t, buf, SequenceHeaderSize)

	got, n, err := DecodeSequenceHeader(buf)
	require.NoError(t, err)
	require.Equal(t, SequenceHeaderSize, n)
	require.Equal(t, h, got)
}

func TestSequenceHeader_Truncated(t *testing.T) {
	_, _, err := DecodeSequenceHeader([]byte{1, 2, 3})
	require.Error(t, err)
}
