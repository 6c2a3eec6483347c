package chunkcodec

import (
	"github.com/systerel/s2opc-sc/pkg/scerr"
	"github.com/systerel/s2opc-sc/pkg/wire"
)

// DecodedChunk is the result of running a single arriving chunk through
// the §4.4 receiver pipeline: headers stripped, decrypted, signature
// verified, padding removed, sequence number checked.
type DecodedChunk struct {
	MsgType         wire.MsgType
	Marker          wire.ChunkMarker
	SecureChannelID uint32
	RequestID       uint32
	SequenceNumber  uint32
	Body            []byte // the plaintext fragment, headers/padding/signature stripped
}

// Decode runs the §4.4 receiver pipeline over one raw transport-delivered
// chunk. Exactly one of sym/asym must be non-nil, selected by the caller
// from the peeked msgType (OPN → asym, MSG/CLO → sym) before calling Decode.
func Decode(raw []byte, sym *SymmetricContext, asym *AsymmetricContext, tracker *ReceiveSequenceTracker) (*DecodedChunk, error) {
	if sym == nil && asym == nil {
		return nil, ErrNoSecurityContext
	}

	msgHeader, n, err := wire.Decode(raw)
	if err != nil {
		return nil, err
	}
	off := n

	var plaintextStart int
	var extraPadByte bool
	var sigLen int

	if asym != nil {
		asymHeader, n2, err := wire.DecodeAsymmetricSecurityHeader(raw[off:])
		if err != nil {
			return nil, err
		}
		off += n2
		_ = asymHeader // the secure channel layer validates senderCertificate against the PKI before calling Decode
		plaintextStart = off
		sigLen = rsaPubSigLen(asym)
		extraPadByte = rsaKeyBitsOver2048(asym)
	} else {
		symHeader, n2, err := wire.DecodeSymmetricSecurityHeader(raw[off:])
		if err != nil {
			return nil, err
		}
		if symHeader.TokenID != sym.TokenID {
			return nil, scerr.New(scerr.KindSecurityChecksFailed, "symmetric security header tokenId does not match active token")
		}
		off += n2
		plaintextStart = off
		sigLen = sym.Provider.SymSigLen()
	}

	ciphertext := raw[plaintextStart:]

	var signed []byte
	if asym != nil {
		signed, err = asym.Provider.AsymDecrypt(asym.SenderPrivateKey, ciphertext)
	} else {
		signed, err = sym.Provider.SymDecrypt(ciphertext, sym.EncryptKey, sym.InitVector)
	}
	if err != nil {
		return nil, scerr.Wrap(scerr.KindSecurityChecksFailed, "chunk decryption failed", err)
	}
	if len(signed) < sigLen {
		return nil, scerr.New(scerr.KindSecurityChecksFailed, "decrypted chunk shorter than signature length")
	}

	plaintext := signed[:len(signed)-sigLen]
	signature := signed[len(signed)-sigLen:]

	toVerify := make([]byte, 0, plaintextStart+len(plaintext))
	toVerify = append(toVerify, raw[:plaintextStart]...)
	toVerify = append(toVerify, plaintext...)

	if asym != nil {
		if err := asym.Provider.AsymVerify(asym.PeerPublicKey, toVerify, signature); err != nil {
			return nil, err
		}
	} else {
		if err := sym.Provider.SymVerify(toVerify, sym.SignKey, signature); err != nil {
			return nil, err
		}
	}

	// Asymmetric chunks are encoded without padding (Encode passes a block
	// length of 1 on that path), so only symmetric chunks are unpadded.
	unpadded := plaintext
	if asym == nil {
		unpadded, err = removePadding(plaintext, extraPadByte)
		if err != nil {
			return nil, err
		}
	}

	seqHeader, n3, err := wire.DecodeSequenceHeader(unpadded)
	if err != nil {
		return nil, err
	}
	body := unpadded[n3:]

	if tracker != nil {
		if err := tracker.Check(seqHeader.SequenceNumber); err != nil {
			return nil, err
		}
	}

	return &DecodedChunk{
		MsgType:         msgHeader.MsgType,
		Marker:          msgHeader.IsFinal,
		SecureChannelID: msgHeader.SecureChannelID,
		RequestID:       seqHeader.RequestID,
		SequenceNumber:  seqHeader.SequenceNumber,
		Body:            body,
	}, nil
}

func rsaPubSigLen(asym *AsymmetricContext) int {
	return asym.Provider.AsymSigLen(&asym.SenderPrivateKey.PublicKey)
}

func rsaKeyBitsOver2048(asym *AsymmetricContext) bool {
	return asym.SenderPrivateKey.PublicKey.N.BitLen() > 2048
}
