package chunkcodec

import (
	"github.com/systerel/s2opc-sc/pkg/msgbuffer"
	"github.com/systerel/s2opc-sc/pkg/scerr"
	"github.com/systerel/s2opc-sc/pkg/wire"
)

// EncodeRequest is one logical outgoing message: an already-serialised
// body (the ExpandedNodeId type prefix followed by the object's fields,
// per §6.1) plus the framing and security context needed to chunk it.
type EncodeRequest struct {
	MsgType         wire.MsgType
	SecureChannelID uint32
	RequestID       uint32
	Body            []byte
	ChunkSize       int
	MaxChunks       int

	// Exactly one of Sym/Asym must be set; a request with neither is
	// rejected rather than silently sent in the clear, since §6.4's None
	// profile still routes through SymEncrypt/SymSign as no-ops.
	Sym  *SymmetricContext
	Asym *AsymmetricContext

	Sequence *SendSequenceCounter
}

// Encode runs the §4.3 sender pipeline, returning the wire bytes of each
// chunk in order, ready for TransportConnection.Send.
func Encode(req *EncodeRequest) ([][]byte, error) {
	if req.Sym == nil && req.Asym == nil {
		return nil, ErrNoSecurityContext
	}

	nonEncryptedHeaderSize := wire.MessageHeaderSize
	var asymHeader *wire.AsymmetricSecurityHeader
	var symHeader *wire.SymmetricSecurityHeader

	if req.Asym != nil {
		asymHeader = &wire.AsymmetricSecurityHeader{
			SecurityPolicyURI:            req.Asym.SecurityPolicyURI,
			SenderCertificate:            req.Asym.SenderCertificateDER,
			ReceiverCertificateThumbprint: req.Asym.ReceiverCertificateThumbprint,
		}
		nonEncryptedHeaderSize += asymHeader.Size()
	} else {
		symHeader = &wire.SymmetricSecurityHeader{TokenID: req.Sym.TokenID}
		nonEncryptedHeaderSize += symHeader.Size()
	}

	sigLen, plainBlockLen, extraPadByte := sigAndBlockLen(req)
	maxBody := maxBodySize(nonEncryptedHeaderSize, req.ChunkSize, sigLen, plainBlockLen)
	if maxBody <= 0 {
		return nil, scerr.New(scerr.KindInvalidParameters, "chunk size too small for headers, signature and padding")
	}

	buffers := msgbuffer.NewMsgBuffers(req.ChunkSize, req.MaxChunks)

	body := req.Body
	var chunkOut [][]byte
	for {
		end := len(body)
		if end > maxBody {
			end = maxBody
		}
		fragment := body[:end]
		body = body[end:]
		isFinal := len(body) == 0

		seqNum := req.Sequence.Next()
		chunk, err := buffers.NewChunk(seqNum)
		if err != nil {
			return nil, err
		}

		marker := wire.ChunkIntermediate
		if isFinal {
			marker = wire.ChunkFinal
			chunk.Final = true
		}

		msgHeader := &wire.MessageHeader{
			MsgType:         req.MsgType,
			IsFinal:         marker,
			SecureChannelID: req.SecureChannelID,
		}
		if _, err := chunk.Buf.Write(msgHeader.Encode()); err != nil {
			return nil, err
		}
		if asymHeader != nil {
			if _, err := chunk.Buf.Write(asymHeader.Encode()); err != nil {
				return nil, err
			}
		} else {
			if _, err := chunk.Buf.Write(symHeader.Encode()); err != nil {
				return nil, err
			}
		}

		plaintextStart := chunk.Buf.Pos()
		seqHeader := &wire.SequenceHeader{SequenceNumber: seqNum, RequestID: req.RequestID}
		if _, err := chunk.Buf.Write(seqHeader.Encode()); err != nil {
			return nil, err
		}
		if _, err := chunk.Buf.Write(fragment); err != nil {
			return nil, err
		}

		padding := computePadding(chunk.Buf.Pos()-plaintextStart, sigLen, plainBlockLen, extraPadByte)
		if len(padding) > 0 {
			if _, err := chunk.Buf.Write(padding); err != nil {
				return nil, err
			}
		}

		plaintext := chunk.Buf.BytesFrom(plaintextStart)
		// The length field is part of the signed bytes, so the final chunk
		// length is written into the header before signing.
		cipherLen := len(plaintext) + sigLen
		if req.Asym != nil {
			cipherLen = req.Asym.Provider.AsymEncryptionLength(req.Asym.ReceiverPublicKey, cipherLen)
		}
		wire.PatchLength(chunk.Buf.Bytes(), uint32(plaintextStart+cipherLen))
		toSign := chunk.Buf.Bytes() // header .. plaintext, per "[header || sequenceHeader || body || padding]"

		out, err := signAndEncryptChunk(req, chunk.Buf, toSign, plaintext, plaintextStart)
		if err != nil {
			return nil, err
		}

		wire.PatchLength(out, uint32(len(out)))
		chunkOut = append(chunkOut, out)

		if isFinal {
			break
		}
	}

	return chunkOut, nil
}

// signAndEncryptChunk signs the plaintext chunk-so-far and encrypts
// everything from plaintextStart onward (including the appended
// signature), returning the final wire bytes, per §4.3 step 6's
// sign-then-encrypt-from-sequence-header ordering.
func signAndEncryptChunk(req *EncodeRequest, buf *msgbuffer.MsgBuffer, toSign, plaintext []byte, plaintextStart int) ([]byte, error) {
	if req.Sym != nil {
		sig := req.Sym.Provider.SymSign(toSign, req.Sym.SignKey)
		signed := append(append([]byte(nil), plaintext...), sig...)
		ciphertext, err := req.Sym.Provider.SymEncrypt(signed, req.Sym.EncryptKey, req.Sym.InitVector)
		if err != nil {
			return nil, err
		}
		return assembleChunk(buf, plaintextStart, ciphertext), nil
	}

	priv := req.Asym.SenderPrivateKey
	sig, err := req.Asym.Provider.AsymSign(priv, toSign)
	if err != nil {
		return nil, err
	}
	signed := append(append([]byte(nil), plaintext...), sig...)
	ciphertext, err := req.Asym.Provider.AsymEncrypt(req.Asym.ReceiverPublicKey, signed)
	if err != nil {
		return nil, err
	}
	return assembleChunk(buf, plaintextStart, ciphertext), nil
}

// assembleChunk splices ciphertext in place of the plaintext region,
// leaving the unencrypted headers untouched.
func assembleChunk(buf *msgbuffer.MsgBuffer, plaintextStart int, ciphertext []byte) []byte {
	out := make([]byte, plaintextStart+len(ciphertext))
	copy(out, buf.Bytes()[:plaintextStart])
	copy(out[plaintextStart:], ciphertext)
	return out
}

func sigAndBlockLen(req *EncodeRequest) (sigLen, blockLen int, extraPadByte bool) {
	if req.Sym != nil {
		return req.Sym.Provider.SymSigLen(), req.Sym.Provider.SymBlockLen(), false
	}
	pub := req.Asym.ReceiverPublicKey
	return req.Asym.Provider.AsymSigLen(pub), 1, pub.N.BitLen() > 2048
}

// maxBodySize implements §4.3's set_max_body_size: max_body = chunk_size -
// non_encrypted_headers - sig_len - 1 (pad byte) - cipher_overhead, rounded
// down to a multiple of plain_block_len. For the asymmetric path the
// "cipher_overhead" per-block bookkeeping is handled by the caller's
// RSA-OAEP chunking (AsymEncrypt), so blockLen is passed as 1 there and
// this reduces to a flat byte budget.
func maxBodySize(nonEncryptedHeaders, chunkSize, sigLen, plainBlockLen int) int {
	max := chunkSize - nonEncryptedHeaders - sigLen - 1 - wire.SequenceHeaderSize
	if plainBlockLen > 1 {
		max -= max % plainBlockLen
	}
	return max
}
