package chunkcodec

import "github.com/systerel/s2opc-sc/pkg/scerr"

// computePadding returns the padding bytes to append after
// sequenceHeader||body so that sequenceHeader||body||padding||signature is
// a multiple of blockLen, per §4.3 step 6: "pad bytes = N where N is the
// padding length; if the key length exceeds 256 bytes an extra
// padding-length byte is also appended."
//
// Every padding byte (including the optional extra byte) carries the value
// N-1, the same convention the original stack's padding/unpadding routine
// uses so the receiver can read the pad size back from the chunk's last
// byte before removing it.
func computePadding(plaintextLen, sigLen, blockLen int, extraByte bool) []byte {
	if blockLen <= 1 {
		return nil
	}
	// Smallest N >= 1 such that (plaintextLen + N + sigLen) % blockLen == 0.
	remainder := (plaintextLen + sigLen) % blockLen
	n := blockLen - remainder
	if n == 0 {
		n = blockLen
	}
	padValue := byte(n - 1)
	padLen := n
	if extraByte {
		padLen++
	}
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = padValue
	}
	return padding
}

// removePadding strips trailing padding from a decrypted plaintext region,
// reading the pad size from the last byte (or the last two bytes when
// extraByte is set), the inverse of computePadding.
func removePadding(plaintext []byte, extraByte bool) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmptyBody
	}
	padValue := plaintext[len(plaintext)-1]
	padLen := int(padValue) + 1
	if extraByte {
		padLen++
	}
	if padLen > len(plaintext) {
		return nil, scerr.Wrap(scerr.KindSecurityChecksFailed, "invalid chunk padding", scerr.ErrPaddingInvalid)
	}
	return plaintext[:len(plaintext)-padLen], nil
}
