package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAESCBC_KnownAnswer checks AES-256-CBC against the NIST SP 800-38A
// F.2.5 CBC-AES256.Encrypt vector (single block).
func TestAESCBC_KnownAnswer(t *testing.T) {
	key := mustHex(t, "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plaintext := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	wantCiphertext := mustHex(t, "f58c4c04d6e5f1ba779eabfb5f7bfbd6")

	got, err := AESCBCEncrypt(key, iv, plaintext)
	require.NoError(t, err)
	require.Equal(t, wantCiphertext, got)

	back, err := AESCBCDecrypt(key, iv, got)
	require.NoError(t, err)
	require.Equal(t, plaintext, back)
}

// TestPSHA256_TwoNonceDerivation exercises the exact shape §4.2 uses: a
// single P_SHA-256 stream sliced into signKey || encryptKey || initVector
// from a (secret, seed) nonce pair, checked for determinism, for a shorter
// output being a prefix of a longer one, and for swapping secret and seed
// changing the output (the known-answer check of the derived key sets is
// TestDeriveKeySets_IngopcsVector below).
func TestPSHA256_TwoNonceDerivation(t *testing.T) {
	clientNonce := mustHex(t, "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	serverNonce := mustHex(t, "202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f")

	out1 := PSHA256(serverNonce, clientNonce, 32+32+16)
	out2 := PSHA256(serverNonce, clientNonce, 32+32+16)
	require.Equal(t, out1, out2, "PSHA256 must be a deterministic function of its inputs")

	shorter := PSHA256(serverNonce, clientNonce, 32)
	require.Equal(t, out1[:32], shorter, "a shorter output must be a prefix of a longer one")

	swapped := PSHA256(clientNonce, serverNonce, 32+32+16)
	require.NotEqual(t, out1, swapped, "swapping secret and seed must change the output")
}

// TestDeriveKeySets_IngopcsVector checks DeriveKeySets against the source
// stack's own two-nonce known-answer vector (a real stub-client capture
// against the OPC Foundation reference code): given a fixed client/server
// nonce pair, the client's Sender set (secret=serverNonce, seed=clientNonce)
// and Receiver set (secret=clientNonce, seed=serverNonce) must come out to
// these exact bytes, not just be self-consistent.
func TestDeriveKeySets_IngopcsVector(t *testing.T) {
	provider, err := NewProvider(nil, PolicyBasic256Sha256)
	require.NoError(t, err)

	clientNonce := mustHex(t, "3d3b4768f275d5023c2145cbe3a4a592fb843643d791f7bd7fce75ff25128b68")
	serverNonce := mustHex(t, "ccee418cbc77c2ebb38d5ffac9d2a9d0a6821fa211798e71b2d65b3abb6aec8f")

	clientSets := provider.DeriveKeySets(clientNonce, serverNonce, true)
	require.Equal(t, mustHex(t, "86842427475799fa782efa5c63f5eb6f0b6dbf8a549dd5452247feaa5021714b"), clientSets.Sender.SignKey.Expose())
	require.Equal(t, mustHex(t, "d8de10ac4fb579f2718ddcb50ea68d1851c76644b26454e3f9339958d23429d5"), clientSets.Sender.EncryptKey.Expose())
	require.Equal(t, mustHex(t, "4167de62880e0bdc023aa133965c34ff"), clientSets.Sender.InitVector.Expose())
	require.Equal(t, mustHex(t, "f6db2ad48ad3776f83086b47e9f905ee00193f87e85ccde0c3bf7eb8650e236e"), clientSets.Receiver.SignKey.Expose())
	require.Equal(t, mustHex(t, "2c86aecfd5629ee05c49345bce3b2a7ca959a0bf4c9c281b8516a369650dbc4e"), clientSets.Receiver.EncryptKey.Expose())
	require.Equal(t, mustHex(t, "39a4f596bcbb99e0b48114f60fc6af21"), clientSets.Receiver.InitVector.Expose())

	serverSets := provider.DeriveKeySets(clientNonce, serverNonce, false)
	require.Equal(t, clientSets.Sender.SignKey.Expose(), serverSets.Receiver.SignKey.Expose())
	require.Equal(t, clientSets.Receiver.SignKey.Expose(), serverSets.Sender.SignKey.Expose())
}

// TestDeriveKeySets_ClientServerSymmetry checks that the client's Sender
// set equals the server's Receiver set and vice versa, which is the
// correctness property the wire protocol actually depends on: each side
// must decrypt what the other encrypted.
func TestDeriveKeySets_ClientServerSymmetry(t *testing.T) {
	provider, err := NewProvider(nil, PolicyBasic256Sha256)
	require.NoError(t, err)

	clientNonce, err := provider.GenerateNonce()
	require.NoError(t, err)
	serverNonce, err := provider.GenerateNonce()
	require.NoError(t, err)

	clientSets := provider.DeriveKeySets(clientNonce, serverNonce, true)
	serverSets := provider.DeriveKeySets(clientNonce, serverNonce, false)

	require.Equal(t, clientSets.Sender.SignKey.Expose(), serverSets.Receiver.SignKey.Expose())
	require.Equal(t, clientSets.Sender.EncryptKey.Expose(), serverSets.Receiver.EncryptKey.Expose())
	require.Equal(t, clientSets.Sender.InitVector.Expose(), serverSets.Receiver.InitVector.Expose())

	require.Equal(t, clientSets.Receiver.SignKey.Expose(), serverSets.Sender.SignKey.Expose())
	require.Equal(t, clientSets.Receiver.EncryptKey.Expose(), serverSets.Sender.EncryptKey.Expose())
	require.Equal(t, clientSets.Receiver.InitVector.Expose(), serverSets.Sender.InitVector.Expose())

	require.Len(t, clientSets.Sender.SignKey.Expose(), SHA256LenBytes)
	require.Len(t, clientSets.Sender.EncryptKey.Expose(), AESCBCKeySize)
	require.Len(t, clientSets.Sender.InitVector.Expose(), AESCBCBlockSize)
}

// ingopcsServerDERHex is the source stack's own "INGOPCS_SERVER" leaf
// certificate fixture (server/server.der in the source test suite), used
// verbatim below for the thumbprint known-answer vector.
const ingopcsServerDERHex = "308204bb308202a3a003020102020106300d06092a864886f70d01010b0500308188310b3009060355040613024652310c300a06035504080c03494446310e30" +
	"0c06035504070c0550415249533110300e060355040a0c07494e474f5043533110300e060355040b0c07494e474f5043533113301106035504030c0a494e474f" +
	"5043532043413122302006092a864886f70d0109011613696e676f70637340737973746572656c2e6672301e170d3136313030333038313333385a170d313731" +
	"3030333038313333385a3057310b3009060355040613024652310c300a06035504080c03494446310e300c06035504070c0550415249533111300f060355040a" +
	"0c08535953544552454c3117301506035504030c0e494e474f5043535f53455256455230820122300d06092a864886f70d01010105000382010f003082010a02" +
	"82010100ad9921f924639e125c0cde520755f44028d65eaecaf16867823be446b977e0631d64509953b7fe467d1afc449bca6edfe11e1e6d71207c33e2250f3c" +
	"66875d369a1cda02efc661e73bdf01c517470f2a09ea500b56842fcb125779917b8deb58dc6f2f9511e66c29ba57a69435bc3aab1a23982f531ec763f494ef8b" +
	"6c6360ea194d7ca2efd777b9a32c295809cf39d2c2ed0dbfc4bfd6fbd24bf782f8d83795cb51964e1dd0a8cdd8f2a0ef2fd0d2b126eb8fc00f00411f362cd4e3" +
	"0a0a20cde108efa69faede8d9f756838306569c6ea27f1ba5aefac790ff18bcbcc81d7acaa1fac2acede3acd2a61d7b62f202c7bab7df08ee2241a0f08dffdb6" +
	"2914cf210203010001a360305e301d0603551d0e04160414a3f8e031d1f6f412bace4ddf0eeb62da209d3c79301f0603551d23041830168014db180c557814e7" +
	"cffd868827b7b00d28f572abb2300f0603551d130101ff040530030101ff300b0603551d0f040403020106300d06092a864886f70d01010b0500038202010039" +
	"ce25d423f265c38a6df573c1027c6997cc4e5d44db3135ac782180253c6bbdc5017464630d8b17853b214a7866f092a25316f296d342df15ccb443392fa914d5" +
	"513a91ddc6112cdb70806e9f89898e911c1928ff5ce9139649a8ae11cef04ec645f2f4aef6187c1f044de6ae8845373f9eea33d9148125815ac472f4ab1fe601" +
	"b99ca01cb683005728ef2f588339f33d433db7afbf1e0695ca5fa5ee5fcd5324a41eadf1ef717c90f2920be83615176df11d347a1e291602a66b248578c2648b" +
	"f77009f28c3e0bfdceb7acf2f248939bcb260357db378de10eabcf30432952fb9c5a717fcf75884c697253ff6dca2365fcda670921180939e011b195f1190565" +
	"efa25daefe393d8a67261abe881e98264258fef473423d15c3fc5fa87bce0b8c22dff409017842e0c60dfeb5c88ccc8005080c803c4935a82d762877b9513584" +
	"6dfd407d49fc3faa523169bfdbbeb5fc5880fed2fa518ee017e42edfa872e781052a47e294c8d82c9858877496dfb76f6bd1c4ab1f0eaa71f48296d88a9950ce" +
	"cc2937b32eaf54eb14fabf84d4519c3e9d5f3434570a24a16f19efa5a7df4a6fc76f317021188b2e39421bb36289f26f71264fd7962eb513030d14b5262b220b" +
	"fa067ba9c1255458d6d570a15f715bc00c2d405809652ac372e2cbc2fdfd7b20681310829ca88ef844ccd8c89a8c5be2bf893c1299380675e82455cbef6ccc"

// TestSHA1Thumbprint checks the thumbprint helper against the source
// stack's own certificate fixture and its openssl/mbedtls-computed
// thumbprint, pinning the 20-byte SHA-1 contract §4.1 specifies for
// CertThumbprint, rather than an arbitrary byte string with no known
// answer to check against.
func TestSHA1Thumbprint(t *testing.T) {
	certDER := mustHex(t, ingopcsServerDERHex)
	require.Len(t, certDER, 1215)

	want := mustHex(t, "af17d03e1605277489815ab88bc4760655b3e2cd")

	got := SHA1Thumbprint(certDER)
	require.Equal(t, want, got[:])
	require.Len(t, got, SHA1LenBytes)

	gotSlice := SHA1ThumbprintSlice(certDER)
	require.Equal(t, got[:], gotSlice)
}

// TestAsymRoundTrip_MultiBlock exercises AsymEncrypt/AsymDecrypt with a
// plaintext long enough to force chunking across more than one RSA-OAEP
// block, per §4.1's "operate in blocks of the key's cipher/plain sizes".
func TestAsymRoundTrip_MultiBlock(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plainBlock := AsymPlainBlockSize(&priv.PublicKey)
	plaintext := make([]byte, plainBlock*2+17) // spans three blocks
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ciphertext, err := AsymEncrypt(&priv.PublicKey, plaintext)
	require.NoError(t, err)
	require.Equal(t, AsymEncryptionLength(&priv.PublicKey, len(plaintext)), len(ciphertext))

	decrypted, err := AsymDecrypt(priv, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

// TestAsymSignVerify checks RSASSA-PKCS1-v1_5/SHA-256 round-trips and
// rejects a tampered message.
func TestAsymSignVerify(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	data := []byte("OpenSecureChannel request body")
	sig, err := AsymSign(priv, data)
	require.NoError(t, err)
	require.Len(t, sig, AsymSigLen(&priv.PublicKey))

	require.NoError(t, AsymVerify(&priv.PublicKey, data, sig))
	require.Error(t, AsymVerify(&priv.PublicKey, append(data, 0x00), sig))
}

// TestValidateRSAKeySize pins the 2048-4096 bit policy bound.
func TestValidateRSAKeySize(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	require.ErrorIs(t, ValidateRSAKeySize(&small.PublicKey), ErrRSAKeyTooSmall)

	ok, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	require.NoError(t, ValidateRSAKeySize(&ok.PublicKey))
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
