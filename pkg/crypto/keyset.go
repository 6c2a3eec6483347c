package crypto

// SecurityKeySet bundles the three symmetric secrets derived for one
// direction of traffic, mirroring the original stack's SC_SecurityKeySet
// (signKey, encryptKey, initVector) from key_sets.h.
type SecurityKeySet struct {
	SignKey    *SecretBuffer
	EncryptKey *SecretBuffer
	InitVector *SecretBuffer
}

// Zeroize clears all three secrets, safe to call on a zero-value or
// partially-populated SecurityKeySet.
func (ks *SecurityKeySet) Zeroize() {
	if ks == nil {
		return
	}
	ks.SignKey.Zeroize()
	ks.EncryptKey.Zeroize()
	ks.InitVector.Zeroize()
}

// SecurityKeySets is the pair derived from one handshake: the keys this
// side uses to sign/encrypt outgoing traffic (Sender) and the keys it uses
// to verify/decrypt incoming traffic (Receiver), per §4.2.
type SecurityKeySets struct {
	Sender   *SecurityKeySet
	Receiver *SecurityKeySet
}

// Zeroize clears both key sets.
func (ks *SecurityKeySets) Zeroize() {
	if ks == nil {
		return
	}
	ks.Sender.Zeroize()
	ks.Receiver.Zeroize()
}

// DeriveKeySets runs the profile's KDF once per side to expand
// (secret, seed) into a SecurityKeySet, then assigns sender/receiver by
// role, per §4.2's derive_key_sets.
//
// The client derives its Sender set from (serverNonce, clientNonce) and its
// Receiver set from (clientNonce, serverNonce); the server does the mirror
// image. Concretely: each side's Sender set is keyed on the OTHER side's
// nonce as secret and its OWN nonce as seed, matching the original stack's
// convention that a party signs with a key only the peer could also derive
// from the nonce the peer contributed as entropy.
func (p *Provider) DeriveKeySets(clientNonce, serverNonce []byte, isClient bool) *SecurityKeySets {
	var senderSecret, senderSeed, receiverSecret, receiverSeed []byte
	if isClient {
		senderSecret, senderSeed = serverNonce, clientNonce
		receiverSecret, receiverSeed = clientNonce, serverNonce
	} else {
		senderSecret, senderSeed = clientNonce, serverNonce
		receiverSecret, receiverSeed = serverNonce, clientNonce
	}

	return &SecurityKeySets{
		Sender:   p.deriveOneKeySet(senderSecret, senderSeed),
		Receiver: p.deriveOneKeySet(receiverSecret, receiverSeed),
	}
}

// deriveOneKeySet expands one (secret, seed) pair into a signKey ||
// encryptKey || initVector SecurityKeySet, using a single P_SHA-256 stream
// sliced into the three lengths the profile defines, per §4.2.
func (p *Provider) deriveOneKeySet(secret, seed []byte) *SecurityKeySet {
	signLen, encLen, ivLen := p.DeriveLens()
	stream := p.DerivePseudoRandom(secret, seed, signLen+encLen+ivLen)

	signKey := append([]byte(nil), stream[:signLen]...)
	encryptKey := append([]byte(nil), stream[signLen:signLen+encLen]...)
	initVector := append([]byte(nil), stream[signLen+encLen:signLen+encLen+ivLen]...)

	return &SecurityKeySet{
		SignKey:    NewSecretBuffer(signKey),
		EncryptKey: NewSecretBuffer(encryptKey),
		InitVector: NewSecretBuffer(initVector),
	}
}
