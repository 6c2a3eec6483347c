package securechannel

import (
	"time"

	"github.com/systerel/s2opc-sc/pkg/crypto"
)

// SecurityToken identifies one key-set generation on a secure channel,
// per §3.1. Immutable once accepted.
type SecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       time.Time
	RevisedLifetime time.Duration
}

// renewAt is the instant the channel must initiate Renew: 75% of the
// token's revised lifetime, per §4.5.
func (t SecurityToken) renewAt() time.Time {
	return t.CreatedAt.Add(t.RevisedLifetime * 75 / 100)
}

// expiresAt is the instant the token itself becomes unusable for new
// outgoing messages, per §4.7's "expired token on receive".
func (t SecurityToken) expiresAt() time.Time {
	return t.CreatedAt.Add(t.RevisedLifetime)
}

// overlapEndsAt is the instant a superseded token's keyset must be
// zeroised, the revisedLifetime*1.25 bound decided in SPEC_FULL.md's Open
// Question 2.
func (t SecurityToken) overlapEndsAt() time.Time {
	return t.CreatedAt.Add(t.RevisedLifetime * 125 / 100)
}

// tokenState bundles one generation's token, derived key sets, and the
// crypto provider instance they were derived under.
type tokenState struct {
	token    SecurityToken
	keySets  *crypto.SecurityKeySets
	provider *crypto.Provider
}

func (ts *tokenState) zeroize() {
	if ts == nil {
		return
	}
	ts.keySets.Zeroize()
}
