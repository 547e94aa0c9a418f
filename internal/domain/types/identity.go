package types

import "crypto/ecdsa"

// Identity is the local user's long-term signing identity. SigningPrivate is
// only populated after unwrapping and is never serialised.
type Identity struct {
	UserID         UserID            `json:"user_id"`
	SigningPublic  PublicKey         `json:"signing_public"`
	SigningPrivate *ecdsa.PrivateKey `json:"-"`
}
