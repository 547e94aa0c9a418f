package types

// UserID names a party known to the directory and the relay.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
