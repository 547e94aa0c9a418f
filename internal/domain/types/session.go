package types

import "time"

// Role is the part a party plays in a handshake.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// HandshakeState is the per-peer key exchange state.
type HandshakeState string

const (
	StateIdle        HandshakeState = "idle"
	StateInitiating  HandshakeState = "initiating"
	StateInitiated   HandshakeState = "initiated"
	StateConfirming  HandshakeState = "confirming"
	StateResponding  HandshakeState = "responding"
	StateResponded   HandshakeState = "responded"
	StateEstablished HandshakeState = "established"
)

// Session is an established session with a peer.
type Session struct {
	Peer           UserID
	Key            SessionKey
	Role           Role
	NonceInitiator string
	NonceResponder string
	EstablishedAt  time.Time
}
