// Package handshake implements the four-message authenticated key exchange
// that establishes a session key between two parties.
//
// # Flow
//
// Initiator I and responder R each hold a long-term P-256 signing key whose
// public half is on record in the directory.
//
//  1. Init (I→R): I generates an ephemeral ECDH key and a nonce nI, signs
//     {I, R, longTermI, ephemeralI, nI, tI} and sends it.
//  2. Response (R→I): R checks freshness, the signature, that longTermI is
//     the key on record for I, and that nI is new. R then generates its own
//     ephemeral key and nonce nR, signs {R, I, longTermR, ephemeralR, nI, nR,
//     tR}, and derives the session key.
//  3. Confirm (I→R): I verifies the Response the same way, checks that nI is
//     echoed, derives the session key and sends AEAD("KEY_CONFIRMED_" ‖ nR).
//  4. Ack (R→I): R checks the confirmation, installs the session and replies
//     with AEAD("KEY_ACKNOWLEDGED_" ‖ nR). I checks it and installs the session.
//
// The session key is HKDF-SHA256(ECDH(eI, eR), salt = nI ‖ nR,
// info = "session-key-v1-" ‖ I ‖ "-" ‖ R).
//
// # State
//
// At most one handshake is pending per peer; every transition for a peer runs
// under that peer's lock. Ephemeral private keys live only inside the pending
// handshake and are dropped as soon as the session key is derived or the
// handshake is abandoned.
//
// # Glare
//
// When a pending initiator receives the peer's Init, the party with the
// greater user ID abandons its own attempt and responds; the other ignores the
// crossing Init and waits for its Response. Exactly one session results.
//
// # Errors
//
// Signature, freshness and replay failures on a message that belongs to the
// pending handshake abort it and return the peer to idle. Messages that do
// not match the pending state (late duplicates, stale Responses) are rejected
// with ErrUnexpectedMessage or ErrNonceMismatch and leave state untouched.
package handshake
