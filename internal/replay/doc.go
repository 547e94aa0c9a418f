// Package replay rejects stale, duplicated and reordered protocol messages.
//
// A Guard keeps one global set of recently seen nonces, since nonces are random
// and unique across peers, and the highest accepted sequence number per peer.
// Every check happens under a single lock, so two concurrent deliveries of the
// same envelope can never both be accepted.
//
// Handshake messages are checked on nonce and timestamp only. Data messages
// also carry a per-peer sequence number that must strictly increase.
//
// State can optionally be mirrored to a Journal so a restarted process keeps
// rejecting messages it already accepted within the freshness window.
package replay
