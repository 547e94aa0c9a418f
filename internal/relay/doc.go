// Package relay is the store-and-forward service between parley peers, and
// the HTTP client for it.
//
// The relay is untrusted. It sees only public keys and ciphertext, and every
// peer verifies what it receives: handshake messages are signed and data is
// sealed under session keys the relay never learns. It may drop, delay,
// duplicate or reorder envelopes; the protocol tolerates all of these.
//
// HTTP API
//
//	POST /keys                      {"user_id", "public_key"}
//	GET  /keys/{user}               the published public key, 404 if none
//	POST /msg/{user}                enqueue an Envelope for {user}
//	GET  /msg/{user}?limit=N        up to N queued envelopes, oldest first
//	POST /msg/{user}/ack            {"count": N} drop the first N envelopes
//	GET  /metrics                   Prometheus metrics
//	GET  /healthz                   liveness
//
// Envelope posts are rate limited per sender with a token bucket. All state
// is held in memory.
package relay
