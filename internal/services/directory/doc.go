// Package directory publishes the local public key to the relay and resolves
// peers' long-term keys.
//
// The first key seen for a peer is pinned in the local store and used from
// then on, so a relay that later swaps a key cannot impersonate the peer.
// Forget drops a pin after the user has checked a new fingerprint out of band.
package directory
