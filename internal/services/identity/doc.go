// Package identity manages creation, wrapping and loading of the local
// long-term signing identity.
//
// It enforces passphrase policy, generates a P-256 signing key pair and
// persists it through a domain.KeyStore.
package identity
