// Package crypto exposes the primitives used by parley.
//
// Contents
//
//   - P-256 ECDSA long-term signing keys (GenerateSigningKeyPair)
//   - P-256 ECDH ephemeral keys and shared secrets (GenerateEphemeralKeyPair,
//     SharedSecret)
//   - Coordinate export/import of public keys with curve validation
//     (ExportPublicKey, ImportPublicKey, ExportEphemeralPublicKey,
//     ImportEphemeralPublicKey)
//   - HKDF-SHA256 session key derivation (DeriveSessionKey)
//   - AES-256-GCM with detached tags (Encrypt, Decrypt)
//   - Password wrapping of private keys with PBKDF2-SHA256 (WrapPrivateKey,
//     UnwrapPrivateKey)
//   - Random nonces and short fingerprints (NewNonce, Fingerprint)
//
// # Notes
//
// The curve, hash and cipher are fixed; nothing here negotiates algorithms.
// Derived secrets are returned in caller-owned buffers so callers can wipe them
// with internal/util/memzero once consumed.
package crypto
