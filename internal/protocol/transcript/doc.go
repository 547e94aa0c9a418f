// Package transcript produces the canonical bytes that handshake signatures
// cover, and signs and verifies them.
//
// # Encoding
//
// A transcript starts with a label naming the message type and version. Each
// signed field follows in a fixed order as
//
//	uint32(len(name)) ‖ name ‖ uint32(len(value)) ‖ value
//
// with big-endian lengths. Strings are UTF-8, public keys are the uncompressed
// SEC 1 point and timestamps are 8-byte big-endian unix milliseconds. Length
// prefixes keep adjacent fields from sliding into each other, and the fixed
// order makes the encoding independent of any map or JSON key ordering.
//
// # Signatures
//
// ECDSA over P-256 with SHA-256, ASN.1 DER encoded.
package transcript
