package types

import "crypto/subtle"

// CurveP256 is the only curve name accepted in exported keys.
const CurveP256 = "P-256"

// PublicKey is a P-256 public key in affine coordinates, big-endian and
// left-padded to 32 bytes each.
type PublicKey struct {
	Curve string `json:"crv"`
	X     []byte `json:"x"`
	Y     []byte `json:"y"`
}

// IsZero reports whether no key material is present.
func (p PublicKey) IsZero() bool { return len(p.X) == 0 && len(p.Y) == 0 }

// Equal reports whether p and o encode the same point.
func (p PublicKey) Equal(o PublicKey) bool {
	if p.Curve != o.Curve {
		return false
	}
	return subtle.ConstantTimeCompare(p.X, o.X)&subtle.ConstantTimeCompare(p.Y, o.Y) == 1
}

// Point returns the uncompressed SEC 1 encoding (0x04 ‖ X ‖ Y).
func (p PublicKey) Point() []byte {
	out := make([]byte, 0, 1+len(p.X)+len(p.Y))
	out = append(out, 0x04)
	out = append(out, p.X...)
	return append(out, p.Y...)
}

// SessionKey is a 256-bit AES-GCM key.
type SessionKey [32]byte

// Slice returns the key as a []byte.
func (k *SessionKey) Slice() []byte { return k[:] }

// WrappedKey is the at-rest form of a password-wrapped private key.
type WrappedKey struct {
	V          int    `json:"v"`
	Salt       []byte `json:"salt"`
	Iterations int    `json:"iterations"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}
