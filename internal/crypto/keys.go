package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"parley/internal/domain"
)

const coordBytes = 32

// GenerateSigningKeyPair creates a long-term P-256 ECDSA key.
func GenerateSigningKeyPair() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// GenerateEphemeralKeyPair creates a single-use P-256 ECDH key.
func GenerateEphemeralKeyPair() (*ecdh.PrivateKey, error) {
	return ecdh.P256().GenerateKey(rand.Reader)
}

// SharedSecret computes ECDH(priv, peer). The caller owns and should wipe the
// result once a key has been derived from it.
func SharedSecret(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	if priv == nil {
		return nil, domain.ErrEphemeralKeyUnavailable
	}
	return priv.ECDH(peer)
}

// ExportPublicKey returns the affine coordinates of a signing key.
func ExportPublicKey(pub *ecdsa.PublicKey) (domain.PublicKey, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return domain.PublicKey{}, domain.ErrInvalidPublicKey
	}
	ep, err := pub.ECDH()
	if err != nil {
		return domain.PublicKey{}, fmt.Errorf("%w: %v", domain.ErrInvalidPublicKey, err)
	}
	return splitPoint(ep.Bytes()), nil
}

// ExportEphemeralPublicKey returns the affine coordinates of an ECDH key.
func ExportEphemeralPublicKey(pub *ecdh.PublicKey) domain.PublicKey {
	return splitPoint(pub.Bytes())
}

// ImportPublicKey parses coordinates into a signing key, rejecting anything
// that is not a valid P-256 point.
func ImportPublicKey(pk domain.PublicKey) (*ecdsa.PublicKey, error) {
	if _, err := ImportEphemeralPublicKey(pk); err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(pk.X),
		Y:     new(big.Int).SetBytes(pk.Y),
	}, nil
}

// ImportEphemeralPublicKey parses coordinates into an ECDH key.
func ImportEphemeralPublicKey(pk domain.PublicKey) (*ecdh.PublicKey, error) {
	if pk.Curve != domain.CurveP256 {
		return nil, fmt.Errorf("%w: curve %q", domain.ErrInvalidPublicKey, pk.Curve)
	}
	if len(pk.X) != coordBytes || len(pk.Y) != coordBytes {
		return nil, fmt.Errorf("%w: coordinate length", domain.ErrInvalidPublicKey)
	}
	pub, err := ecdh.P256().NewPublicKey(pk.Point())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPublicKey, err)
	}
	return pub, nil
}

func splitPoint(point []byte) domain.PublicKey {
	// point is 0x04 ‖ X ‖ Y
	x := make([]byte, coordBytes)
	y := make([]byte, coordBytes)
	copy(x, point[1:1+coordBytes])
	copy(y, point[1+coordBytes:])
	return domain.PublicKey{Curve: domain.CurveP256, X: x, Y: y}
}
