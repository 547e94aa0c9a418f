package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"parley/internal/domain"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// IVSize is the 96-bit GCM nonce length.
	IVSize = 12
	// TagSize is the 128-bit GCM tag length.
	TagSize = 16
)

// Encrypt seals plaintext under key with a fresh random IV and returns the
// ciphertext with its tag detached. aad is authenticated but not encrypted.
func Encrypt(key, plaintext, aad []byte) (domain.Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return domain.Sealed{}, err
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return domain.Sealed{}, fmt.Errorf("iv: %w", err)
	}
	out := gcm.Seal(nil, iv, plaintext, aad)
	split := len(out) - TagSize
	return domain.Sealed{
		Ciphertext: out[:split:split],
		IV:         iv,
		AuthTag:    out[split:],
	}, nil
}

// Decrypt opens s under key. Any tag mismatch or malformed input yields
// ErrDecryptionFailed.
func Decrypt(key []byte, s domain.Sealed, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(s.IV) != IVSize || len(s.AuthTag) != TagSize {
		return nil, domain.ErrDecryptionFailed
	}
	buf := make([]byte, 0, len(s.Ciphertext)+TagSize)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.AuthTag...)
	pt, err := gcm.Open(nil, s.IV, buf, aad)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes-256-gcm: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
