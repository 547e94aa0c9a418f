package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"parley/internal/domain"
	"parley/internal/util/memzero"
)

const (
	// wrapFormatVersion is the current version of the wrapped key format.
	wrapFormatVersion = 1

	// WrapIterations is the PBKDF2-SHA256 work factor for new wraps.
	WrapIterations = 100_000

	wrapSaltBytes = 16
)

// WrapPrivateKey encrypts key under a key derived from password with a fresh
// random salt and IV.
func WrapPrivateKey(key *ecdsa.PrivateKey, password string) (domain.WrappedKey, error) {
	return wrapPrivateKey(key, password, WrapIterations)
}

func wrapPrivateKey(key *ecdsa.PrivateKey, password string, iterations int) (domain.WrappedKey, error) {
	if key == nil {
		return domain.WrappedKey{}, fmt.Errorf("wrap: nil key")
	}
	raw, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return domain.WrappedKey{}, fmt.Errorf("wrap: marshal: %w", err)
	}
	defer memzero.Zero(raw)

	salt := make([]byte, wrapSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return domain.WrappedKey{}, fmt.Errorf("wrap: salt: %w", err)
	}
	kek := pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
	defer memzero.Zero(kek)

	sealed, err := Encrypt(kek, raw, salt)
	if err != nil {
		return domain.WrappedKey{}, fmt.Errorf("wrap: %w", err)
	}
	return domain.WrappedKey{
		V:          wrapFormatVersion,
		Salt:       salt,
		Iterations: iterations,
		IV:         sealed.IV,
		Ciphertext: append(sealed.Ciphertext, sealed.AuthTag...),
	}, nil
}

// UnwrapPrivateKey reverses WrapPrivateKey. A wrong password and a corrupted
// blob are indistinguishable and both return ErrWrongPasswordOrCorrupt.
func UnwrapPrivateKey(blob domain.WrappedKey, password string) (*ecdsa.PrivateKey, error) {
	if blob.V > wrapFormatVersion {
		return nil, fmt.Errorf("unwrap: unsupported format version %d", blob.V)
	}
	if blob.Iterations <= 0 || len(blob.Ciphertext) < TagSize {
		return nil, domain.ErrWrongPasswordOrCorrupt
	}
	kek := pbkdf2.Key([]byte(password), blob.Salt, blob.Iterations, KeySize, sha256.New)
	defer memzero.Zero(kek)

	split := len(blob.Ciphertext) - TagSize
	raw, err := Decrypt(kek, domain.Sealed{
		Ciphertext: blob.Ciphertext[:split],
		IV:         blob.IV,
		AuthTag:    blob.Ciphertext[split:],
	}, blob.Salt)
	if err != nil {
		return nil, domain.ErrWrongPasswordOrCorrupt
	}
	defer memzero.Zero(raw)

	parsed, err := x509.ParsePKCS8PrivateKey(raw)
	if err != nil {
		return nil, domain.ErrWrongPasswordOrCorrupt
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, domain.ErrWrongPasswordOrCorrupt
	}
	return key, nil
}
