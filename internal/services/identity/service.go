package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"unicode"

	"parley/internal/crypto"
	"parley/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	// ErrNoUserID is returned when an identity is requested without a user id.
	ErrNoUserID = errors.New("user id required")
)

// Service manages the long-term identity using a backing key store.
//
// The identity is a single P-256 ECDSA key pair. It signs handshake
// transcripts; session keys come from fresh ephemeral keys per handshake.
type Service struct {
	keys domain.KeyStore
}

// New returns an identity service backed by the given key store.
func New(keys domain.KeyStore) *Service { return &Service{keys: keys} }

// GenerateIdentity creates a new identity for user, saves it wrapped under the
// passphrase and returns it with the fingerprint of its public key. Any
// previous identity for user is replaced.
func (s *Service) GenerateIdentity(
	user domain.UserID,
	passphrase string,
) (domain.Identity, domain.Fingerprint, error) {
	if user == "" {
		return domain.Identity{}, "", ErrNoUserID
	}
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}

	priv, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		return domain.Identity{}, "", err
	}
	if err := s.keys.SaveSigningKey(user, passphrase, priv); err != nil {
		return domain.Identity{}, "", err
	}
	id, err := identityFor(user, priv)
	if err != nil {
		return domain.Identity{}, "", err
	}
	return id, crypto.Fingerprint(id.SigningPublic), nil
}

// LoadIdentity unwraps and returns the identity for user.
func (s *Service) LoadIdentity(user domain.UserID, passphrase string) (domain.Identity, error) {
	if user == "" {
		return domain.Identity{}, ErrNoUserID
	}
	priv, err := s.keys.LoadSigningKey(user, passphrase)
	if err != nil {
		return domain.Identity{}, err
	}
	return identityFor(user, priv)
}

// FingerprintIdentity returns the fingerprint of user's public key.
func (s *Service) FingerprintIdentity(user domain.UserID, passphrase string) (domain.Fingerprint, error) {
	id, err := s.LoadIdentity(user, passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.SigningPublic), nil
}

// Exists reports whether an identity is stored for user.
func (s *Service) Exists(user domain.UserID) (bool, error) {
	return s.keys.HasSigningKey(user)
}

func identityFor(user domain.UserID, priv *ecdsa.PrivateKey) (domain.Identity, error) {
	pub, err := crypto.ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: user, SigningPublic: pub, SigningPrivate: priv}, nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
