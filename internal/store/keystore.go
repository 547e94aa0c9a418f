package store

import (
	"crypto/ecdsa"
	"encoding/json"
	"time"

	"github.com/samber/oops"

	"parley/internal/crypto"
	"parley/internal/domain"
)

const signingKeyPrefix = "identity/"

// keyRecord is the stored form of a wrapped signing key. The public half is
// kept in clear so the fingerprint can be shown without the password.
type keyRecord struct {
	UserID    domain.UserID     `json:"user_id"`
	Public    domain.PublicKey  `json:"public_key"`
	Wrapped   domain.WrappedKey `json:"wrapped"`
	CreatedAt int64             `json:"created_at"`
}

// KeyStore keeps password-wrapped long-term signing keys in a KVStore.
type KeyStore struct {
	kv domain.KVStore
}

// NewKeyStore returns a KeyStore over kv.
func NewKeyStore(kv domain.KVStore) *KeyStore {
	return &KeyStore{kv: kv}
}

// SaveSigningKey wraps key under password and stores it for user, replacing
// any previous key.
func (s *KeyStore) SaveSigningKey(user domain.UserID, password string, key *ecdsa.PrivateKey) error {
	if key == nil {
		return oops.Errorf("save signing key: nil key")
	}
	pub, err := crypto.ExportPublicKey(&key.PublicKey)
	if err != nil {
		return oops.Wrapf(err, "save signing key")
	}
	wrapped, err := crypto.WrapPrivateKey(key, password)
	if err != nil {
		return oops.Wrapf(err, "save signing key")
	}
	b, err := json.Marshal(keyRecord{
		UserID:    user,
		Public:    pub,
		Wrapped:   wrapped,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return oops.Wrapf(err, "save signing key: marshal")
	}
	return s.kv.Put(signingKeyPrefix+string(user), b)
}

// LoadSigningKey unwraps the key stored for user. A wrong password and a
// tampered record both yield domain.ErrWrongPasswordOrCorrupt.
func (s *KeyStore) LoadSigningKey(user domain.UserID, password string) (*ecdsa.PrivateKey, error) {
	rec, err := s.record(user)
	if err != nil {
		return nil, err
	}
	key, err := crypto.UnwrapPrivateKey(rec.Wrapped, password)
	if err != nil {
		return nil, oops.Wrapf(err, "load signing key for %q", user)
	}
	pub, err := crypto.ExportPublicKey(&key.PublicKey)
	if err != nil || !pub.Equal(rec.Public) {
		return nil, oops.Wrapf(domain.ErrWrongPasswordOrCorrupt, "load signing key for %q: public key mismatch", user)
	}
	return key, nil
}

// PublicKey returns the stored public key for user without unwrapping.
func (s *KeyStore) PublicKey(user domain.UserID) (domain.PublicKey, error) {
	rec, err := s.record(user)
	if err != nil {
		return domain.PublicKey{}, err
	}
	return rec.Public, nil
}

// HasSigningKey reports whether a key is stored for user.
func (s *KeyStore) HasSigningKey(user domain.UserID) (bool, error) {
	_, ok, err := s.kv.Get(signingKeyPrefix + string(user))
	return ok, err
}

// DeleteSigningKey removes the key stored for user.
func (s *KeyStore) DeleteSigningKey(user domain.UserID) error {
	return s.kv.Delete(signingKeyPrefix + string(user))
}

func (s *KeyStore) record(user domain.UserID) (keyRecord, error) {
	b, ok, err := s.kv.Get(signingKeyPrefix + string(user))
	if err != nil {
		return keyRecord{}, err
	}
	if !ok {
		return keyRecord{}, oops.Wrapf(ErrNotFound, "no signing key for %q", user)
	}
	var rec keyRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return keyRecord{}, oops.Wrapf(domain.ErrWrongPasswordOrCorrupt, "signing key record for %q: %v", user, err)
	}
	return rec, nil
}

var _ domain.KeyStore = (*KeyStore)(nil)
