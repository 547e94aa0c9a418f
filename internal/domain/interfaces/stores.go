package interfaces

import (
	"crypto/ecdsa"

	domaintypes "parley/internal/domain/types"
)

// KVStore is a reliable but not necessarily durable byte store.
// Get reports ok=false for a missing key.
type KVStore interface {
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// KeyStore persists password-wrapped long-term signing keys.
type KeyStore interface {
	SaveSigningKey(user domaintypes.UserID, password string, key *ecdsa.PrivateKey) error
	LoadSigningKey(user domaintypes.UserID, password string) (*ecdsa.PrivateKey, error)
	HasSigningKey(user domaintypes.UserID) (bool, error)
}
