package store

import (
	"encoding/json"

	"github.com/samber/oops"

	"parley/internal/domain"
)

const peerKeyPrefix = "peer/"

// PeerKeys caches peers' long-term public keys.
type PeerKeys struct {
	kv domain.KVStore
}

// NewPeerKeys returns a PeerKeys over kv.
func NewPeerKeys(kv domain.KVStore) *PeerKeys {
	return &PeerKeys{kv: kv}
}

// Get returns the cached key for user, or ok=false.
func (p *PeerKeys) Get(user domain.UserID) (domain.PublicKey, bool, error) {
	b, ok, err := p.kv.Get(peerKeyPrefix + string(user))
	if err != nil || !ok {
		return domain.PublicKey{}, false, err
	}
	var pk domain.PublicKey
	if err := json.Unmarshal(b, &pk); err != nil {
		return domain.PublicKey{}, false, oops.Wrapf(err, "peer key for %q", user)
	}
	return pk, true, nil
}

// Put caches pk for user.
func (p *PeerKeys) Put(user domain.UserID, pk domain.PublicKey) error {
	b, err := json.Marshal(pk)
	if err != nil {
		return oops.Wrapf(err, "peer key for %q", user)
	}
	return p.kv.Put(peerKeyPrefix+string(user), b)
}

// Delete drops the cached key for user.
func (p *PeerKeys) Delete(user domain.UserID) error {
	return p.kv.Delete(peerKeyPrefix + string(user))
}
