package store

import (
	"encoding/json"

	"github.com/samber/oops"

	"parley/internal/domain"
	"parley/internal/replay"
)

const journalPrefix = "replay/"

// ReplayJournal persists replay guard snapshots for one local user.
type ReplayJournal struct {
	kv  domain.KVStore
	key string
}

// NewReplayJournal returns a journal for user over kv.
func NewReplayJournal(kv domain.KVStore, user domain.UserID) *ReplayJournal {
	return &ReplayJournal{kv: kv, key: journalPrefix + string(user)}
}

func (j *ReplayJournal) Persist(s replay.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return oops.Wrapf(err, "replay journal: marshal")
	}
	return j.kv.Put(j.key, b)
}

func (j *ReplayJournal) Restore() (replay.Snapshot, bool, error) {
	b, ok, err := j.kv.Get(j.key)
	if err != nil || !ok {
		return replay.Snapshot{}, false, err
	}
	var s replay.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return replay.Snapshot{}, false, oops.Wrapf(err, "replay journal: corrupt snapshot")
	}
	return s, true, nil
}

// Clear drops the stored snapshot.
func (j *ReplayJournal) Clear() error {
	return j.kv.Delete(j.key)
}

var _ replay.Journal = (*ReplayJournal)(nil)
