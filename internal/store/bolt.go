package store

import (
	"errors"
	"path/filepath"
	"slices"
	"time"

	"github.com/boltdb/bolt"
	"github.com/samber/oops"

	"parley/internal/domain"
)

var bucketKV = []byte("parley")

// Bolt is a KVStore backed by a single bolt database file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, oops.Errorf("bolt store: path required")
	}
	db, err := bolt.Open(filepath.Clean(path), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, oops.Wrapf(err, "bolt store: open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketKV)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, oops.Wrapf(err, "bolt store: create bucket")
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(key string) ([]byte, bool, error) {
	var (
		out []byte
		ok  bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		// Values are only valid for the life of the transaction.
		if v := bk.Get([]byte(key)); v != nil {
			out, ok = slices.Clone(v), true
		}
		return nil
	})
	if err != nil {
		return nil, false, b.wrap(err, "get %q", key)
	}
	return out, ok, nil
}

func (b *Bolt) Put(key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Put([]byte(key), value)
	})
	if err != nil {
		return b.wrap(err, "put %q", key)
	}
	return nil
}

func (b *Bolt) Delete(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Delete([]byte(key))
	})
	if err != nil {
		return b.wrap(err, "delete %q", key)
	}
	return nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) wrap(err error, format string, args ...any) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return oops.Wrapf(err, "bolt store: "+format, args...)
}

var _ domain.KVStore = (*Bolt)(nil)
