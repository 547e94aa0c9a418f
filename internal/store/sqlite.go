package store

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"parley/internal/domain"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	);
`

// SQLite is a KVStore backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, oops.Errorf("sqlite store: path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Wrapf(err, "sqlite store: open %s", path)
	}
	// One writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, oops.Wrapf(err, "sqlite store: initialise schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Wrapf(err, "sqlite store: get %q", key)
	}
	return v, true, nil
}

func (s *SQLite) Put(key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return oops.Wrapf(err, "sqlite store: put %q", key)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return oops.Wrapf(err, "sqlite store: delete %q", key)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ domain.KVStore = (*SQLite)(nil)
