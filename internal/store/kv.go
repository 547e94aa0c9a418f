package store

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"

	"parley/internal/domain"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

var (
	// ErrClosed is returned by any operation on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrNotFound reports a missing record in a typed store.
	ErrNotFound = errors.New("not found")
)

// Open returns the KV backend named by driver rooted at path. path is a
// directory for "file" and a database file for "bolt" and "sqlite"; it is
// ignored for "memory".
func Open(driver, path string) (domain.KVStore, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		return OpenFileKV(path)
	case DriverBolt:
		return OpenBolt(path)
	case DriverSQLite:
		return OpenSQLite(path)
	}
	return nil, oops.Errorf("unknown store driver %q", driver)
}

// Memory is an in-process KVStore.
type Memory struct {
	mu     sync.RWMutex
	m      map[string][]byte
	closed bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.m[key]
	return slices.Clone(v), ok, nil
}

func (s *Memory) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.m[key] = slices.Clone(value)
	return nil
}

func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.m, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Memory) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.m))
}

func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.m)
	return nil
}

var _ domain.KVStore = (*Memory)(nil)
