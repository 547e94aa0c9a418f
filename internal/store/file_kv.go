package store

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"parley/internal/domain"
)

// FileKV stores each key in its own file under a directory. Writes go through
// a temp file and rename, so a crash leaves either the old or the new value.
type FileKV struct {
	dir string

	mu     sync.Mutex
	closed bool
}

// OpenFileKV returns a FileKV rooted at dir, creating it with 0700.
func OpenFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, oops.Errorf("file store: directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Wrapf(err, "file store: create %s", dir)
	}
	return &FileKV{dir: dir}, nil
}

// path hex-encodes key so any string is a safe file name.
func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))+".kv")
}

func (s *FileKV) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Wrapf(err, "file store: read %q", key)
	}
	return b, true, nil
}

func (s *FileKV) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := writeFile(s.path(key), value, 0o600); err != nil {
		return oops.Wrapf(err, "file store: write %q", key)
	}
	return nil
}

func (s *FileKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.Wrapf(err, "file store: delete %q", key)
	}
	return nil
}

func (s *FileKV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ domain.KVStore = (*FileKV)(nil)
