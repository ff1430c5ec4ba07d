package store

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

const snapshotExt = ".snap"

// FileStore keeps one file per key under dir. Writes are atomic
// (temp file, fsync, rename) so a crash never leaves a torn snapshot.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// LoadSnapshot returns the bytes stored under key.
func (s *FileStore) LoadSnapshot(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path(key))
	if err != nil {
		return nil, false, err
	}
	return b, b != nil, nil
}

// StoreSnapshot replaces the bytes under key.
func (s *FileStore) StoreSnapshot(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeFile(s.path(key), data, 0o600)
}

// DeleteSnapshot removes key; a missing key is not an error.
func (s *FileStore) DeleteSnapshot(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// path escapes key so "alice/sessions" stays a single file in dir.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+snapshotExt)
}

// Compile-time assertion that FileStore implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*FileStore)(nil)
