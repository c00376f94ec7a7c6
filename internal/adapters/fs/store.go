package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/offsync/internal/domain"
)

const recordExt = ".json"

// Store implements ports.Storage with one JSON file per record under
// <dir>/<namespace>/<name>.json.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads a record from disk.
func (s *Store) Load(ctx context.Context, namespace, name string) ([]byte, error) {
	path, err := s.path(namespace, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", namespace, name, domain.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Save persists a record atomically (write to temp file, fsync, then rename).
func (s *Store) Save(ctx context.Context, namespace, name string, data []byte) error {
	path, err := s.path(namespace, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Delete removes a record. Missing records are ignored.
func (s *Store) Delete(ctx context.Context, namespace, name string) error {
	path, err := s.path(namespace, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the file backing a record.
func (s *Store) Path(namespace, name string) string {
	return filepath.Join(s.dir, namespace, name+recordExt)
}

func (s *Store) path(namespace, name string) (string, error) {
	if err := domain.ValidateSessionID(namespace); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid record name %q", name)
	}
	return s.Path(namespace, name), nil
}
