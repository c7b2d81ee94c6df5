package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSStore keeps attachments in a directory tree.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore roots a store at dir on fs. Use afero.NewOsFs for disk and
// afero.NewMemMapFs in tests.
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	return &FSStore{fs: afero.NewBasePathFs(fs, dir)}
}

func (s *FSStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if err := s.fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return fmt.Errorf("failed to create attachment directory: %w", err)
	}

	f, err := s.fs.Create(key)
	if err != nil {
		return fmt.Errorf("failed to create attachment file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		s.fs.Remove(key)
		return fmt.Errorf("failed to write attachment: %w", err)
	}
	return f.Close()
}

func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the object and its now empty directory. Missing objects
// are not an error.
func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	dir := filepath.Dir(key)
	if empty, err := afero.IsEmpty(s.fs, dir); err == nil && empty {
		s.fs.Remove(dir)
	}
	return nil
}
