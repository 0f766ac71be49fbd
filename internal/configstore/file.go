package configstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileMedium keeps the record in a single file. Commits go through a temp
// file in the same directory followed by fsync and rename, so readers see
// either the old or the new record.
type FileMedium struct {
	path string
}

func NewFileMedium(path string) (*FileMedium, error) {
	if path == "" {
		return nil, errors.New("file medium: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file medium: mkdir: %w", err)
	}
	return &FileMedium{path: path}, nil
}

// ReadRecord returns a blank image when the file does not exist yet.
func (f *FileMedium) ReadRecord() ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Blank(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("file medium: read: %w", err)
	}
	return b, nil
}

func (f *FileMedium) Commit(record []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("file medium: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		return fmt.Errorf("file medium: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("file medium: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file medium: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("file medium: rename: %w", err)
	}
	return nil
}

func (f *FileMedium) Close() error { return nil }

func (f *FileMedium) Path() string { return f.path }
