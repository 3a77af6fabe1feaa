package backing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File stores the document in a single file on local disk. Writes are
// atomic: temp file, fsync, rename.
type File struct {
	path string
}

// NewFile returns a file backing for path. The parent directory is created
// on first write.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file backing requires a path")
	}
	return &File{path: path}, nil
}

func (f *File) Name() string { return "file:" + f.path }

// Path returns the document path.
func (f *File) Path() string { return f.path }

func (f *File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) Write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".larder-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
