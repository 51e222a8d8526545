package filestore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// renameFunc is swapped in tests to simulate rename failures
var renameFunc = os.Rename

// OS is a Store backed by the local filesystem
type OS struct{}

// NewOS returns the local filesystem store
func NewOS() OS {
	return OS{}
}

func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OS) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OS) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

func (OS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (OS) Rename(oldname, newname string) error {
	return renameFunc(oldname, newname)
}

func (OS) Remove(name string) error {
	return os.Remove(name)
}

// WriteFile writes to a temporary file in the destination directory and
// renames it over name, so an interrupted copy never leaves a truncated file.
func (OS) WriteFile(name string, r io.Reader) (int64, error) {
	dir := filepath.Dir(name)

	// Hidden prefix keeps temporaries out of image globbing
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, err
	}
	if err := tmp.Chmod(0644); err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}

	if err := renameFunc(tmpName, name); err != nil {
		return n, err
	}

	_ = syncDir(dir)
	return n, nil
}

func syncDir(dir string) error {
	// Directory fsync is not supported on Windows
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
