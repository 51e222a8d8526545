// Package filestore abstracts the filesystem operations used by the export
// pipeline so they can run against real disk or an in-memory tree.
package filestore

import (
	"io"
	"io/fs"
)

// Store is the filesystem capability handed to the locator, exporter and
// manifest writer. Paths use the host separator.
type Store interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(dir string) ([]fs.DirEntry, error)
	MkdirAll(dir string) error

	// WriteFile replaces name with the contents of r. Readers of name see
	// either the old or the new contents, never a partial write.
	WriteFile(name string, r io.Reader) (int64, error)

	Rename(oldname, newname string) error
	Remove(name string) error
}

// ErrNotExist is returned, wrapped, for paths that do not exist in a Store
var ErrNotExist = fs.ErrNotExist
