package filestore

import (
	"bytes"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Store used by tests. Directories must exist
// before files are written into them, mirroring the local filesystem.
type Memory struct {
	files     map[string][]byte
	dirs      map[string]struct{}
	readErrs  map[string]error
	writeErrs map[string]error
	mu        sync.RWMutex
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		files:     make(map[string][]byte),
		dirs:      map[string]struct{}{string(filepath.Separator): {}, ".": {}},
		readErrs:  make(map[string]error),
		writeErrs: make(map[string]error),
	}
}

// Put stores a file, creating its parent directories
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	m.mkdirAll(filepath.Dir(name))
	m.files[name] = append([]byte(nil), data...)
}

// FailReads makes every Open or ReadFile of name return err
func (m *Memory) FailReads(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrs[filepath.Clean(name)] = err
}

// FailWrites makes every WriteFile to name return err
func (m *Memory) FailWrites(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrs[filepath.Clean(name)] = err
}

// Files returns the sorted paths of all stored files
func (m *Memory) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.files))
	for name := range m.files {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasDir reports whether dir exists
func (m *Memory) HasDir(dir string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.dirs[filepath.Clean(dir)]
	return ok
}

func (m *Memory) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if data, ok := m.files[name]; ok {
		return memInfo{name: filepath.Base(name), size: int64(len(data))}, nil
	}
	if _, ok := m.dirs[name]; ok {
		return memInfo{name: filepath.Base(name), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *Memory) Open(name string) (io.ReadCloser, error) {
	data, err := m.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if err, ok := m.readErrs[name]; ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) ReadDir(dir string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dir = filepath.Clean(dir)
	if _, ok := m.dirs[dir]; !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}

	var entries []fs.DirEntry
	for name, data := range m.files {
		if filepath.Dir(name) == dir {
			entries = append(entries, fs.FileInfoToDirEntry(memInfo{name: filepath.Base(name), size: int64(len(data))}))
		}
	}
	for name := range m.dirs {
		if name != dir && filepath.Dir(name) == dir {
			entries = append(entries, fs.FileInfoToDirEntry(memInfo{name: filepath.Base(name), dir: true}))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *Memory) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir = filepath.Clean(dir)
	for p := dir; ; p = filepath.Dir(p) {
		if _, ok := m.files[p]; ok {
			return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
		}
		if filepath.Dir(p) == p {
			break
		}
	}
	m.mkdirAll(dir)
	return nil
}

func (m *Memory) mkdirAll(dir string) {
	for p := dir; ; p = filepath.Dir(p) {
		m.dirs[p] = struct{}{}
		if filepath.Dir(p) == p {
			return
		}
	}
}

func (m *Memory) WriteFile(name string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if err, ok := m.writeErrs[name]; ok {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if _, ok := m.dirs[filepath.Dir(name)]; !ok {
		return 0, &fs.PathError{Op: "write", Path: name, Err: fs.ErrNotExist}
	}
	if _, ok := m.dirs[name]; ok {
		return 0, &fs.PathError{Op: "write", Path: name, Err: fs.ErrExist}
	}
	m.files[name] = data
	return int64(len(data)), nil
}

func (m *Memory) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldname, newname = filepath.Clean(oldname), filepath.Clean(newname)
	data, ok := m.files[oldname]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldname, Err: fs.ErrNotExist}
	}
	if _, ok := m.dirs[filepath.Dir(newname)]; !ok {
		return &fs.PathError{Op: "rename", Path: newname, Err: fs.ErrNotExist}
	}
	delete(m.files, oldname)
	m.files[newname] = data
	return nil
}

func (m *Memory) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		delete(m.files, name)
		return nil
	}
	if _, ok := m.dirs[name]; ok {
		prefix := name + string(filepath.Separator)
		for p := range m.files {
			if strings.HasPrefix(p, prefix) {
				return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrExist}
			}
		}
		delete(m.dirs, name)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

type memInfo struct {
	name string
	size int64
	dir  bool
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() any           { return nil }

func (i memInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0755
	}
	return 0644
}
