package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FileSystem is where the loader reads sources from.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	ListFiles(dir string) ([]string, error)
	Exists(path string) bool
}

// LocalFS implements FileSystem using the local disk
type LocalFS struct {
	basePath string
}

func NewLocalFS(basePath string) *LocalFS {
	return &LocalFS{basePath: basePath}
}

func (l *LocalFS) resolvePath(path string) string {
	if filepath.IsAbs(path) || l.basePath == "" {
		return path
	}
	return filepath.Join(l.basePath, path)
}

func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(l.resolvePath(path))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	return data, err
}

// ListFiles returns the .py files directly under dir.
func (l *LocalFS) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(l.resolvePath(dir))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".py") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func (l *LocalFS) Exists(path string) bool {
	_, err := os.Stat(l.resolvePath(path))
	return err == nil
}

// MemoryFS implements an in-memory file system
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string][]byte),
	}
}

func (m *MemoryFS) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.files[path]
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryFS) WriteFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
}

func (m *MemoryFS) ListFiles(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []string
	for path := range m.files {
		if strings.HasPrefix(path, dir) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *MemoryFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists
}

// PreloadFiles adds files to the memory filesystem
func (m *MemoryFS) PreloadFiles(files map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, content := range files {
		m.files[path] = []byte(content)
	}
}
