package loader

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/panyam/pynarrow/parser"
	"github.com/pkg/errors"
)

// Loader reads, parses and binds source files, caching each by path.
type Loader struct {
	fs        FileSystem
	maxErrors int

	mutex       sync.Mutex
	loadedFiles map[string]*File
}

// NewLoader creates a loader over fs. maxErrors caps the diagnostics kept
// per file (0 means no limit).
func NewLoader(fs FileSystem, maxErrors int) *Loader {
	return &Loader{
		fs:          fs,
		maxErrors:   maxErrors,
		loadedFiles: make(map[string]*File),
	}
}

// LoadFile returns the bound file at path. A syntax error is returned as
// the error; binding problems are collected on the File.
func (l *Loader) LoadFile(path string) (*File, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if f, found := l.loadedFiles[path]; found {
		return f, nil
	}
	if !l.fs.Exists(path) {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	content, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	f, err := l.load(path, content)
	if err != nil {
		return nil, err
	}
	l.loadedFiles[path] = f
	return f, nil
}

// LoadFiles loads every path, returning the files that loaded and the
// errors of those that did not.
func (l *Loader) LoadFiles(paths ...string) (files []*File, errs []error) {
	for _, p := range paths {
		f, err := l.LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, f)
	}
	return
}

// LoadSource parses and binds src without caching it.
func (l *Loader) LoadSource(name, src string) (*File, error) {
	return l.load(name, []byte(src))
}

func (l *Loader) load(path string, content []byte) (*File, error) {
	mod, err := parser.Parse(bytes.NewReader(content), path)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	f := Bind(path, mod, l.maxErrors)
	slog.Debug("bound file", "path", path, "flowNodes", f.lastFlowID, "errors", len(f.Errors))
	return f, nil
}
