// Package fs is the in-memory backing store behind the kernel's file
// facade. Persistence guarantees belong to whatever seeds it; tasks only
// ever see ReadFile/WriteFile/Abs.
package fs

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MaxFileBytes bounds a single file to avoid allocation bombs.
const MaxFileBytes = 1 << 20

var (
	ErrTooLarge = errors.New("fs: file too large")
	ErrIsDir    = errors.New("fs: path is a directory")
	ErrBadPath  = errors.New("fs: bad path")
)

// FS is a flat path-to-content store with Unix-style absolute paths.
type FS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func New() *FS {
	return &FS{files: make(map[string][]byte)}
}

// Abs resolves p against base. Absolute p wins; empty p resolves to base.
func Abs(p, base string) string {
	if base == "" {
		base = "/"
	}
	if p == "" {
		return clean(base)
	}
	if strings.HasPrefix(p, "/") {
		return clean(p)
	}
	return clean(base + "/" + p)
}

func clean(p string) string {
	p = path.Clean(p)
	if p == "." {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Read returns the file content, or ok=false when the path is absent.
func (f *FS) Read(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.files[clean(p)]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// Write stores content at p, replacing any previous content.
func (f *FS) Write(p string, content []byte) error {
	if len(content) > MaxFileBytes {
		return ErrTooLarge
	}
	cp := clean(p)
	if cp == "/" {
		return ErrIsDir
	}

	b := make([]byte, len(content))
	copy(b, content)

	f.mu.Lock()
	f.files[cp] = b
	f.mu.Unlock()
	return nil
}

// Remove deletes the file at p. Removing a missing file is a no-op.
func (f *FS) Remove(p string) {
	f.mu.Lock()
	delete(f.files, clean(p))
	f.mu.Unlock()
}

// List returns the stored paths under dir, sorted.
func (f *FS) List(dir string) []string {
	prefix := clean(dir)
	if prefix != "/" {
		prefix += "/"
	}

	f.mu.Lock()
	var out []string
	for p := range f.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	f.mu.Unlock()

	sort.Strings(out)
	return out
}

// SeedDir loads every regular file under root into the store, keyed by
// its path relative to root. Used at boot to populate /etc and friends.
func (f *FS) SeedDir(root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.Size() > MaxFileBytes {
			return ErrTooLarge
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return f.Write("/"+filepath.ToSlash(rel), b)
	})
}
