// Package artifacts opens the containers compiled units and extension
// packages ship in: plain directories and zip archives.
package artifacts

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrClosed is returned when reading from a closed archive.
var ErrClosed = errors.New("archive closed")

// Archive is a read-only container of named entries.
// Entry names always use forward slashes. Open returns an error wrapping
// fs.ErrNotExist when the entry is absent.
type Archive interface {
	fs.FS

	// Path returns the location the archive was opened from.
	Path() string
	// Entries lists every regular entry, sorted.
	Entries() ([]string, error)
	Close() error
}

// Open opens a directory or a zip file as an Archive.
func Open(p string) (Archive, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &dirArchive{root: p, fsys: os.DirFS(p)}, nil
	}
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", p, err)
	}
	return &zipArchive{path: p, rc: rc}, nil
}

type dirArchive struct {
	root string
	fsys fs.FS
}

func (d *dirArchive) Path() string { return d.root }
func (d *dirArchive) Close() error { return nil }

func (d *dirArchive) Entries() ([]string, error) {
	var names []string
	err := fs.WalkDir(d.fsys, ".", func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if e.Type().IsRegular() {
			names = append(names, p)
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

func (d *dirArchive) Open(name string) (fs.File, error) {
	return d.fsys.Open(cleanEntry(name))
}

type zipArchive struct {
	path   string
	mu     sync.RWMutex
	rc     *zip.ReadCloser
	closed bool
}

func (z *zipArchive) Path() string { return z.path }

func (z *zipArchive) Entries() ([]string, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if z.closed {
		return nil, ErrClosed
	}
	var names []string
	for _, f := range z.rc.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (z *zipArchive) Open(name string) (fs.File, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if z.closed {
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrClosed}
	}
	return z.rc.Open(cleanEntry(name))
}

func (z *zipArchive) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return nil
	}
	z.closed = true
	return z.rc.Close()
}

func cleanEntry(name string) string {
	name = path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	if name == "" {
		return "."
	}
	return name
}

// ReadEntry reads one named entry fully.
func ReadEntry(a Archive, name string) ([]byte, error) {
	f, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Has reports whether the archive contains a regular entry named name.
func Has(a Archive, name string) bool {
	f, err := a.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	st, err := f.Stat()
	return err == nil && st.Mode().IsRegular()
}
