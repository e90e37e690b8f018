package artifacts

import (
	"errors"
	"io"
	"log/slog"
)

// ResourceSet resolves resources across the elements of a search path, in
// search path order.
type ResourceSet struct {
	archives []Archive
}

// OpenResources opens every element of searchPath that can act as an archive.
// Elements that cannot be opened are logged and skipped.
func OpenResources(searchPath string, logger *slog.Logger) *ResourceSet {
	rs := &ResourceSet{}
	for _, p := range SplitPath(searchPath) {
		a, err := Open(p)
		if err != nil {
			if logger != nil {
				logger.Debug("Search path element has no resources", "path", p, "err", err)
			}
			continue
		}
		rs.archives = append(rs.archives, a)
	}
	return rs
}

// NewResourceSet wraps already opened archives.
func NewResourceSet(archives ...Archive) *ResourceSet {
	return &ResourceSet{archives: archives}
}

// Open returns the first regular entry named name.
func (rs *ResourceSet) Open(name string) (io.ReadCloser, bool) {
	for _, a := range rs.archives {
		if !Has(a, name) {
			continue
		}
		if f, err := a.Open(name); err == nil {
			return f, true
		}
	}
	return nil, false
}

// OpenAll returns every regular entry named name, one per archive.
func (rs *ResourceSet) OpenAll(name string) []io.ReadCloser {
	var out []io.ReadCloser
	for _, a := range rs.archives {
		if !Has(a, name) {
			continue
		}
		if f, err := a.Open(name); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// Close closes every archive in the set.
func (rs *ResourceSet) Close() error {
	var errs []error
	for _, a := range rs.archives {
		errs = append(errs, a.Close())
	}
	return errors.Join(errs...)
}
