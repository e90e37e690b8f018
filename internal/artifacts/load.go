package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/kiln/internal/codec"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/unit"
)

// SplitPath splits a search path on the platform list separator, dropping
// empty elements.
func SplitPath(searchPath string) []string {
	var out []string
	for _, p := range filepath.SplitList(searchPath) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads every compiled unit reachable from searchPath.
//
// Directories are walked recursively and files that do not decode are skipped.
// Zip archives contribute every entry ending in the unit extension. Any other
// file must itself be a serialized unit.
func Load(searchPath string, logger *slog.Logger) ([]*unit.Unit, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var units []*unit.Unit
	for _, p := range SplitPath(searchPath) {
		found, err := loadElement(p, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded search path element", "path", p, "units", len(found))
		units = append(units, found...)
	}
	return units, nil
}

func loadElement(p string, logger *slog.Logger) ([]*unit.Unit, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("search path element %s: %w", p, err)
	}
	if info.IsDir() {
		return walkDir(p, logger), nil
	}

	a, err := Open(p)
	if err != nil {
		// Not an archive: the element is a single serialized unit.
		data, rerr := os.ReadFile(p)
		if rerr != nil {
			return nil, rerr
		}
		u, derr := codec.Decode(data)
		if derr != nil {
			return nil, fmt.Errorf("search path element %s: %w", p, errors.Join(err, derr))
		}
		u.Source = p
		return []*unit.Unit{u}, nil
	}
	defer a.Close()
	return readArchive(a)
}

func walkDir(root string, logger *slog.Logger) []*unit.Unit {
	var units []*unit.Unit
	_ = filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		u, err := codec.Decode(data)
		if err != nil {
			logger.Debug("Skipping non-unit file", "path", p, "err", err)
			return nil
		}
		u.Source = p
		units = append(units, u)
		return nil
	})
	return units
}

func readArchive(a Archive) ([]*unit.Unit, error) {
	entries, err := a.Entries()
	if err != nil {
		return nil, err
	}
	var units []*unit.Unit
	for _, name := range entries {
		if !strings.HasSuffix(name, codec.Ext) {
			continue
		}
		data, err := ReadEntry(a, name)
		if err != nil {
			return nil, fmt.Errorf("read %s!%s: %w", a.Path(), name, err)
		}
		u, err := codec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("read %s!%s: %w", a.Path(), name, err)
		}
		u.Source = a.Path() + "!" + name
		units = append(units, u)
	}
	return units, nil
}
