package discovery

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/pkg/extension"
)

const (
	// DescriptorFile is the descriptor entry at the root of every package.
	DescriptorFile = "particle.properties"
	// DefaultVersion applies when a descriptor has no version key.
	DefaultVersion = "0.0.1"
)

// PackageExts are the file extensions recognized as extension packages.
var PackageExts = []string{".kpkg", ".zip"}

var (
	ErrNoDescriptor      = errors.New("package has no " + DescriptorFile)
	ErrMissingName       = errors.New("descriptor does not set a name")
	ErrMissingEntrypoint = errors.New("descriptor does not set an entrypoint")
)

// Scan lists candidate packages directly inside dir, sorted by path.
// Hidden files and subdirectories are ignored. Symlinks are followed;
// dangling ones are skipped.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !isPackage(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if !e.Type().IsRegular() {
			st, err := os.Stat(path)
			if err != nil || !st.Mode().IsRegular() {
				continue
			}
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func isPackage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range PackageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseDescriptor opens the package at path and reads its descriptor.
func ParseDescriptor(path string) (extension.Descriptor, error) {
	a, err := artifacts.Open(path)
	if err != nil {
		return extension.Descriptor{}, err
	}
	defer a.Close()

	f, err := a.Open(DescriptorFile)
	if errors.Is(err, fs.ErrNotExist) {
		return extension.Descriptor{}, fmt.Errorf("%s: %w", path, ErrNoDescriptor)
	}
	if err != nil {
		return extension.Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	return readDescriptor(path, f)
}

func readDescriptor(path string, r io.Reader) (extension.Descriptor, error) {
	props, err := parseProperties(r)
	if err != nil {
		return extension.Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	d := extension.Descriptor{
		Path:       path,
		Name:       props["name"],
		Version:    props["version"],
		Entrypoint: props["entrypoint"],
	}
	if d.Name == "" {
		return extension.Descriptor{}, fmt.Errorf("%s: %w", path, ErrMissingName)
	}
	if d.Entrypoint == "" {
		return extension.Descriptor{}, fmt.Errorf("%s (%s): %w", path, d.Name, ErrMissingEntrypoint)
	}
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	return d, nil
}

// Resolve picks one descriptor per name: the highest version, and on ties
// the one with the lowest path. kept is sorted by name; dropped holds the
// losers in path order.
func Resolve(descs []extension.Descriptor) (kept, dropped []extension.Descriptor) {
	sorted := append([]extension.Descriptor(nil), descs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	best := make(map[string]int)
	for i, d := range sorted {
		j, ok := best[d.Name]
		if !ok || CompareVersions(d.Version, sorted[j].Version) > 0 {
			best[d.Name] = i
		}
	}
	for i, d := range sorted {
		if best[d.Name] == i {
			kept = append(kept, d)
		} else {
			dropped = append(dropped, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })
	return kept, dropped
}
