package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/kiln/internal/codec"
	"github.com/aretw0/kiln/pkg/unit"
)

// WriteDir stores each unit under dir as <internal name>.unit, the layout
// Load reads back, and returns the written paths.
func WriteDir(dir string, units ...*unit.Unit) ([]string, error) {
	paths := make([]string, 0, len(units))
	for _, u := range units {
		data, err := codec.Encode(u)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", unit.BinaryName(u.Name), err)
		}
		p := filepath.Join(dir, filepath.FromSlash(unit.InternalName(u.Name))+codec.Ext)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
