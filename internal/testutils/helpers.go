package testutils

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/internal/codec"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/stretchr/testify/require"
)

// EncodeUnit serializes u and fails the test immediately on error.
func EncodeUnit(t *testing.T, u *unit.Unit) []byte {
	t.Helper()
	data, err := codec.Encode(u)
	require.NoError(t, err, "Failed to encode unit %s", u.Name)
	return data
}

// WriteUnits writes each unit to dir as <internal name>.unit and returns dir.
func WriteUnits(t *testing.T, dir string, units ...*unit.Unit) string {
	t.Helper()
	_, err := artifacts.WriteDir(dir, units...)
	require.NoError(t, err, "Failed to write units")
	return dir
}

// WriteZip creates a zip file at path holding the given entries.
func WriteZip(t *testing.T, path string, entries map[string][]byte) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err, "Failed to create archive")
	defer f.Close()

	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close(), "Failed to finish archive")
	return path
}

// Package describes an extension package written by WritePackage.
type Package struct {
	File       string
	Name       string
	Version    string
	Entrypoint string
	// Extra entries stored next to the descriptor.
	Entries map[string][]byte
}

// WritePackage writes an extension package into dir and returns its path.
// Empty descriptor fields are left out of particle.properties.
func WritePackage(t *testing.T, dir string, pkg Package) string {
	t.Helper()
	var props strings.Builder
	props.WriteString("# generated by testutils\n")
	for _, kv := range [][2]string{{"name", pkg.Name}, {"version", pkg.Version}, {"entrypoint", pkg.Entrypoint}} {
		if kv[1] != "" {
			fmt.Fprintf(&props, "%s=%s\n", kv[0], kv[1])
		}
	}
	entries := map[string][]byte{"particle.properties": []byte(props.String())}
	for k, v := range pkg.Entries {
		entries[k] = v
	}
	return WriteZip(t, filepath.Join(dir, pkg.File), entries)
}

// Class returns a minimal unit extending super (Root when empty).
func Class(name, super string) *unit.Unit {
	return &unit.Unit{Name: name, Super: super}
}

// Interface returns a minimal interface unit.
func Interface(name string) *unit.Unit {
	return &unit.Unit{Name: name, Flags: unit.FlagInterface | unit.FlagAbstract}
}
