package discovery_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/aretw0/kiln/internal/ancestry"
	"github.com/aretw0/kiln/internal/discovery"
	"github.com/aretw0/kiln/internal/host"
	"github.com/aretw0/kiln/internal/loader"
	"github.com/aretw0/kiln/internal/pipeline"
	"github.com/aretw0/kiln/internal/registry"
	"github.com/aretw0/kiln/internal/testutils"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"3", "10", -1},
		{"10", "3", 1},
		{"7", "7", 0},
		{"1.2.0", "1.10.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"1.0", "1.0.0", -1},
		{"1.0.0-beta", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0+2", "1.0.0+10", -1},
		{"1.0.0", "1", 1},
		{"banana", "apple", 1},
		{"1.0.0", "snapshot", -1},
	}
	for _, tt := range tests {
		got := discovery.CompareVersions(tt.a, tt.b)
		switch {
		case tt.want < 0:
			assert.Negative(t, got, "%s vs %s", tt.a, tt.b)
		case tt.want > 0:
			assert.Positive(t, got, "%s vs %s", tt.a, tt.b)
		default:
			assert.Zero(t, got, "%s vs %s", tt.a, tt.b)
		}
	}
}

func desc(path, name, version string) extension.Descriptor {
	return extension.Descriptor{Path: path, Name: name, Version: version, Entrypoint: "x.New"}
}

func TestResolve(t *testing.T) {
	kept, dropped := discovery.Resolve([]extension.Descriptor{
		desc("mods/z.kpkg", "Zeta", "1"),
		desc("mods/b.kpkg", "Alpha", "1.10.0"),
		desc("mods/a.kpkg", "Alpha", "1.2.0"),
		desc("mods/c.kpkg", "Beta", "3"),
		desc("mods/d.kpkg", "Beta", "10"),
		desc("mods/f.kpkg", "Tie", "2.0"),
		desc("mods/e.kpkg", "Tie", "2.0"),
	})

	require.Len(t, kept, 4)
	assert.Equal(t, "mods/b.kpkg", kept[0].Path, "Alpha keeps 1.10.0")
	assert.Equal(t, "mods/d.kpkg", kept[1].Path, "Beta keeps 10")
	assert.Equal(t, "mods/e.kpkg", kept[2].Path, "ties keep the first path")
	assert.Equal(t, "Zeta", kept[3].Name)

	var paths []string
	for _, d := range dropped {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"mods/a.kpkg", "mods/c.kpkg", "mods/f.kpkg"}, paths)
}

func TestSurvey(t *testing.T) {
	dir := t.TempDir()
	testutils.WritePackage(t, dir, testutils.Package{File: "good.kpkg", Name: "Good", Version: "1.0", Entrypoint: "x.New"})
	testutils.WritePackage(t, dir, testutils.Package{File: "noentry.kpkg", Name: "NoEntry"})
	testutils.WritePackage(t, dir, testutils.Package{File: "noname.zip", Entrypoint: "x.New"})
	testutils.WritePackage(t, dir, testutils.Package{File: ".hidden.kpkg", Name: "Hidden", Entrypoint: "x.New"})
	testutils.WritePackage(t, dir, testutils.Package{File: "other.jar", Name: "Jar", Entrypoint: "x.New"})
	testutils.WriteZip(t, filepath.Join(dir, "empty.kpkg"), map[string][]byte{"readme.txt": []byte("hi")})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.kpkg"), []byte("not a zip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.kpkg"), 0o755))

	cands := discovery.New(dir).Survey()

	status := map[string]discovery.Status{}
	for _, c := range cands {
		status[filepath.Base(c.Path)] = c.Status
	}
	assert.Equal(t, map[string]discovery.Status{
		"broken.kpkg":  discovery.StatusRejected,
		"empty.kpkg":   discovery.StatusRejected,
		"good.kpkg":    discovery.StatusSelected,
		"noentry.kpkg": discovery.StatusRejected,
		"noname.zip":   discovery.StatusRejected,
	}, status)

	for _, c := range cands {
		if filepath.Base(c.Path) == "good.kpkg" {
			assert.Equal(t, "Good", c.Descriptor.Name)
			assert.Equal(t, "1.0", c.Descriptor.Version)
		}
	}
}

func TestScan_FollowsSymlinks(t *testing.T) {
	store := t.TempDir()
	dir := t.TempDir()
	testutils.WritePackage(t, store, testutils.Package{File: "linked.kpkg", Name: "Linked", Entrypoint: "x.New"})
	testutils.WritePackage(t, dir, testutils.Package{File: "plain.kpkg", Name: "Plain", Entrypoint: "x.New"})
	require.NoError(t, os.Mkdir(filepath.Join(store, "folder.kpkg"), 0o755))

	if err := os.Symlink(filepath.Join(store, "linked.kpkg"), filepath.Join(dir, "linked.kpkg")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(store, "missing.kpkg"), filepath.Join(dir, "dangling.kpkg")))
	require.NoError(t, os.Symlink(filepath.Join(store, "folder.kpkg"), filepath.Join(dir, "folder.kpkg")))

	paths, err := discovery.Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "linked.kpkg"), filepath.Join(dir, "plain.kpkg")}, paths)

	var names []string
	for _, c := range discovery.New(dir).Survey() {
		names = append(names, c.Descriptor.Name)
	}
	assert.ElementsMatch(t, []string{"Linked", "Plain"}, names)
}

func TestParseDescriptor_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := discovery.ParseDescriptor(testutils.WritePackage(t, dir, testutils.Package{File: "a.kpkg", Name: "A"}))
	assert.ErrorIs(t, err, discovery.ErrMissingEntrypoint)

	_, err = discovery.ParseDescriptor(testutils.WritePackage(t, dir, testutils.Package{File: "b.kpkg", Entrypoint: "x.New"}))
	assert.ErrorIs(t, err, discovery.ErrMissingName)

	_, err = discovery.ParseDescriptor(testutils.WriteZip(t, filepath.Join(dir, "c.kpkg"), nil))
	assert.ErrorIs(t, err, discovery.ErrNoDescriptor)

	d, err := discovery.ParseDescriptor(testutils.WritePackage(t, dir, testutils.Package{File: "d.kpkg", Name: "D", Entrypoint: "x.New"}))
	require.NoError(t, err)
	assert.Equal(t, discovery.DefaultVersion, d.Version)
}

func TestParseDescriptor_PropertiesSyntax(t *testing.T) {
	dir := t.TempDir()
	props := "! legacy comment\n" +
		"# comment\n" +
		"   name : Fancy Mod  \n" +
		"version 2.1\n" +
		"entrypoint=example.com/fancy\\\n" +
		"    .New\n"
	path := testutils.WriteZip(t, filepath.Join(dir, "fancy.kpkg"), map[string][]byte{
		discovery.DescriptorFile: []byte(props),
	})

	d, err := discovery.ParseDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "Fancy Mod", d.Name)
	assert.Equal(t, "2.1", d.Version)
	assert.Equal(t, "example.com/fancy.New", d.Entrypoint)
}

func TestSurvey_MissingDirectory(t *testing.T) {
	l := discovery.New(filepath.Join(t.TempDir(), "absent"))
	assert.Empty(t, l.Survey())
	assert.Empty(t, l.Discover())
}

// recorder tracks callbacks of one module instance.
type recorder struct {
	extension.Base
	version string
	reads   atomic.Int32
	late    atomic.Int32
	onRead  func(units unit.View)
}

func (r *recorder) OnReadTransform(units unit.View) {
	r.reads.Add(1)
	if r.onRead != nil {
		r.onRead(units)
	}
}

func (r *recorder) LateStartup() { r.late.Add(1) }

type env struct {
	reg  *registry.Registry
	root *loader.Root
}

func newEnv(units ...*unit.Unit) env {
	reg := registry.New(units)
	rt := host.New()
	p := pipeline.New(reg, ancestry.New(reg, rt), rt, loader.RootName)
	return env{reg: reg, root: loader.NewRoot(rt, reg, p)}
}

func TestLoad_OnlyNewestVersionIsInstantiated(t *testing.T) {
	var instances []*recorder
	for _, v := range []string{"1.0.0", "2.0.0"} {
		v := v
		symbol := "example.com/alpha" + v + ".New"
		extension.Register(symbol, func() extension.Module {
			r := &recorder{version: v}
			instances = append(instances, r)
			return r
		})
		t.Cleanup(func() { extension.Unregister(symbol) })
	}

	dir := t.TempDir()
	testutils.WritePackage(t, dir, testutils.Package{File: "alpha-1.kpkg", Name: "Alpha", Version: "1.0.0", Entrypoint: "example.com/alpha1.0.0.New"})
	testutils.WritePackage(t, dir, testutils.Package{File: "alpha-2.kpkg", Name: "Alpha", Version: "2.0.0", Entrypoint: "example.com/alpha2.0.0.New"})

	e := newEnv(testutils.Class("com/example/Main", ""))
	l := discovery.New(dir)
	l.Load(e.root, e.reg)
	defer l.Close()

	require.Len(t, instances, 1)
	assert.Equal(t, "2.0.0", instances[0].version)
	assert.Equal(t, int32(1), instances[0].reads.Load())
	assert.Equal(t, int32(1), instances[0].late.Load())

	mods := l.Modules()
	require.Len(t, mods, 1)
	assert.Equal(t, "2.0.0", mods[0].Descriptor.Version)
	assert.Equal(t, "Alpha", mods[0].Domain.Name())
	assert.Len(t, e.root.Children(), 1)
}

func TestLoad_NamesRestoredAfterReadTransform(t *testing.T) {
	var seen []string
	symbol := "example.com/renamer.New"
	extension.Register(symbol, func() extension.Module {
		return &recorder{onRead: func(units unit.View) {
			units.Each(func(u *unit.Unit) bool {
				seen = append(seen, u.Name)
				u.Name = "renamed/" + u.Name
				u.SetAttribute("touched", "yes")
				return true
			})
		}}
	})
	t.Cleanup(func() { extension.Unregister(symbol) })

	dir := t.TempDir()
	testutils.WritePackage(t, dir, testutils.Package{File: "a.kpkg", Name: "A", Entrypoint: symbol})
	testutils.WritePackage(t, dir, testutils.Package{File: "b.kpkg", Name: "B", Entrypoint: symbol})

	e := newEnv(testutils.Class("app/One", ""), testutils.Class("app/Two", ""))
	l := discovery.New(dir)
	l.Load(e.root, e.reg)
	defer l.Close()

	assert.Equal(t, []string{"app/One", "app/Two", "app/One", "app/Two"}, seen,
		"the second module sees the original names")
	for _, name := range []string{"app/One", "app/Two"} {
		u, ok := e.reg.Get(name)
		require.True(t, ok)
		assert.Equal(t, name, u.Name)
		assert.Equal(t, "yes", u.Attributes["touched"], "other rewrites survive")
	}
}

func TestLoad_FailuresAreSkipped(t *testing.T) {
	good := "example.com/good.New"
	panicky := "example.com/panicky.New"
	extension.Register(good, func() extension.Module { return &recorder{} })
	extension.Register(panicky, func() extension.Module {
		return &recorder{onRead: func(unit.View) { panic("read failed") }}
	})
	t.Cleanup(func() {
		extension.Unregister(good)
		extension.Unregister(panicky)
	})

	dir := t.TempDir()
	testutils.WritePackage(t, dir, testutils.Package{File: "good.kpkg", Name: "Good", Entrypoint: good})
	testutils.WritePackage(t, dir, testutils.Package{File: "missing.kpkg", Name: "Missing", Entrypoint: "example.com/none.New"})
	testutils.WritePackage(t, dir, testutils.Package{File: "panicky.kpkg", Name: "Panicky", Entrypoint: panicky})
	testutils.WritePackage(t, dir, testutils.Package{File: "noentry.kpkg", Name: "NoEntry"})

	e := newEnv(testutils.Class("app/One", ""))
	l := discovery.New(dir)
	l.Load(e.root, e.reg)

	var names []string
	for _, m := range l.Modules() {
		names = append(names, m.Descriptor.Name)
	}
	assert.Equal(t, []string{"Good", "Panicky"}, names)
	assert.Len(t, e.root.Children(), 2, "the failed child was closed and detached")

	require.NoError(t, l.Close())
	assert.Empty(t, e.root.Children())
	assert.Empty(t, l.Modules())
}
