package loader_test

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/kiln/internal/ancestry"
	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/internal/host"
	"github.com/aretw0/kiln/internal/loader"
	"github.com/aretw0/kiln/internal/pipeline"
	"github.com/aretw0/kiln/internal/registry"
	"github.com/aretw0/kiln/internal/testutils"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fixture struct {
	host *host.Runtime
	root *loader.Root
	dir  string
}

func newFixture(t *testing.T, units ...*unit.Unit) *fixture {
	t.Helper()
	reg := registry.New(units)
	rt := host.New()
	p := pipeline.New(reg, ancestry.New(reg, rt), rt, loader.RootName)
	return &fixture{host: rt, root: loader.NewRoot(rt, reg, p), dir: t.TempDir()}
}

func (f *fixture) child(t *testing.T, name string, entries map[string][]byte) *loader.Child {
	t.Helper()
	path := testutils.WritePackage(t, f.dir, testutils.Package{
		File: name + ".kpkg", Name: name, Entrypoint: "example.com/" + name + ".New", Entries: entries,
	})
	c, err := f.root.NewChild(name, path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestRoot_RegistryUnitIsDefinedOnce(t *testing.T) {
	f := newFixture(t, testutils.Class("com/example/Main", ""))

	first, err := f.root.Materialize("com.example.Main")
	require.NoError(t, err)
	assert.Equal(t, loader.RootName, first.Domain())

	second, err := f.root.Materialize("com/example/Main")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRoot_ProtectedNamesGoToHost(t *testing.T) {
	f := newFixture(t, testutils.Class("kiln/lang/String", ""))

	typ, err := f.root.Materialize("kiln.lang.String")
	require.NoError(t, err)
	assert.Empty(t, typ.Domain(), "native types have no domain")

	c := f.child(t, "alpha", nil)
	fromChild, err := c.Materialize("kiln/lang/String")
	require.NoError(t, err)
	assert.Same(t, typ, fromChild)

	_, err = f.root.Materialize("kiln/lang/Missing")
	assert.ErrorIs(t, err, loader.ErrNotFound)
}

func TestRoot_WithProtectedKeepsDefaults(t *testing.T) {
	reg := registry.New([]*unit.Unit{testutils.Class("kiln/lang/String", ""), testutils.Class("vendor/Lib", "")})
	rt := host.New()
	p := pipeline.New(reg, ancestry.New(reg, rt), rt, loader.RootName)
	root := loader.NewRoot(rt, reg, p, loader.WithProtected("vendor/"), loader.WithProtected("vendor/"))

	assert.True(t, root.Protected("kiln/lang/String"))
	assert.True(t, root.Protected("github/com/fxamacker/cbor/Tag"))
	assert.True(t, root.Protected("vendor/Lib"))
	assert.False(t, root.Protected("com/example/Main"))

	_, err := root.Materialize("vendor/Lib")
	assert.ErrorIs(t, err, loader.ErrNotFound, "protected names skip the registry")
	assert.Equal(t, []string{"kiln/", "github/com/fxamacker/cbor/"}, loader.DefaultProtected)
}

func TestRoot_FindsPackageLocalTypes(t *testing.T) {
	f := newFixture(t)
	c := f.child(t, "alpha", map[string][]byte{
		"lib/Helper.unit": testutils.EncodeUnit(t, testutils.Class("lib/Helper", "")),
	})

	typ, err := f.root.Materialize("lib.Helper")
	require.NoError(t, err)
	assert.Equal(t, "alpha", typ.Domain())
	assert.Equal(t, "lib.Helper", typ.Name())

	own, err := c.FindOwn("lib/Helper")
	require.NoError(t, err)
	assert.Same(t, typ, own)

	viaChild, err := c.Materialize("lib/Helper")
	require.NoError(t, err)
	assert.Same(t, typ, viaChild)
}

func TestRoot_NotFoundAggregatesCauses(t *testing.T) {
	f := newFixture(t)
	f.child(t, "alpha", nil)
	f.child(t, "beta", nil)

	_, err := f.root.Materialize("app/Ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrNotFound)

	var nf *loader.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "app/Ghost", nf.Name)
	assert.Len(t, nf.Causes, 4, "registry, host and one per child")
	assert.Contains(t, err.Error(), "not in beta")
}

func TestRoot_ChildResourceVisibleThroughRoot(t *testing.T) {
	f := newFixture(t)
	f.child(t, "alpha", map[string][]byte{"assets/banner.txt": []byte("hello")})

	rc, ok := f.root.Resource("assets/banner.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", readAll(t, rc))

	all := f.root.Resources("assets/banner.txt")
	require.Len(t, all, 1)
	assert.Equal(t, "hello", readAll(t, all[0]))

	_, ok = f.root.Resource("assets/missing.txt")
	assert.False(t, ok)
	assert.Empty(t, f.root.Resources("assets/missing.txt"))
	_, ok = f.root.Resource("assets")
	assert.False(t, ok, "directories are not resources")
}

func TestRoot_OwnResourcesComeFirst(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	testutils.WriteZip(t, dir+"/base.zip", map[string][]byte{"motd.txt": []byte("base")})
	a, err := artifacts.Open(dir + "/base.zip")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	reg := registry.New(nil)
	root := loader.NewRoot(f.host, reg, nil, loader.WithResources(artifacts.NewResourceSet(a)))
	c, err := root.NewChild("alpha", testutils.WritePackage(t, f.dir, testutils.Package{
		File: "alpha.kpkg", Name: "alpha", Entrypoint: "x.New",
		Entries: map[string][]byte{"motd.txt": []byte("child")},
	}))
	require.NoError(t, err)
	defer c.Close()

	rc, ok := root.Resource("motd.txt")
	require.True(t, ok)
	assert.Equal(t, "base", readAll(t, rc))
}

func TestChild_CloseDetaches(t *testing.T) {
	f := newFixture(t)
	c := f.child(t, "alpha", map[string][]byte{"a.txt": []byte("a")})
	require.Len(t, f.root.Children(), 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close is idempotent")
	assert.Empty(t, f.root.Children())

	_, ok := f.root.Resource("a.txt")
	assert.False(t, ok)
	_, err := c.Materialize("app/Anything")
	assert.ErrorIs(t, err, loader.ErrClosed)
	assert.ErrorIs(t, err, loader.ErrNotFound)
}

func TestChild_MaterializeRacingOwnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, testutils.Class("com/example/Main", ""))
	for i := 0; i < 20; i++ {
		c := f.child(t, fmt.Sprintf("ext%d", i), nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := c.Materialize("com/example/Main")
				if err != nil {
					assert.ErrorIs(t, err, loader.ErrNotFound)
				}
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Close())
		}()
		wg.Wait()

		_, err := c.Materialize("com/example/Main")
		assert.ErrorIs(t, err, loader.ErrNotFound)
	}
	assert.Empty(t, f.root.Children())
}

func TestChild_ConcurrentDetachDuringResolution(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, testutils.Class("com/example/Main", ""))
	var children []*loader.Child
	for i := 0; i < 8; i++ {
		children = append(children, f.child(t, fmt.Sprintf("ext%d", i), map[string][]byte{
			"data.txt": []byte("x"),
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = f.root.Materialize("app/Ghost")
				_, err := f.root.Materialize("com/example/Main")
				assert.NoError(t, err)
				if rc, ok := f.root.Resource("data.txt"); ok {
					rc.Close()
				}
			}
		}()
		go func(c *loader.Child) {
			defer wg.Done()
			assert.NoError(t, c.Close())
		}(children[i])
	}
	wg.Wait()
	assert.Empty(t, f.root.Children())
}

type aware struct {
	extension.Base
	domain extension.Domain
}

func (a *aware) SetDomain(d extension.Domain) { a.domain = d }

func TestChild_InstantiateHandsOverDomain(t *testing.T) {
	const symbol = "example.com/aware.New"
	extension.Register(symbol, func() extension.Module { return &aware{} })
	t.Cleanup(func() { extension.Unregister(symbol) })

	f := newFixture(t)
	c := f.child(t, "aware", nil)

	m, err := c.Instantiate(symbol)
	require.NoError(t, err)
	assert.Same(t, c, m.(*aware).domain)

	_, err = c.Instantiate("example.com/nothing.New")
	assert.ErrorIs(t, err, extension.ErrSymbolNotFound)
}

type loadedModules []extension.Loaded

func (m loadedModules) Modules() []extension.Loaded { return m }

type selfLookup struct {
	extension.Base
	root *loader.Root
	err  error
}

func (s *selfLookup) OnClassloadTransform(u *unit.Unit) {
	_, s.err = s.root.Materialize(u.Name)
}

func TestRoot_HookMaterializingItsOwnUnitReturns(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := registry.New([]*unit.Unit{testutils.Class("app/Loop", "")})
	rt := host.New()
	hook := &selfLookup{}
	p := pipeline.New(reg, ancestry.New(reg, rt), rt, loader.RootName,
		pipeline.WithModules(loadedModules{{Descriptor: extension.Descriptor{Name: "self"}, Module: hook}}),
		pipeline.WithReentryTimeout(20*time.Millisecond),
	)
	hook.root = loader.NewRoot(rt, reg, p)

	typ, err := hook.root.Materialize("app.Loop")
	require.NoError(t, err)
	assert.Equal(t, "app.Loop", typ.Name())
	assert.ErrorIs(t, hook.err, pipeline.ErrCircularTransform)
	assert.NotErrorIs(t, hook.err, loader.ErrNotFound)
}
