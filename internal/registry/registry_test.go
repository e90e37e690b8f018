package registry_test

import (
	"sync"
	"testing"

	"github.com/aretw0/kiln/internal/registry"
	"github.com/aretw0/kiln/internal/testutils"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() *registry.Registry {
	return registry.New([]*unit.Unit{
		testutils.Class("com.example.Main", ""),
		testutils.Class("com/example/Base", ""),
		testutils.Interface("com/example/Api"),
	})
}

func TestRegistry_GetNormalizesNames(t *testing.T) {
	r := newRegistry()

	u, ok := r.Get("com.example.Main")
	require.True(t, ok)
	assert.Equal(t, "com/example/Main", u.Name, "registry keys use the internal form")

	same, ok := r.Get("com/example/Main")
	require.True(t, ok)
	assert.Same(t, u, same)

	_, ok = r.Get("com/example/Missing")
	assert.False(t, ok)
}

func TestRegistry_FirstDuplicateWins(t *testing.T) {
	first := testutils.Class("a/B", "")
	first.Source = "first"
	second := testutils.Class("a.B", "")
	second.Source = "second"

	r := registry.New([]*unit.Unit{first, second})
	assert.Equal(t, 1, r.Len())
	u, _ := r.Get("a/B")
	assert.Equal(t, "first", u.Source)
}

func TestRegistry_SnapshotOrder(t *testing.T) {
	r := newRegistry()
	assert.Equal(t, []string{"com/example/Api", "com/example/Base", "com/example/Main"}, r.Names())

	all := r.All()
	require.Len(t, all, 3)
	all[0] = nil
	assert.NotNil(t, r.All()[0], "All returns a copy")
}

func TestRegistry_ViewEachStops(t *testing.T) {
	v := newRegistry().View()
	assert.Equal(t, 3, v.Len())

	var seen []string
	v.Each(func(u *unit.Unit) bool {
		seen = append(seen, u.Name)
		return len(seen) < 2
	})
	assert.Equal(t, []string{"com/example/Api", "com/example/Base"}, seen)
}

func TestRegistry_RestoreNames(t *testing.T) {
	r := newRegistry()
	snap := r.SnapshotNames()

	r.View().Each(func(u *unit.Unit) bool {
		u.Name = "renamed/" + u.Name
		return true
	})

	r.RestoreNames(snap)
	for _, name := range r.Names() {
		u, ok := r.Get(name)
		require.True(t, ok)
		assert.Equal(t, name, u.Name)
	}
}

func TestRegistry_RestoreNamesDetectsCorruption(t *testing.T) {
	r := newRegistry()
	u, _ := r.Get("com/example/Main")
	u.Name = "elsewhere/Main"

	assert.PanicsWithError(t,
		`unit name does not match its registry key: key "com/example/Main", name "elsewhere/Main"`,
		func() { r.RestoreNames(registry.NameSnapshot{}) })
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := newRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, ok := r.Get("com.example.Main")
				assert.True(t, ok)
				assert.Len(t, r.All(), 3)
			}
		}()
	}
	wg.Wait()
}
