package pipeline_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/kiln/internal/ancestry"
	"github.com/aretw0/kiln/internal/host"
	"github.com/aretw0/kiln/internal/pipeline"
	"github.com/aretw0/kiln/internal/registry"
	"github.com/aretw0/kiln/internal/testutils"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type modules []extension.Loaded

func (m modules) Modules() []extension.Loaded { return m }

type counter struct {
	extension.Base
	calls atomic.Int32
	fn    func(u *unit.Unit)
}

func (c *counter) OnClassloadTransform(u *unit.Unit) {
	c.calls.Add(1)
	if c.fn != nil {
		c.fn(u)
	}
}

func loaded(name string, m extension.Module) extension.Loaded {
	return extension.Loaded{Descriptor: extension.Descriptor{Name: name}, Module: m}
}

func newPipeline(units []*unit.Unit, opts ...pipeline.Option) (*pipeline.Pipeline, *host.Runtime) {
	reg := registry.New(units)
	rt := host.New()
	return pipeline.New(reg, ancestry.New(reg, rt), rt, "root", opts...), rt
}

func TestTransform_ExactlyOnceUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	hook := &counter{}
	p, _ := newPipeline(
		[]*unit.Unit{testutils.Class("com/example/Main", "")},
		pipeline.WithModules(modules{loaded("alpha", hook)}),
	)

	const workers = 16
	types := make([]ports.Type, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			types[i], errs[i] = p.Transform("com.example.Main")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, types[0], types[i])
	}
	assert.Equal(t, int32(1), hook.calls.Load())

	again, err := p.Transform("com/example/Main")
	require.NoError(t, err)
	assert.Same(t, types[0], again)
	assert.Equal(t, int32(1), hook.calls.Load())
	assert.Equal(t, []string{"com/example/Main"}, p.Transformed())
}

func TestTransform_HooksRunInLoadOrder(t *testing.T) {
	var order []string
	first := &counter{fn: func(u *unit.Unit) { order = append(order, "first"); u.SetAttribute("by", "first") }}
	second := &counter{fn: func(u *unit.Unit) { order = append(order, "second"); u.SetAttribute("by", "second") }}

	p, rt := newPipeline(
		[]*unit.Unit{testutils.Class("app/Thing", "")},
		pipeline.WithModules(modules{loaded("first", first), loaded("second", second)}),
	)
	_, err := p.Transform("app.Thing")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, order)
	c, ok := rt.Lookup("root", "app/Thing")
	require.True(t, ok)
	assert.Equal(t, "second", c.Body().Attributes["by"])
}

func TestTransform_RenameIsUndone(t *testing.T) {
	rename := &counter{fn: func(u *unit.Unit) { u.Name = "elsewhere/Thing" }}
	p, rt := newPipeline(
		[]*unit.Unit{testutils.Class("app/Thing", "")},
		pipeline.WithModules(modules{loaded("renamer", rename)}),
	)

	typ, err := p.Transform("app/Thing")
	require.NoError(t, err)
	assert.Equal(t, "app.Thing", typ.Name())
	_, ok := rt.Lookup("root", "elsewhere/Thing")
	assert.False(t, ok)
}

func TestTransform_FailuresAreMemoized(t *testing.T) {
	boom := &counter{fn: func(u *unit.Unit) { panic("boom") }}
	metrics := pipeline.NewMetrics(prometheus.NewRegistry())
	p, rt := newPipeline(
		[]*unit.Unit{testutils.Class("app/Fragile", "")},
		pipeline.WithModules(modules{loaded("boom", boom)}),
		pipeline.WithMetrics(metrics),
	)

	_, err := p.Transform("app/Fragile")
	require.ErrorIs(t, err, pipeline.ErrHookPanic)
	assert.Contains(t, err.Error(), "boom")

	_, again := p.Transform("app/Fragile")
	assert.Equal(t, err, again)
	assert.Equal(t, int32(1), boom.calls.Load(), "a failed unit is never retried")

	out, ok := p.Lookup("app.Fragile")
	require.True(t, ok)
	assert.Nil(t, out.Type)
	assert.ErrorIs(t, out.Err, pipeline.ErrHookPanic)

	_, defined := rt.Lookup("root", "app/Fragile")
	assert.False(t, defined)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Failures(pipeline.StageHook)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Transformed()))
}

func TestTransform_UnresolvableTypeFails(t *testing.T) {
	u := &unit.Unit{Name: "app/Broken", Methods: []unit.Method{{
		Name:  "pick",
		Flags: unit.FlagStatic,
		Blocks: []unit.Block{
			{ID: 0, Succ: []int{1, 2}},
			{ID: 1, Stores: map[int]string{0: "nowhere/A"}, Succ: []int{3}},
			{ID: 2, Stores: map[int]string{0: "nowhere/B"}, Succ: []int{3}},
			{ID: 3},
		},
	}}}
	metrics := pipeline.NewMetrics(nil)
	p, _ := newPipeline([]*unit.Unit{u}, pipeline.WithMetrics(metrics))

	_, err := p.Transform("app/Broken")
	assert.ErrorIs(t, err, ancestry.ErrUnresolvable)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Failures(pipeline.StageFrames)))
}

func TestTransform_NotInRegistry(t *testing.T) {
	p, _ := newPipeline(nil)
	_, err := p.Transform("app/Ghost")
	assert.ErrorIs(t, err, pipeline.ErrNotInRegistry)
	_, ok := p.Lookup("app/Ghost")
	assert.False(t, ok)
}

func TestTransform_CountsSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	p, _ := newPipeline([]*unit.Unit{
		testutils.Class("app/A", ""),
		testutils.Class("app/B", "app/A"),
	}, pipeline.WithMetrics(metrics))

	for _, name := range []string{"app/A", "app/B", "app/A"} {
		_, err := p.Transform(name)
		require.NoError(t, err)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Transformed()))

	n, err := testutil.GatherAndCount(reg, "kiln_transform_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTransform_HookRequestingItsOwnUnitFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	var p *pipeline.Pipeline
	var inner error
	self := &counter{fn: func(u *unit.Unit) { _, inner = p.Transform(u.Name) }}
	p, _ = newPipeline(
		[]*unit.Unit{testutils.Class("app/Loop", "")},
		pipeline.WithModules(modules{loaded("self", self)}),
		pipeline.WithReentryTimeout(20*time.Millisecond),
	)

	typ, err := p.Transform("app/Loop")
	require.NoError(t, err)
	assert.Equal(t, "app.Loop", typ.Name())
	assert.ErrorIs(t, inner, pipeline.ErrCircularTransform)
	assert.Equal(t, int32(1), self.calls.Load())

	again, err := p.Transform("app/Loop")
	require.NoError(t, err)
	assert.Same(t, typ, again, "the circular failure is not memoized")
}

func TestTransform_IndirectCycleDoesNotHang(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		p    *pipeline.Pipeline
		mu   sync.Mutex
		errs []error
	)
	peer := map[string]string{"app/A": "app/B", "app/B": "app/A"}
	cross := &counter{fn: func(u *unit.Unit) {
		_, err := p.Transform(peer[u.Name])
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}}
	p, _ = newPipeline(
		[]*unit.Unit{testutils.Class("app/A", ""), testutils.Class("app/B", "")},
		pipeline.WithModules(modules{loaded("cross", cross)}),
		pipeline.WithReentryTimeout(20*time.Millisecond),
	)

	_, err := p.Transform("app/A")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := p.Lookup("app/B")
		return ok
	}, time.Second, 5*time.Millisecond)
	_, err = p.Transform("app/B")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 2)
	circular := 0
	for _, e := range errs {
		if errors.Is(e, pipeline.ErrCircularTransform) {
			circular++
		}
	}
	assert.GreaterOrEqual(t, circular, 1)
}
