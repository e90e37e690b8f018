// Package pipeline turns registry code units into live host types, running
// extension hooks exactly once per unit.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/kiln/internal/ancestry"
	"github.com/aretw0/kiln/internal/codec"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotInRegistry is returned for names the registry does not hold.
	ErrNotInRegistry = errors.New("unit not in registry")
	// ErrHookPanic wraps a panic raised by an extension hook.
	ErrHookPanic = errors.New("extension hook panicked")
	// ErrCircularTransform is returned when a unit is requested while its own
	// hooks are still running, directly or through other units.
	ErrCircularTransform = errors.New("circular transformation")
)

// ReentryTimeout bounds how long a caller waits on a unit whose hooks are
// running before the request is treated as circular.
const ReentryTimeout = 5 * time.Second

// Failure stages reported by the failure counter.
const (
	StageHook   = "hook"
	StageFrames = "frames"
	StageEncode = "encode"
	StageDefine = "define"
)

// Source provides the units to transform.
type Source interface {
	Get(name string) (*unit.Unit, bool)
}

// ModuleSource lists the loaded extension modules in load order.
type ModuleSource interface {
	Modules() []extension.Loaded
}

type result struct {
	t     ports.Type
	err   error
	stage string
	took  time.Duration
}

// Pipeline transforms, serializes and defines registry units.
type Pipeline struct {
	units    Source
	resolver *ancestry.Resolver
	host     ports.Host
	domain   string
	modules  ModuleSource
	logger   *slog.Logger
	metrics  *Metrics
	recorder Recorder
	reentry  time.Duration

	mu      sync.Mutex
	memo    map[string]*result
	hooking map[string]bool
	group   singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithModules sets the source of classload hooks.
func WithModules(src ModuleSource) Option {
	return func(p *Pipeline) {
		p.modules = src
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithRecorder publishes every new outcome to rec.
func WithRecorder(rec Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = rec
	}
}

// WithReentryTimeout overrides ReentryTimeout.
func WithReentryTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.reentry = d
	}
}

// New creates a pipeline defining types into domain.
func New(units Source, resolver *ancestry.Resolver, host ports.Host, domain string, opts ...Option) *Pipeline {
	p := &Pipeline{
		units:    units,
		resolver: resolver,
		host:     host,
		domain:   domain,
		reentry:  ReentryTimeout,
		memo:     make(map[string]*result),
		hooking:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	p.logger = logging.Component(p.logger, "pipeline")
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Transform returns the live type for the registry unit name. The first call
// runs hooks, frames, encoding and definition; later calls, including
// concurrent ones, share its outcome. Failures are remembered too.
//
// A request for a unit whose hooks are still running after the reentry
// timeout fails with ErrCircularTransform. That outcome is not memoized.
func (p *Pipeline) Transform(name string) (ports.Type, error) {
	key := unit.InternalName(name)
	if r, ok := p.cached(key); ok {
		return r.t, r.err
	}
	u, ok := p.units.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInRegistry, unit.BinaryName(key))
	}

	ch := p.group.DoChan(key, func() (any, error) {
		if r, ok := p.cached(key); ok {
			return r, nil
		}
		r := p.run(key, u)
		p.mu.Lock()
		prev, dup := p.memo[key]
		if dup {
			r = prev
		} else {
			p.memo[key] = r
		}
		p.mu.Unlock()
		if !dup {
			p.record(key, r)
		}
		return r, nil
	})
	r, err := p.await(key, ch)
	if err != nil {
		return nil, err
	}
	return r.t, r.err
}

func (p *Pipeline) await(key string, ch <-chan singleflight.Result) (*result, error) {
	timer := time.NewTimer(p.reentry)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Val.(*result), nil
	case <-timer.C:
	}
	if p.inHooks(key) {
		p.logger.Warn("Circular transformation", "unit", unit.BinaryName(key))
		return nil, fmt.Errorf("%w: %s", ErrCircularTransform, unit.BinaryName(key))
	}
	res := <-ch
	return res.Val.(*result), nil
}

func (p *Pipeline) inHooks(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hooking[key]
}

func (p *Pipeline) cached(key string) (*result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.memo[key]
	return r, ok
}

// Outcome is the memoized result of one transformation.
type Outcome struct {
	Type ports.Type
	Err  error
}

// Lookup returns the memoized outcome for name without transforming.
func (p *Pipeline) Lookup(name string) (Outcome, bool) {
	r, ok := p.cached(unit.InternalName(name))
	if !ok {
		return Outcome{}, false
	}
	return Outcome{Type: r.t, Err: r.err}, true
}

// Transformed returns the names with a memoized outcome, sorted.
func (p *Pipeline) Transformed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.memo))
	for k := range p.memo {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *Pipeline) run(key string, u *unit.Unit) *result {
	start := time.Now()
	defer func() { p.metrics.duration.Observe(time.Since(start).Seconds()) }()

	fail := func(stage string, err error) *result {
		p.metrics.Failures(stage).Inc()
		p.logger.Error("Transformation failed", "unit", unit.BinaryName(key), "stage", stage, "err", err)
		return &result{err: err, stage: stage, took: time.Since(start)}
	}

	if err := p.hooks(key, u); err != nil {
		return fail(StageHook, err)
	}
	p.resolver.Invalidate(key)

	if err := ComputeFrames(u, p.resolver); err != nil {
		return fail(StageFrames, err)
	}
	bin, err := codec.Encode(u)
	if err != nil {
		return fail(StageEncode, fmt.Errorf("encode %s: %w", unit.BinaryName(key), err))
	}
	t, err := p.host.Define(p.domain, unit.BinaryName(key), bin)
	if err != nil {
		return fail(StageDefine, err)
	}

	p.metrics.transformed.Inc()
	p.logger.Debug("Unit transformed", "unit", t.Name(), "bytes", len(bin))
	return &result{t: t, took: time.Since(start)}
}

func (p *Pipeline) hooks(key string, u *unit.Unit) error {
	if p.modules == nil {
		return nil
	}
	p.mu.Lock()
	p.hooking[key] = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.hooking, key)
		p.mu.Unlock()
	}()

	for _, l := range p.modules.Modules() {
		if err := callHook(l, u); err != nil {
			return err
		}
		if unit.InternalName(u.Name) != key {
			p.logger.Warn("Extension renamed a unit during classload, restoring",
				"module", l.Descriptor.Name, "unit", unit.BinaryName(key), "renamed", u.Name)
			u.Name = key
		}
	}
	return nil
}

func callHook(l extension.Loaded, u *unit.Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s on %s: %v", ErrHookPanic, l.Descriptor.Name, unit.BinaryName(u.Name), r)
		}
	}()
	l.Module.OnClassloadTransform(u)
	return nil
}
