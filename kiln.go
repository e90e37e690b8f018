package kiln

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/kiln/internal/adapters/redis"
	"github.com/aretw0/kiln/internal/ancestry"
	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/internal/config"
	"github.com/aretw0/kiln/internal/discovery"
	"github.com/aretw0/kiln/internal/host"
	"github.com/aretw0/kiln/internal/loader"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/internal/pipeline"
	"github.com/aretw0/kiln/internal/registry"
	"github.com/aretw0/kiln/internal/validator"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the kiln release.
var Version = "0.1.0"

// Config holds the runtime settings. See DefaultConfig and LoadConfig.
type Config = config.Config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Default() }

// LoadConfig layers the file at path (kiln.yaml when empty) and the KILN_*
// environment over the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Runtime wires the registry, the domain tree, the pipeline and the
// extension loader around one host.
type Runtime struct {
	cfg        config.Config
	host       ports.Host
	logger     *slog.Logger
	registerer prometheus.Registerer
	units      []*unit.Unit

	registry  *registry.Registry
	resolver  *ancestry.Resolver
	pipeline  *pipeline.Pipeline
	root      *loader.Root
	mods      *discovery.Loader
	resources *artifacts.ResourceSet
	recorder  *redis.Recorder

	startOnce sync.Once
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithHost replaces the default in-process host.
func WithHost(h ports.Host) Option {
	return func(r *Runtime) {
		r.host = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithRegisterer registers the pipeline metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runtime) {
		r.registerer = reg
	}
}

// WithUnits supplies the base program directly instead of reading the
// search path.
func WithUnits(units ...*unit.Unit) Option {
	return func(r *Runtime) {
		r.units = units
	}
}

// New reads the base program and builds the runtime. Extensions are not
// loaded until Start.
func New(cfg config.Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.host == nil {
		r.host = host.New(host.WithLogger(r.logger), host.WithRootDomain(loader.RootName))
	}

	if r.units == nil {
		units, err := artifacts.Load(cfg.SearchPath, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load base program: %w", err)
		}
		r.units = units
	}

	r.registry = registry.New(r.units, registry.WithLogger(r.logger))
	r.resolver = ancestry.New(r.registry, r.host)
	r.mods = discovery.New(cfg.ModsDir, discovery.WithLogger(r.logger))
	pipeOpts := []pipeline.Option{
		pipeline.WithModules(r.mods),
		pipeline.WithLogger(r.logger),
		pipeline.WithMetrics(pipeline.NewMetrics(r.registerer)),
	}
	if cfg.RedisURL != "" {
		rec, err := redis.New(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		r.recorder = rec
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(rec))
	}
	r.pipeline = pipeline.New(r.registry, r.resolver, r.host, loader.RootName, pipeOpts...)
	r.resources = artifacts.OpenResources(cfg.SearchPath, r.logger)

	rootOpts := []loader.Option{
		loader.WithResources(r.resources),
		loader.WithLogger(r.logger),
	}
	if len(cfg.ProtectedPrefixes) > 0 {
		rootOpts = append(rootOpts, loader.WithProtected(cfg.ProtectedPrefixes...))
	}
	r.root = loader.NewRoot(r.host, r.registry, r.pipeline, rootOpts...)

	r.logger.Info("Base program loaded", "units", r.registry.Len(), "search_path", cfg.SearchPath)
	return r, nil
}

// Start discovers and loads the extensions, then runs their read transform
// and late startup. Only the first call has an effect.
func (r *Runtime) Start() {
	r.startOnce.Do(func() {
		r.mods.Load(r.root, r.registry)
		r.logger.Info("Extensions loaded", "count", len(r.mods.Modules()))
	})
}

// Materialize makes name live together with every registry unit it
// references, directly or transitively.
func (r *Runtime) Materialize(name string) (ports.Type, error) {
	name = unit.InternalName(name)
	t, err := r.root.Materialize(name)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		u, ok := r.registry.Get(cur)
		if !ok {
			continue
		}
		for _, ref := range u.References() {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			if _, inRegistry := r.registry.Get(ref); !inRegistry || r.root.Protected(ref) {
				continue
			}
			if _, err := r.root.Materialize(ref); err != nil {
				return nil, fmt.Errorf("materialize %s (referenced by %s): %w", unit.BinaryName(ref), unit.BinaryName(cur), err)
			}
			queue = append(queue, ref)
		}
	}
	return t, nil
}

// Run starts the runtime and invokes the configured entry point.
func (r *Runtime) Run(ctx context.Context, args []string) error {
	r.Start()
	entry, err := r.Materialize(r.cfg.EntrySymbol)
	if err != nil {
		return fmt.Errorf("failed to materialize entry point %s: %w", r.cfg.EntrySymbol, err)
	}
	return r.host.Invoke(ctx, entry, args)
}

// Close releases every extension domain and the search path archives.
func (r *Runtime) Close() error {
	errs := []error{r.mods.Close(), r.resources.Close()}
	if r.recorder != nil {
		errs = append(errs, r.recorder.Close())
	}
	return errors.Join(errs...)
}

// Launch builds a runtime from cfg, runs the entry point and closes it.
func Launch(ctx context.Context, cfg config.Config, args []string, opts ...Option) error {
	rt, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.Run(ctx, args)
}

// Units returns every base program unit in name order.
func (r *Runtime) Units() []*unit.Unit { return r.registry.All() }

// Unit returns the base program unit name.
func (r *Runtime) Unit(name string) (*unit.Unit, bool) { return r.registry.Get(name) }

// Modules returns the loaded extensions in load order.
func (r *Runtime) Modules() []extension.Loaded { return r.mods.Modules() }

// Outcome reports whether name was transformed and how it went.
func (r *Runtime) Outcome(name string) (pipeline.Outcome, bool) { return r.pipeline.Lookup(name) }

// Survey reports every package in the extension directory.
func (r *Runtime) Survey() []discovery.Candidate { return r.mods.Survey() }

// Root returns the root loading domain.
func (r *Runtime) Root() *loader.Root { return r.root }

// Host returns the host runtime.
func (r *Runtime) Host() ports.Host { return r.host }

// Validate checks the base program reachable from the entry point without
// making anything live.
func (r *Runtime) Validate() validator.Report {
	return validator.ValidateProgram(r.registry.View(), r.host, r.cfg.EntrySymbol)
}
