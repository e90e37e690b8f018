// Package loader implements the loading domain tree: one root domain backed by
// the code unit registry and one child domain per extension package.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

// RootName is the domain name of the root.
const RootName = "root"

// DefaultProtected lists namespaces always resolved by the host.
var DefaultProtected = []string{"kiln/", "github/com/fxamacker/cbor/"}

// Source looks up registry units.
type Source interface {
	Get(name string) (*unit.Unit, bool)
}

// Transformer turns a registry unit into a live type, once.
type Transformer interface {
	Transform(name string) (ports.Type, error)
}

// Resources opens named resources.
type Resources interface {
	Open(name string) (io.ReadCloser, bool)
	OpenAll(name string) []io.ReadCloser
}

// Root is the top of the domain tree.
type Root struct {
	host      ports.Host
	units     Source
	pipeline  Transformer
	resources Resources
	protected []string
	logger    *slog.Logger

	mu       sync.RWMutex
	children []*Child
}

var _ extension.Domain = (*Root)(nil)

// Option configures a Root.
type Option func(*Root)

// WithProtected adds protected namespaces. DefaultProtected always applies.
func WithProtected(prefixes ...string) Option {
	return func(r *Root) {
		for _, p := range prefixes {
			if p != "" && !slices.Contains(r.protected, p) {
				r.protected = append(r.protected, p)
			}
		}
	}
}

// WithResources sets the root's own resource set, usually the search path.
func WithResources(res Resources) Option {
	return func(r *Root) {
		r.resources = res
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Root) {
		r.logger = logger
	}
}

// NewRoot creates the root domain. pipeline may be nil when the registry is
// only used for lookups.
func NewRoot(host ports.Host, units Source, pipeline Transformer, opts ...Option) *Root {
	r := &Root{
		host:      host,
		units:     units,
		pipeline:  pipeline,
		protected: slices.Clone(DefaultProtected),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	r.logger = logging.Component(r.logger, "loader")
	return r
}

// Name returns RootName.
func (r *Root) Name() string { return RootName }

// Protected reports whether name must be resolved by the host directly.
func (r *Root) Protected(name string) bool {
	for _, p := range r.protected {
		if unit.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Materialize resolves name to a live type.
func (r *Root) Materialize(name string) (ports.Type, error) {
	name = unit.InternalName(name)
	if r.Protected(name) {
		return r.host.Resolve(name)
	}

	chain := Chain{r.fromRegistry, r.fromHost}
	for _, c := range r.Children() {
		chain = append(chain, c.FindOwn)
	}
	t, err := chain.Resolve(name)
	if err != nil {
		r.logger.Debug("Type not materialized", "name", unit.BinaryName(name), "err", err)
	}
	return t, err
}

func (r *Root) fromRegistry(name string) (ports.Type, error) {
	if r.units == nil || r.pipeline == nil {
		return nil, notFound("%s: no registry", unit.BinaryName(name))
	}
	if _, ok := r.units.Get(name); !ok {
		return nil, notFound("%s: not in registry", unit.BinaryName(name))
	}
	return r.pipeline.Transform(name)
}

func (r *Root) fromHost(name string) (ports.Type, error) {
	return r.host.Resolve(name)
}

// Resource opens name from the root's resources, then each child's package,
// then the host. Absence is not an error.
func (r *Root) Resource(name string) (io.ReadCloser, bool) {
	if r.resources != nil {
		if rc, ok := r.resources.Open(name); ok {
			return rc, true
		}
	}
	for _, c := range r.Children() {
		if rc, ok := c.Resource(name); ok {
			return rc, true
		}
	}
	return r.host.Resource(name)
}

// Resources returns every copy of name held by the first source that has any,
// in the same order as Resource.
func (r *Root) Resources(name string) []io.ReadCloser {
	if r.resources != nil {
		if all := r.resources.OpenAll(name); len(all) > 0 {
			return all
		}
	}
	for _, c := range r.Children() {
		if rc, ok := c.Resource(name); ok {
			return []io.ReadCloser{rc}
		}
	}
	if rc, ok := r.host.Resource(name); ok {
		return []io.ReadCloser{rc}
	}
	return nil
}

// NewChild opens the package at archivePath and attaches a child domain
// for it.
func (r *Root) NewChild(name, archivePath string) (*Child, error) {
	a, err := artifacts.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", archivePath, err)
	}
	c := &Child{
		name:    name,
		root:    r,
		archive: a,
		cache:   make(map[string]ports.Type),
		logger:  r.logger.With("domain", name),
	}
	r.Attach(c)
	return c, nil
}

// Attach adds c to the children consulted by Materialize and Resource.
func (r *Root) Attach(c *Child) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.children {
		if existing == c {
			return
		}
	}
	r.children = append(r.children, c)
}

// Detach removes c. Resolutions already iterating a snapshot skip it.
func (r *Root) Detach(c *Child) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.children {
		if existing == c {
			r.children = append(r.children[:i:i], r.children[i+1:]...)
			return
		}
	}
}

// Children returns a snapshot of the attached children in attach order.
func (r *Root) Children() []*Child {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Child(nil), r.children...)
}
