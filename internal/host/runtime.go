// Package host is the bundled in-process runtime that kiln materializes types
// into. It keeps a table of native types and of every type defined in a
// loading domain, verifies incoming binaries and runs the entry type.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/kiln/internal/codec"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

var (
	// ErrDuplicateDefinition is returned when a domain defines a name twice.
	ErrDuplicateDefinition = errors.New("duplicate type definition")
	// ErrNameMismatch is returned when a binary does not carry the requested name.
	ErrNameMismatch = errors.New("binary name does not match requested name")
	// ErrVerify is returned when a binary's frames are inconsistent.
	ErrVerify = errors.New("verification failed")
	// ErrNoEntryPoint is returned by Invoke for types without a main method.
	ErrNoEntryPoint = errors.New("type has no main method")
)

// DefaultRootDomain is the name of the domain searched first by Describe.
const DefaultRootDomain = "root"

// EntryFunc runs the body of an entry type.
type EntryFunc func(ctx context.Context, args []string) error

// Class is a live type.
type Class struct {
	name       string
	domain     string
	super      string
	interfaces []string
	iface      bool
	body       *unit.Unit
}

func (c *Class) Name() string   { return unit.BinaryName(c.name) }
func (c *Class) Domain() string { return c.domain }
func (c *Class) Super() string  { return c.super }

// Body returns the decoded unit a defined class was created from.
// Native classes have no body.
func (c *Class) Body() *unit.Unit { return c.body }

// Runtime implements ports.Host.
type Runtime struct {
	mu      sync.RWMutex
	natives map[string]*Class
	defined map[string]map[string]*Class // domain -> internal name -> class
	entries map[string]EntryFunc
	root    string

	resources fs.FS
	logger    *slog.Logger
}

var _ ports.Host = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithResources serves host resources from fsys.
func WithResources(fsys fs.FS) Option {
	return func(r *Runtime) {
		r.resources = fsys
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithRootDomain names the domain Describe consults before all others.
// It defaults to DefaultRootDomain.
func WithRootDomain(name string) Option {
	return func(r *Runtime) {
		r.root = name
	}
}

// WithNative registers an extra native type.
func WithNative(info ports.TypeInfo) Option {
	return func(r *Runtime) {
		r.addNative(info)
	}
}

// WithEntry binds fn as the body of the entry type name.
func WithEntry(name string, fn EntryFunc) Option {
	return func(r *Runtime) {
		r.entries[unit.InternalName(name)] = fn
	}
}

// New creates a runtime seeded with the native kiln types.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		natives: make(map[string]*Class),
		defined: make(map[string]map[string]*Class),
		entries: make(map[string]EntryFunc),
		root:    DefaultRootDomain,
		logger:  logging.NewNop(),
	}
	for _, info := range natives {
		r.addNative(info)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var natives = []ports.TypeInfo{
	{Name: unit.Root},
	{Name: "kiln/lang/String", Super: unit.Root, Interfaces: []string{"kiln/lang/Comparable"}},
	{Name: "kiln/lang/Number", Super: unit.Root},
	{Name: "kiln/lang/Integer", Super: "kiln/lang/Number", Interfaces: []string{"kiln/lang/Comparable"}},
	{Name: "kiln/lang/Runnable", Interface: true},
	{Name: "kiln/lang/Comparable", Interface: true},
	{Name: "kiln/lang/Error", Super: unit.Root},
	{Name: "kiln/runtime/Module", Interface: true},
	{Name: "kiln/runtime/Domain", Super: unit.Root},
}

func (r *Runtime) addNative(info ports.TypeInfo) {
	name := unit.InternalName(info.Name)
	super := unit.InternalName(info.Super)
	if super == "" && name != unit.Root {
		super = unit.Root
	}
	var ifaces []string
	for _, i := range info.Interfaces {
		ifaces = append(ifaces, unit.InternalName(i))
	}
	r.natives[name] = &Class{name: name, super: super, interfaces: ifaces, iface: info.Interface}
}

// Describe implements ports.TypeOracle over native and defined types.
// Natives come first, then the root domain, then the other domains in name
// order.
func (r *Runtime) Describe(name string) (ports.TypeInfo, bool) {
	name = unit.InternalName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.natives[name]
	if !ok {
		c, ok = r.defined[r.root][name]
	}
	if !ok {
		domains := make([]string, 0, len(r.defined))
		for d := range r.defined {
			if d != r.root {
				domains = append(domains, d)
			}
		}
		slices.Sort(domains)
		for _, d := range domains {
			if c, ok = r.defined[d][name]; ok {
				break
			}
		}
	}
	if !ok {
		return ports.TypeInfo{}, false
	}
	return ports.TypeInfo{Name: c.name, Super: c.super, Interfaces: c.interfaces, Interface: c.iface}, true
}

// Define decodes binary and registers it in domain under name.
func (r *Runtime) Define(domain, name string, binary []byte) (ports.Type, error) {
	key := unit.InternalName(name)
	u, err := codec.Decode(binary)
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}
	if unit.InternalName(u.Name) != key {
		return nil, fmt.Errorf("define %s: %w (binary carries %s)", name, ErrNameMismatch, u.Name)
	}
	if err := verify(u); err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}

	c := &Class{
		name:   key,
		domain: domain,
		super:  u.SuperName(),
		iface:  u.IsInterface(),
		body:   u,
	}
	for _, i := range u.Interfaces {
		c.interfaces = append(c.interfaces, unit.InternalName(i))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	types, ok := r.defined[domain]
	if !ok {
		types = make(map[string]*Class)
		r.defined[domain] = types
	}
	if _, dup := types[key]; dup {
		return nil, fmt.Errorf("define %s in %q: %w", name, domain, ErrDuplicateDefinition)
	}
	types[key] = c
	r.logger.Debug("Defined type", "name", c.Name(), "domain", domain)
	return c, nil
}

// verify checks that every frame belongs to a declared block of its method.
func verify(u *unit.Unit) error {
	for _, m := range u.Methods {
		blocks := make(map[int]bool, len(m.Blocks))
		for _, b := range m.Blocks {
			blocks[b.ID] = true
		}
		for _, f := range m.Frames {
			if !blocks[f.Block] {
				return fmt.Errorf("%w: %s.%s has a frame for unknown block %d", ErrVerify, unit.BinaryName(u.Name), m.Name, f.Block)
			}
		}
	}
	return nil
}

// Resolve returns a native type.
func (r *Runtime) Resolve(name string) (ports.Type, error) {
	r.mu.RLock()
	c, ok := r.natives[unit.InternalName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrTypeNotFound, unit.BinaryName(name))
	}
	return c, nil
}

// Resource opens name from the runtime's resource file system.
func (r *Runtime) Resource(name string) (io.ReadCloser, bool) {
	if r.resources == nil {
		return nil, false
	}
	f, err := r.resources.Open(name)
	if err != nil {
		return nil, false
	}
	if st, err := f.Stat(); err != nil || st.IsDir() {
		f.Close()
		return nil, false
	}
	return f, true
}

// Invoke runs the entry type's main method.
func (r *Runtime) Invoke(ctx context.Context, t ports.Type, args []string) error {
	c, ok := t.(*Class)
	if !ok {
		return fmt.Errorf("invoke %s: foreign type %T", t.Name(), t)
	}
	if c.body == nil {
		return fmt.Errorf("invoke %s: %w", c.Name(), ErrNoEntryPoint)
	}
	if m, ok := c.body.Method("main"); !ok || !m.Flags.Has(unit.FlagStatic) {
		return fmt.Errorf("invoke %s: %w", c.Name(), ErrNoEntryPoint)
	}

	r.mu.RLock()
	fn := r.entries[c.name]
	r.mu.RUnlock()

	r.logger.Info("Invoking entry point", "type", c.Name(), "domain", c.domain, "args", len(args))
	if fn == nil {
		return nil
	}
	return fn(ctx, args)
}

// Lookup returns the class defined under name in domain.
func (r *Runtime) Lookup(domain, name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.defined[domain][unit.InternalName(name)]
	return c, ok
}
