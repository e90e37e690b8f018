package loader

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/internal/codec"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

// Child is the loading domain of one extension package.
type Child struct {
	name    string
	root    *Root
	archive artifacts.Archive
	logger  *slog.Logger

	mu     sync.Mutex
	cache  map[string]ports.Type
	closed bool

	closeOnce sync.Once
	closeErr  error
}

var _ extension.Domain = (*Child)(nil)

// Name returns the domain name.
func (c *Child) Name() string { return c.name }

// Path returns the package archive path.
func (c *Child) Path() string { return c.archive.Path() }

// Materialize resolves name for code running in this domain: protected
// names go to the host, everything else to the own cache and then the root.
func (c *Child) Materialize(name string) (ports.Type, error) {
	name = unit.InternalName(name)
	if c.root.Protected(name) {
		return c.root.host.Resolve(name)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &NotFoundError{Name: name, Causes: []error{fmt.Errorf("domain %s: %w", c.name, ErrClosed)}}
	}
	t, ok := c.cache[name]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	t, err := c.root.Materialize(name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if !c.closed {
		if prev, ok := c.cache[name]; ok {
			t = prev
		} else {
			c.cache[name] = t
		}
	}
	c.mu.Unlock()
	return t, nil
}

// FindOwn returns a type this domain already holds or can define from its
// own package, without consulting any other domain.
func (c *Child) FindOwn(name string) (ports.Type, error) {
	name = unit.InternalName(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, notFound("%s: domain %s closed", unit.BinaryName(name), c.name)
	}
	if t, ok := c.cache[name]; ok {
		return t, nil
	}

	entry := name + codec.Ext
	if !artifacts.Has(c.archive, entry) {
		return nil, notFound("%s: not in %s", unit.BinaryName(name), c.name)
	}
	data, err := artifacts.ReadEntry(c.archive, entry)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", entry, c.name, err)
	}
	t, err := c.root.host.Define(c.name, unit.BinaryName(name), data)
	if err != nil {
		return nil, err
	}
	c.cache[name] = t
	c.logger.Debug("Defined package type", "name", t.Name())
	return t, nil
}

// Resource opens a regular entry of the package archive.
func (c *Child) Resource(name string) (io.ReadCloser, bool) {
	if !artifacts.Has(c.archive, name) {
		return nil, false
	}
	f, err := c.archive.Open(name)
	if err != nil {
		return nil, false
	}
	return f, true
}

// Instantiate builds the module behind entrypoint. DomainAware modules are
// handed this domain before Instantiate returns.
func (c *Child) Instantiate(entrypoint string) (extension.Module, error) {
	f, err := extension.Resolve(entrypoint, c.archive)
	if err != nil {
		return nil, fmt.Errorf("resolve %s in %s: %w", entrypoint, c.name, err)
	}
	m, err := extension.Instantiate(entrypoint, f)
	if err != nil {
		return nil, err
	}
	if aware, ok := m.(extension.DomainAware); ok {
		aware.SetDomain(c)
	}
	return m, nil
}

// Close detaches the domain, drops its cache and closes the package.
// It is safe to call more than once.
func (c *Child) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.cache = nil
		c.mu.Unlock()
		c.root.Detach(c)
		c.closeErr = c.archive.Close()
	})
	return c.closeErr
}
