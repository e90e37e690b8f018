// Package registry owns every code unit known at startup, keyed by internal
// name. The key set is fixed once the registry is built; units themselves stay
// mutable so extension modules can rewrite them in place.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/unit"
)

// ErrRestoreInvariant signals that a unit's name could not be restored to its
// registry key. The registry mapping is corrupt once this happens.
var ErrRestoreInvariant = errors.New("unit name does not match its registry key")

// Registry maps internal names to mutable units.
// The map is never written after New, so concurrent reads need no locking.
type Registry struct {
	units map[string]*unit.Unit
	names []string
}

// Option configures New.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger reports shadowed duplicates to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds a registry. When two units share a name the first one wins, the
// way the first search path element shadows later ones.
func New(units []*unit.Unit, opts ...Option) *Registry {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{units: make(map[string]*unit.Unit, len(units))}
	for _, u := range units {
		key := unit.InternalName(u.Name)
		if prev, ok := r.units[key]; ok {
			o.logger.Warn("Duplicate code unit ignored", "name", key, "kept", prev.Source, "ignored", u.Source)
			continue
		}
		u.Name = key
		r.units[key] = u
		r.names = append(r.names, key)
	}
	sort.Strings(r.names)
	return r
}

// Get returns the unit registered under name (either separator).
func (r *Registry) Get(name string) (*unit.Unit, bool) {
	u, ok := r.units[unit.InternalName(name)]
	return u, ok
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	return len(r.names)
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns a snapshot of every unit in name order.
func (r *Registry) All() []*unit.Unit {
	out := make([]*unit.Unit, len(r.names))
	for i, n := range r.names {
		out[i] = r.units[n]
	}
	return out
}

// Each implements unit.View.
func (r *Registry) Each(fn func(u *unit.Unit) bool) {
	for _, n := range r.names {
		if !fn(r.units[n]) {
			return
		}
	}
}

// View returns the registry as a unit.View. The view hides every method that
// is not part of the View contract.
func (r *Registry) View() unit.View {
	return view{r}
}

type view struct{ r *Registry }

func (v view) Len() int                           { return v.r.Len() }
func (v view) Get(name string) (*unit.Unit, bool) { return v.r.Get(name) }
func (v view) Each(fn func(u *unit.Unit) bool)    { v.r.Each(fn) }

// NameSnapshot records the registry key of every unit.
type NameSnapshot map[*unit.Unit]string

// SnapshotNames captures the current name of every unit.
func (r *Registry) SnapshotNames() NameSnapshot {
	snap := make(NameSnapshot, len(r.units))
	for key, u := range r.units {
		snap[u] = key
	}
	return snap
}

// RestoreNames writes every recorded name back and checks that each unit is
// again named after its key. A mismatch panics with ErrRestoreInvariant.
func (r *Registry) RestoreNames(snap NameSnapshot) {
	for u, name := range snap {
		u.Name = name
	}
	for key, u := range r.units {
		if u.Name != key {
			panic(fmt.Errorf("%w: key %q, name %q", ErrRestoreInvariant, key, u.Name))
		}
	}
}
