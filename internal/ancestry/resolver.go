// Package ancestry answers nearest common super type queries over the code
// unit registry and the host's own types.
package ancestry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

var (
	// ErrUnresolvable is returned when a name is unknown to both the registry
	// and the host. Frame reconstruction cannot continue past it.
	ErrUnresolvable = errors.New("type cannot be resolved")
	// ErrCyclicHierarchy is returned when a super type chain loops.
	ErrCyclicHierarchy = errors.New("cyclic type hierarchy")
)

// Source provides registry-backed units.
type Source interface {
	Get(name string) (*unit.Unit, bool)
}

type node struct {
	name       string
	super      string
	interfaces []string
	iface      bool
}

// Resolver is a lazily built, cached graph of named types.
type Resolver struct {
	units  Source
	oracle ports.TypeOracle

	mu    sync.RWMutex
	nodes map[string]node
}

// New creates a resolver over units with oracle as the fallback.
// Either may be nil.
func New(units Source, oracle ports.TypeOracle) *Resolver {
	return &Resolver{
		units:  units,
		oracle: oracle,
		nodes:  make(map[string]node),
	}
}

// Invalidate drops the cached node for name, so the next query re-reads the
// unit. Called after a rewrite may have changed a unit's super type.
func (r *Resolver) Invalidate(name string) {
	r.mu.Lock()
	delete(r.nodes, unit.InternalName(name))
	r.mu.Unlock()
}

func (r *Resolver) node(name string) (node, error) {
	r.mu.RLock()
	n, ok := r.nodes[name]
	r.mu.RUnlock()
	if ok {
		return n, nil
	}

	switch {
	case r.units != nil && r.fromUnits(name, &n):
	case r.oracle != nil && r.fromOracle(name, &n):
	case name == unit.Root:
		n = node{name: unit.Root}
	default:
		return node{}, fmt.Errorf("%w: %s", ErrUnresolvable, unit.BinaryName(name))
	}

	r.mu.Lock()
	r.nodes[name] = n
	r.mu.Unlock()
	return n, nil
}

func (r *Resolver) fromUnits(name string, n *node) bool {
	u, ok := r.units.Get(name)
	if !ok {
		return false
	}
	*n = node{name: name, super: u.SuperName(), iface: u.IsInterface()}
	for _, i := range u.Interfaces {
		n.interfaces = append(n.interfaces, unit.InternalName(i))
	}
	return true
}

func (r *Resolver) fromOracle(name string, n *node) bool {
	info, ok := r.oracle.Describe(name)
	if !ok {
		return false
	}
	*n = node{name: name, super: unit.InternalName(info.Super), iface: info.Interface}
	for _, i := range info.Interfaces {
		n.interfaces = append(n.interfaces, unit.InternalName(i))
	}
	if n.super == "" && name != unit.Root {
		n.super = unit.Root
	}
	return true
}

// chain returns name followed by each of its super types up to the root.
func (r *Resolver) chain(name string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for cur := name; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("%w at %s", ErrCyclicHierarchy, unit.BinaryName(cur))
		}
		seen[cur] = true
		n, err := r.node(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
		cur = n.super
	}
	return out, nil
}

// CommonAncestor returns the nearest class both a and b extend.
//
// Interfaces are never joined: if either side is an interface the result is
// the universal root. Only class chains are walked.
func (r *Resolver) CommonAncestor(a, b string) (string, error) {
	a, b = unit.InternalName(a), unit.InternalName(b)
	if a == b {
		return a, nil
	}

	na, err := r.node(a)
	if err != nil {
		return "", err
	}
	nb, err := r.node(b)
	if err != nil {
		return "", err
	}
	if na.iface || nb.iface {
		return unit.Root, nil
	}

	chainA, err := r.chain(a)
	if err != nil {
		return "", err
	}
	chainB, err := r.chain(b)
	if err != nil {
		return "", err
	}

	if x, ok := firstShared(chainA, chainB); ok {
		return x, nil
	}
	if x, ok := firstShared(chainB, chainA); ok {
		return x, nil
	}
	return unit.Root, nil
}

// firstShared returns the first element of walk that also appears in other.
func firstShared(walk, other []string) (string, bool) {
	in := make(map[string]bool, len(other))
	for _, o := range other {
		in[o] = true
	}
	for _, w := range walk {
		if in[w] {
			return w, true
		}
	}
	return "", false
}

// IsAssignable reports whether a value of type from can be stored where to is
// expected, following super types and declared interfaces.
func (r *Resolver) IsAssignable(from, to string) (bool, error) {
	from, to = unit.InternalName(from), unit.InternalName(to)
	if from == to || to == unit.Root {
		_, err := r.node(from)
		return err == nil, err
	}

	seen := make(map[string]bool)
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == "" || seen[cur] {
			continue
		}
		seen[cur] = true
		if cur == to {
			return true, nil
		}
		n, err := r.node(cur)
		if err != nil {
			return false, err
		}
		queue = append(queue, n.super)
		queue = append(queue, n.interfaces...)
	}
	return false, nil
}
