package loader

import (
	"errors"

	"github.com/aretw0/kiln/pkg/ports"
)

// Resolver is one step of a resolution chain. It reports ErrNotFound when
// the name is not its own; any other error ends the chain.
type Resolver func(name string) (ports.Type, error)

// Chain tries resolvers in order and stops at the first success.
type Chain []Resolver

// Resolve runs the chain. When every resolver misses, the result is a
// *NotFoundError carrying each miss.
func (c Chain) Resolve(name string) (ports.Type, error) {
	var causes []error
	for _, r := range c {
		t, err := r(name)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		causes = append(causes, err)
	}
	return nil, &NotFoundError{Name: name, Causes: causes}
}
