package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

var (
	// ErrNotFound marks a name no resolver in a chain could materialize.
	ErrNotFound = ports.ErrTypeNotFound
	// ErrClosed is returned by a child domain after Close.
	ErrClosed = errors.New("loading domain closed")
)

// NotFoundError aggregates the failures of every resolver that was tried.
type NotFoundError struct {
	Name   string
	Causes []error
}

func (e *NotFoundError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("%s: %s", ErrNotFound, unit.BinaryName(e.Name))
	}
	msgs := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("%s: %s (tried: %s)", ErrNotFound, unit.BinaryName(e.Name), strings.Join(msgs, "; "))
}

// Unwrap exposes every cause.
func (e *NotFoundError) Unwrap() []error { return e.Causes }

// Is reports ErrNotFound as a match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}
