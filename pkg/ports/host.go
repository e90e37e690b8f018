package ports

import (
	"context"
	"errors"
	"io"
)

// ErrTypeNotFound is returned when a name cannot be resolved to a live type.
var ErrTypeNotFound = errors.New("type not found")

// Type is a live type produced by a Host.
type Type interface {
	// Name returns the binary (dot separated) name of the type.
	Name() string
	// Domain returns the loading domain the type was defined in.
	// Native types report an empty domain.
	Domain() string
	// Super returns the internal name of the super type, empty for the root.
	Super() string
}

// TypeInfo is the structural summary the ancestor resolver needs.
type TypeInfo struct {
	Name       string
	Super      string
	Interfaces []string
	Interface  bool
}

// TypeOracle answers structural questions about types the host knows.
type TypeOracle interface {
	// Describe returns the summary of a type by internal or binary name.
	Describe(name string) (TypeInfo, bool)
}

// Host is the runtime that executes materialized types.
type Host interface {
	TypeOracle

	// Define turns a serialized unit into a live type within domain.
	Define(domain, name string, binary []byte) (Type, error)

	// Resolve looks a name up with the host's own mechanism, ignoring any
	// loading domain. It returns ErrTypeNotFound when the host has no such type.
	Resolve(name string) (Type, error)

	// Resource opens a host resource. The boolean is false when absent.
	Resource(name string) (io.ReadCloser, bool)

	// Invoke runs the entry point of t with the given arguments.
	Invoke(ctx context.Context, t Type, args []string) error
}
