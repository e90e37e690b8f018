package extension

import (
	"io"

	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

// Module is implemented by extension authors.
type Module interface {
	// OnClassloadTransform may rewrite u before it is serialized and defined.
	// It runs once per unit; it must not rename u.
	OnClassloadTransform(u *unit.Unit)

	// OnReadTransform receives every code unit of the base program. Units may
	// be rewritten in place; names are restored by the runtime afterwards.
	OnReadTransform(units unit.View)

	// LateStartup runs after every module completed OnReadTransform.
	LateStartup()
}

// Base implements Module with no-op callbacks, for embedding.
type Base struct{}

func (Base) OnClassloadTransform(*unit.Unit) {}
func (Base) OnReadTransform(unit.View)       {}
func (Base) LateStartup()                    {}

// Domain is the loading domain hosting a module.
type Domain interface {
	// Name identifies the domain within the domain tree.
	Name() string
	// Materialize resolves a type through the domain hierarchy.
	Materialize(name string) (ports.Type, error)
	// Resource opens a resource of the module's own package.
	Resource(name string) (io.ReadCloser, bool)
}

// DomainAware modules receive their domain once, right after construction.
type DomainAware interface {
	SetDomain(d Domain)
}

// Descriptor is the parsed particle.properties of one extension package.
type Descriptor struct {
	Path       string `json:"path" yaml:"path"`
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	Entrypoint string `json:"entrypoint" yaml:"entrypoint"`
}

// Loaded correlates a live module with its descriptor and domain.
type Loaded struct {
	Descriptor Descriptor
	Module     Module
	Domain     Domain
}
