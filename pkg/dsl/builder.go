package dsl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/kiln/pkg/unit"
)

var (
	ErrEmptyName      = errors.New("unit name is empty")
	ErrDuplicateBlock = errors.New("duplicate block id")
)

// Builder collects units.
type Builder struct {
	units map[string]*UnitBuilder
}

// New creates a new program builder.
func New() *Builder {
	return &Builder{
		units: make(map[string]*UnitBuilder),
	}
}

// Add starts a unit. If the unit already exists, it returns the existing
// builder.
func (b *Builder) Add(name string) *UnitBuilder {
	key := unit.InternalName(name)
	if ub, ok := b.units[key]; ok {
		return ub
	}
	ub := &UnitBuilder{
		unit:    &unit.Unit{Name: key},
		builder: b,
	}
	b.units[key] = ub
	return ub
}

// Build returns the units sorted by name.
func (b *Builder) Build() ([]*unit.Unit, error) {
	names := make([]string, 0, len(b.units))
	for name := range b.units {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*unit.Unit, 0, len(names))
	for _, name := range names {
		u, err := b.units[name].Build()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// MustBuild is Build for programs known to be well formed.
func (b *Builder) MustBuild() []*unit.Unit {
	units, err := b.Build()
	if err != nil {
		panic(err)
	}
	return units
}

func checkBlocks(owner string, m unit.Method) error {
	seen := make(map[int]bool, len(m.Blocks))
	for _, blk := range m.Blocks {
		if seen[blk.ID] {
			return fmt.Errorf("%w: %s.%s block %d", ErrDuplicateBlock, unit.BinaryName(owner), m.Name, blk.ID)
		}
		seen[blk.ID] = true
	}
	return nil
}
