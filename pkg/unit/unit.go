package unit

import (
	"maps"
	"slices"
)

// Root is the universal root type every class chain ends in.
const Root = "kiln/lang/Object"

// Top marks a local slot that holds no usable value.
const Top = ""

// Flags describe access and kind modifiers of units, fields and methods.
type Flags uint16

const (
	FlagPublic Flags = 1 << iota
	FlagPrivate
	FlagStatic
	FlagFinal
	FlagInterface
	FlagAbstract
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Unit is the structural body of one compiled type.
type Unit struct {
	Name       string            `json:"name" yaml:"name" cbor:"1,keyasint"`
	Super      string            `json:"super,omitempty" yaml:"super,omitempty" cbor:"2,keyasint,omitempty"`
	Interfaces []string          `json:"interfaces,omitempty" yaml:"interfaces,omitempty" cbor:"3,keyasint,omitempty"`
	Flags      Flags             `json:"flags,omitempty" yaml:"flags,omitempty" cbor:"4,keyasint,omitempty"`
	Fields     []Field           `json:"fields,omitempty" yaml:"fields,omitempty" cbor:"5,keyasint,omitempty"`
	Methods    []Method          `json:"methods,omitempty" yaml:"methods,omitempty" cbor:"6,keyasint,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" cbor:"7,keyasint,omitempty"`

	// Source is the artifact the unit was read from. It is not serialized.
	Source string `json:"-" yaml:"-" cbor:"-"`
}

// Field is a named, typed member of a Unit.
type Field struct {
	Name  string `json:"name" yaml:"name" cbor:"1,keyasint"`
	Type  string `json:"type" yaml:"type" cbor:"2,keyasint"`
	Flags Flags  `json:"flags,omitempty" yaml:"flags,omitempty" cbor:"3,keyasint,omitempty"`
}

// Method is a method signature with an optional body.
// Blocks[0] is the entry block. Frames are computed by the runtime and
// overwritten every time the unit is serialized.
type Method struct {
	Name    string   `json:"name" yaml:"name" cbor:"1,keyasint"`
	Params  []string `json:"params,omitempty" yaml:"params,omitempty" cbor:"2,keyasint,omitempty"`
	Returns string   `json:"returns,omitempty" yaml:"returns,omitempty" cbor:"3,keyasint,omitempty"`
	Flags   Flags    `json:"flags,omitempty" yaml:"flags,omitempty" cbor:"4,keyasint,omitempty"`
	Blocks  []Block  `json:"blocks,omitempty" yaml:"blocks,omitempty" cbor:"5,keyasint,omitempty"`
	Frames  []Frame  `json:"frames,omitempty" yaml:"frames,omitempty" cbor:"6,keyasint,omitempty"`
}

// Block is a straight-line region of a method body.
// Stores maps a local slot to the type the block writes into it.
type Block struct {
	ID     int            `json:"id" yaml:"id" cbor:"1,keyasint"`
	Stores map[int]string `json:"stores,omitempty" yaml:"stores,omitempty" cbor:"2,keyasint,omitempty"`
	Succ   []int          `json:"succ,omitempty" yaml:"succ,omitempty" cbor:"3,keyasint,omitempty"`
}

// Frame records the local slot types on entry to a block.
type Frame struct {
	Block  int      `json:"block" yaml:"block" cbor:"1,keyasint"`
	Locals []string `json:"locals,omitempty" yaml:"locals,omitempty" cbor:"2,keyasint,omitempty"`
}

// IsInterface reports whether the unit declares an interface type.
func (u *Unit) IsInterface() bool {
	return u.Flags.Has(FlagInterface)
}

// SuperName returns the declared super type, defaulting to Root for every
// type except Root itself.
func (u *Unit) SuperName() string {
	if u.Super != "" {
		return InternalName(u.Super)
	}
	if InternalName(u.Name) == Root {
		return ""
	}
	return Root
}

// Method returns the first method with the given name.
func (u *Unit) Method(name string) (*Method, bool) {
	for i := range u.Methods {
		if u.Methods[i].Name == name {
			return &u.Methods[i], true
		}
	}
	return nil, false
}

// SetAttribute sets a unit attribute, allocating the map on first use.
func (u *Unit) SetAttribute(key, value string) {
	if u.Attributes == nil {
		u.Attributes = make(map[string]string)
	}
	u.Attributes[key] = value
}

// References returns every non-primitive type name the unit mentions,
// deduplicated, in first-seen order. The unit's own name is excluded.
func (u *Unit) References() []string {
	self := InternalName(u.Name)
	seen := map[string]bool{self: true, Top: true}
	var refs []string
	add := func(t string) {
		if IsPrimitive(t) {
			return
		}
		t = InternalName(t)
		if seen[t] {
			return
		}
		seen[t] = true
		refs = append(refs, t)
	}

	add(u.SuperName())
	for _, i := range u.Interfaces {
		add(i)
	}
	for _, f := range u.Fields {
		add(f.Type)
	}
	for _, m := range u.Methods {
		for _, p := range m.Params {
			add(p)
		}
		add(m.Returns)
		for _, b := range m.Blocks {
			for _, slot := range slices.Sorted(maps.Keys(b.Stores)) {
				add(b.Stores[slot])
			}
		}
	}
	return refs
}

// Clone returns a deep copy of the unit.
func (u *Unit) Clone() *Unit {
	c := *u
	c.Interfaces = append([]string(nil), u.Interfaces...)
	c.Fields = append([]Field(nil), u.Fields...)
	c.Attributes = maps.Clone(u.Attributes)
	if u.Methods != nil {
		c.Methods = make([]Method, len(u.Methods))
		for i, m := range u.Methods {
			c.Methods[i] = m.clone()
		}
	}
	return &c
}

func (m Method) clone() Method {
	c := m
	c.Params = append([]string(nil), m.Params...)
	if m.Blocks != nil {
		c.Blocks = make([]Block, len(m.Blocks))
		for i, b := range m.Blocks {
			c.Blocks[i] = Block{ID: b.ID, Stores: maps.Clone(b.Stores), Succ: append([]int(nil), b.Succ...)}
		}
	}
	if m.Frames != nil {
		c.Frames = make([]Frame, len(m.Frames))
		for i, f := range m.Frames {
			c.Frames[i] = Frame{Block: f.Block, Locals: append([]string(nil), f.Locals...)}
		}
	}
	return c
}
