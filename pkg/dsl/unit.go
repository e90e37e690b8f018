package dsl

import "github.com/aretw0/kiln/pkg/unit"

// UnitBuilder configures one unit.
type UnitBuilder struct {
	unit    *unit.Unit
	builder *Builder
}

// Extends sets the super type.
func (u *UnitBuilder) Extends(super string) *UnitBuilder {
	u.unit.Super = unit.InternalName(super)
	return u
}

// Implements adds interfaces.
func (u *UnitBuilder) Implements(ifaces ...string) *UnitBuilder {
	for _, i := range ifaces {
		u.unit.Interfaces = append(u.unit.Interfaces, unit.InternalName(i))
	}
	return u
}

// Interface marks the unit as an interface.
func (u *UnitBuilder) Interface() *UnitBuilder {
	u.unit.Flags |= unit.FlagInterface | unit.FlagAbstract
	return u
}

// Flags adds access flags.
func (u *UnitBuilder) Flags(f unit.Flags) *UnitBuilder {
	u.unit.Flags |= f
	return u
}

// Field adds a field of type typ.
func (u *UnitBuilder) Field(name, typ string) *UnitBuilder {
	u.unit.Fields = append(u.unit.Fields, unit.Field{Name: name, Type: typeName(typ)})
	return u
}

// Attr sets a free-form attribute.
func (u *UnitBuilder) Attr(key, value string) *UnitBuilder {
	if u.unit.Attributes == nil {
		u.unit.Attributes = make(map[string]string)
	}
	u.unit.Attributes[key] = value
	return u
}

// Method starts a method. Further calls on the returned builder describe
// its signature and blocks.
func (u *UnitBuilder) Method(name string, flags unit.Flags) *MethodBuilder {
	u.unit.Methods = append(u.unit.Methods, unit.Method{Name: name, Flags: flags})
	return &MethodBuilder{owner: u, index: len(u.unit.Methods) - 1}
}

// Add starts another unit on the same program.
func (u *UnitBuilder) Add(name string) *UnitBuilder {
	return u.builder.Add(name)
}

// Build returns a copy of the unit.
func (u *UnitBuilder) Build() (*unit.Unit, error) {
	if u.unit.Name == "" {
		return nil, ErrEmptyName
	}
	for _, m := range u.unit.Methods {
		if err := checkBlocks(u.unit.Name, m); err != nil {
			return nil, err
		}
	}
	return u.unit.Clone(), nil
}

// MethodBuilder configures one method.
type MethodBuilder struct {
	owner *UnitBuilder
	index int
	block int
}

func (m *MethodBuilder) method() *unit.Method {
	return &m.owner.unit.Methods[m.index]
}

// Params sets the parameter types.
func (m *MethodBuilder) Params(types ...string) *MethodBuilder {
	for _, t := range types {
		m.method().Params = append(m.method().Params, typeName(t))
	}
	return m
}

// Returns sets the return type.
func (m *MethodBuilder) Returns(typ string) *MethodBuilder {
	m.method().Returns = typeName(typ)
	return m
}

// Block appends a basic block and makes it current.
func (m *MethodBuilder) Block(id int) *MethodBuilder {
	mt := m.method()
	mt.Blocks = append(mt.Blocks, unit.Block{ID: id})
	m.block = len(mt.Blocks) - 1
	return m
}

// Store records that the current block writes typ into slot.
func (m *MethodBuilder) Store(slot int, typ string) *MethodBuilder {
	b := m.current()
	if b.Stores == nil {
		b.Stores = make(map[int]string)
	}
	b.Stores[slot] = typeName(typ)
	return m
}

// Goto adds successors to the current block.
func (m *MethodBuilder) Goto(ids ...int) *MethodBuilder {
	b := m.current()
	b.Succ = append(b.Succ, ids...)
	return m
}

// Method starts another method on the same unit.
func (m *MethodBuilder) Method(name string, flags unit.Flags) *MethodBuilder {
	return m.owner.Method(name, flags)
}

// Add starts another unit on the same program.
func (m *MethodBuilder) Add(name string) *UnitBuilder {
	return m.owner.builder.Add(name)
}

func (m *MethodBuilder) current() *unit.Block {
	mt := m.method()
	if len(mt.Blocks) == 0 {
		mt.Blocks = append(mt.Blocks, unit.Block{ID: 0})
	}
	return &mt.Blocks[m.block]
}

func typeName(t string) string {
	if unit.IsPrimitive(t) {
		return t
	}
	return unit.InternalName(t)
}
