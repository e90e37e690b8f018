package extension

import (
	"go/constant"
	"go/token"
	"io"
	"reflect"

	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/traefik/yaegi/interp"
)

// Symbols exposes kiln's public packages to interpreted extension modules.
// The layout follows the output of yaegi extract.
var Symbols = interp.Exports{
	"github.com/aretw0/kiln/pkg/extension/extension": {
		"Base":        reflect.ValueOf((*Base)(nil)),
		"Descriptor":  reflect.ValueOf((*Descriptor)(nil)),
		"Domain":      reflect.ValueOf((*Domain)(nil)),
		"DomainAware": reflect.ValueOf((*DomainAware)(nil)),
		"Module":      reflect.ValueOf((*Module)(nil)),

		"_Domain":      reflect.ValueOf((*_extension_Domain)(nil)),
		"_DomainAware": reflect.ValueOf((*_extension_DomainAware)(nil)),
		"_Module":      reflect.ValueOf((*_extension_Module)(nil)),
	},
	"github.com/aretw0/kiln/pkg/unit/unit": {
		"BinaryName":    reflect.ValueOf(unit.BinaryName),
		"FlagAbstract":  reflect.ValueOf(unit.FlagAbstract),
		"FlagFinal":     reflect.ValueOf(unit.FlagFinal),
		"FlagInterface": reflect.ValueOf(unit.FlagInterface),
		"FlagPrivate":   reflect.ValueOf(unit.FlagPrivate),
		"FlagPublic":    reflect.ValueOf(unit.FlagPublic),
		"FlagStatic":    reflect.ValueOf(unit.FlagStatic),
		"HasPrefix":     reflect.ValueOf(unit.HasPrefix),
		"InternalName":  reflect.ValueOf(unit.InternalName),
		"IsPrimitive":   reflect.ValueOf(unit.IsPrimitive),
		"Root":          reflect.ValueOf(constant.MakeFromLiteral("\"kiln/lang/Object\"", token.STRING, 0)),
		"Top":           reflect.ValueOf(constant.MakeFromLiteral("\"\"", token.STRING, 0)),

		"Block":  reflect.ValueOf((*unit.Block)(nil)),
		"Field":  reflect.ValueOf((*unit.Field)(nil)),
		"Flags":  reflect.ValueOf((*unit.Flags)(nil)),
		"Frame":  reflect.ValueOf((*unit.Frame)(nil)),
		"Method": reflect.ValueOf((*unit.Method)(nil)),
		"Unit":   reflect.ValueOf((*unit.Unit)(nil)),
		"View":   reflect.ValueOf((*unit.View)(nil)),

		"_View": reflect.ValueOf((*_unit_View)(nil)),
	},
	"github.com/aretw0/kiln/pkg/ports/ports": {
		"ErrTypeNotFound": reflect.ValueOf(&ports.ErrTypeNotFound).Elem(),

		"Type":     reflect.ValueOf((*ports.Type)(nil)),
		"TypeInfo": reflect.ValueOf((*ports.TypeInfo)(nil)),

		"_Type": reflect.ValueOf((*_ports_Type)(nil)),
	},
}

// _extension_Domain is an interface wrapper for Domain type
type _extension_Domain struct {
	IValue       interface{}
	WMaterialize func(name string) (ports.Type, error)
	WName        func() string
	WResource    func(name string) (io.ReadCloser, bool)
}

func (W _extension_Domain) Materialize(name string) (ports.Type, error) {
	return W.WMaterialize(name)
}
func (W _extension_Domain) Name() string { return W.WName() }
func (W _extension_Domain) Resource(name string) (io.ReadCloser, bool) {
	return W.WResource(name)
}

// _extension_DomainAware is an interface wrapper for DomainAware type
type _extension_DomainAware struct {
	IValue     interface{}
	WSetDomain func(d Domain)
}

func (W _extension_DomainAware) SetDomain(d Domain) { W.WSetDomain(d) }

// _extension_Module is an interface wrapper for Module type
type _extension_Module struct {
	IValue                interface{}
	WLateStartup          func()
	WOnClassloadTransform func(u *unit.Unit)
	WOnReadTransform      func(units unit.View)
}

func (W _extension_Module) LateStartup()                      { W.WLateStartup() }
func (W _extension_Module) OnClassloadTransform(u *unit.Unit) { W.WOnClassloadTransform(u) }
func (W _extension_Module) OnReadTransform(units unit.View)   { W.WOnReadTransform(units) }

// _unit_View is an interface wrapper for View type
type _unit_View struct {
	IValue interface{}
	WEach  func(fn func(u *unit.Unit) bool)
	WGet   func(name string) (*unit.Unit, bool)
	WLen   func() int
}

func (W _unit_View) Each(fn func(u *unit.Unit) bool)    { W.WEach(fn) }
func (W _unit_View) Get(name string) (*unit.Unit, bool) { return W.WGet(name) }
func (W _unit_View) Len() int                           { return W.WLen() }

// _ports_Type is an interface wrapper for Type type
type _ports_Type struct {
	IValue  interface{}
	WDomain func() string
	WName   func() string
	WSuper  func() string
}

func (W _ports_Type) Domain() string { return W.WDomain() }
func (W _ports_Type) Name() string   { return W.WName() }
func (W _ports_Type) Super() string  { return W.WSuper() }
