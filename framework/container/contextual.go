package container

import (
	"reflect"

	"github.com/km-arc/go-ioc/framework/descriptor"
)

// Supplier is a last-resort resolver fed with explicit values. It answers
// requirements no registered component can satisfy, such as plain settings
// injected by qualifier.
//
//	s := container.NewSupplier()
//	s.Needs(reflect.TypeFor[string](), "storagePath").GiveValue("/tmp/photos")
//	container.Needs[*sql.DB](s, "").Give(openDB)
type Supplier struct {
	entries []supply
}

type supply struct {
	t         reflect.Type
	qualifier string
	factory   func() (any, error)
}

// NewSupplier creates an empty Supplier.
func NewSupplier() *Supplier { return &Supplier{} }

// SupplyBuilder implements the fluent Needs(...).Give(...) chain.
type SupplyBuilder struct {
	supplier  *Supplier
	t         reflect.Type
	qualifier string
}

// Needs starts a supply rule for values of type t. An empty qualifier
// matches requirements that ask for none.
func (s *Supplier) Needs(t reflect.Type, qualifier string) *SupplyBuilder {
	return &SupplyBuilder{supplier: s, t: t, qualifier: qualifier}
}

// Needs is the typed form of Supplier.Needs.
func Needs[T any](s *Supplier, qualifier string) *SupplyBuilder {
	return s.Needs(reflect.TypeFor[T](), qualifier)
}

// Give provides the factory called when the rule matches.
func (b *SupplyBuilder) Give(factory func() (any, error)) *Supplier {
	b.supplier.entries = append(b.supplier.entries, supply{t: b.t, qualifier: b.qualifier, factory: factory})
	return b.supplier
}

// GiveValue is a shorthand for Give when the value is already built.
func (b *SupplyBuilder) GiveValue(value any) *Supplier {
	return b.Give(func() (any, error) { return value, nil })
}

// CanResolve implements descriptor.Resolver.
func (s *Supplier) CanResolve(r *descriptor.Requirement) bool {
	_, ok := s.match(r)
	return ok
}

// Resolve implements descriptor.Resolver.
func (s *Supplier) Resolve(r *descriptor.Requirement) (any, error) {
	e, ok := s.match(r)
	if !ok {
		return nil, nil
	}
	return e.factory()
}

func (s *Supplier) match(r *descriptor.Requirement) (supply, bool) {
	for _, e := range s.entries {
		if e.qualifier == r.Qualifier && e.t.AssignableTo(r.Target) {
			return e, true
		}
	}
	return supply{}, false
}
