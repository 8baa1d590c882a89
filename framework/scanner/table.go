package scanner

import (
	"context"
	"reflect"
	"slices"

	"github.com/km-arc/go-ioc/framework/descriptor"
)

// Default role tags stamped on table registrations that name none.
const (
	DefaultComponentTag = "service"
	DefaultProductTag   = "bean"
)

// ── Entries ───────────────────────────────────────────────────────────────────

// Initializer is one candidate constructor of an entry.
type Initializer struct {
	Fn        any
	Preferred bool
}

// Product is a factory method registered on an entry.
type Product struct {
	Method     string
	Type       reflect.Type
	Qualifier  string
	Scope      descriptor.Scope
	Proxy      descriptor.ProxyFactory
	Tags       []string
	PostInit   string
	PreDestroy string
}

// Entry is one raw discovered type with the markers it carries. Hooks,
// producers and startup methods are referenced by method name and bound by
// the scanner.
type Entry struct {
	// Type overrides the declared type; by default it is the initializer's
	// return type, or the instance's dynamic type.
	Type         reflect.Type
	Tags         []string
	Qualifier    string
	Scope        descriptor.Scope
	Proxy        descriptor.ProxyFactory
	Initializers []Initializer
	Params       []string
	PostInit     string
	PreDestroy   string
	Products     []Product
	Startup      []string

	// Instance is set on pre-supplied entries.
	Instance any
	Provided bool

	err error
}

func (e Entry) clone() Entry {
	e.Tags = slices.Clone(e.Tags)
	e.Initializers = slices.Clone(e.Initializers)
	e.Params = slices.Clone(e.Params)
	e.Products = slices.Clone(e.Products)
	e.Startup = slices.Clone(e.Startup)
	return e
}

// ── Options ───────────────────────────────────────────────────────────────────

// Option marks an entry. Produces, Params, Autowired, Constructor and
// OnStartup only apply to components; the rest also mark factory products.
type Option func(*Entry)

// Tag adds role tags.
func Tag(tags ...string) Option {
	return func(e *Entry) { e.Tags = append(e.Tags, tags...) }
}

// Named sets the qualifier.
func Named(qualifier string) Option {
	return func(e *Entry) { e.Qualifier = qualifier }
}

// As overrides the declared type, typically to publish a constructor's
// concrete result under an interface.
func As[T any]() Option {
	return func(e *Entry) { e.Type = reflect.TypeFor[T]() }
}

// Params binds qualifiers to the initializer's parameters by position. An
// empty string means any provider of the parameter type.
func Params(qualifiers ...string) Option {
	return func(e *Entry) { e.Params = qualifiers }
}

// Constructor adds an alternate initializer.
func Constructor(fn any) Option {
	return func(e *Entry) { e.Initializers = append(e.Initializers, Initializer{Fn: fn}) }
}

// Autowired adds an alternate initializer that wins over unmarked ones.
func Autowired(fn any) Option {
	return func(e *Entry) { e.Initializers = append(e.Initializers, Initializer{Fn: fn, Preferred: true}) }
}

// PostInit names the method run after construction.
func PostInit(method string) Option {
	return func(e *Entry) { e.PostInit = method }
}

// PreDestroy names the method run before destruction.
func PreDestroy(method string) Option {
	return func(e *Entry) { e.PreDestroy = method }
}

// Proxied puts the entry in proxy scope with the given stand-in factory.
func Proxied(factory descriptor.ProxyFactory) Option {
	return func(e *Entry) {
		e.Scope = descriptor.Proxy
		e.Proxy = factory
	}
}

// ProxyVia is the typed form of Proxied: it publishes the entry as T and
// builds the stand-in with wrap.
//
//	scanner.ProxyVia(func(cur func() Clock) Clock { return clockProxy{cur} })
func ProxyVia[T any](wrap func(current func() T) T) Option {
	return func(e *Entry) {
		e.Type = reflect.TypeFor[T]()
		e.Scope = descriptor.Proxy
		e.Proxy = func(current func() any) any {
			return wrap(func() T {
				v, _ := current().(T)
				return v
			})
		}
	}
}

// Produces registers a zero-argument factory method whose result becomes a
// component of its own. Products without a tag get DefaultProductTag.
func Produces(method string, opts ...Option) Option {
	return func(e *Entry) {
		var pe Entry
		for _, opt := range opts {
			opt(&pe)
		}
		if len(pe.Initializers) > 0 || len(pe.Params) > 0 || len(pe.Products) > 0 || len(pe.Startup) > 0 {
			e.err = errProductOption(method)
		}
		tags := pe.Tags
		if len(tags) == 0 {
			tags = []string{DefaultProductTag}
		}
		e.Products = append(e.Products, Product{
			Method:     method,
			Type:       pe.Type,
			Qualifier:  pe.Qualifier,
			Scope:      pe.Scope,
			Proxy:      pe.Proxy,
			Tags:       tags,
			PostInit:   pe.PostInit,
			PreDestroy: pe.PreDestroy,
		})
	}
}

// OnStartup marks a method to run once the container is booted.
func OnStartup(method string) Option {
	return func(e *Entry) { e.Startup = append(e.Startup, method) }
}

// ── Table ─────────────────────────────────────────────────────────────────────

// Table is the explicit registration table: every call maps one type to the
// markers it carries. It implements Locator.
//
//	t := scanner.NewTable()
//	t.Component(NewUserRepository, scanner.As[UserRepository]())
//	t.Component(NewMailer, scanner.PostInit("Dial"), scanner.PreDestroy("Close"))
//	t.Instance(cfg)
type Table struct {
	entries []Entry
}

// NewTable creates an empty table.
func NewTable() *Table { return &Table{} }

// Component registers a type built by ctor. Entries without a tag get
// DefaultComponentTag.
func (t *Table) Component(ctor any, opts ...Option) *Table {
	e := Entry{Initializers: []Initializer{{Fn: ctor}}}
	for _, opt := range opts {
		opt(&e)
	}
	if len(e.Tags) == 0 {
		e.Tags = []string{DefaultComponentTag}
	}
	t.entries = append(t.entries, e)
	return t
}

// Instance registers an externally constructed value.
func (t *Table) Instance(v any, opts ...Option) *Table {
	e := Entry{Instance: v, Provided: true}
	for _, opt := range opts {
		opt(&e)
	}
	t.entries = append(t.entries, e)
	return t
}

// Entries returns a copy of the registrations in insertion order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of registrations.
func (t *Table) Len() int { return len(t.entries) }

// Locate implements Locator.
func (t *Table) Locate(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Entries(), nil
}
