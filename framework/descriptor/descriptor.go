// Package descriptor holds the static metadata the container works with.
//
// A Descriptor describes one component: its declared type, the initializer
// used to build it, its qualifier, scope, role tags, lifecycle hooks, member
// injections and factory products. Descriptors are plain data with validity
// predicates; the resolver, the instantiation service and the registry are
// the only code that moves them through their lifecycle:
//
//	Discovered → Pending → Resolved → Instantiated → Registered
//	Registered → Destroyed → Instantiated   (reload)
//	Pending    → GraphError                 (iteration bound reached)
package descriptor

import (
	"fmt"
	"reflect"
	"slices"

	ierrors "github.com/km-arc/go-ioc/framework/errors"
)

// ── Scope & State ─────────────────────────────────────────────────────────────

// Scope controls what consumers receive.
type Scope int

const (
	// Singleton consumers receive the raw instance.
	Singleton Scope = iota
	// Proxy consumers receive a forwarding stand-in that always delegates to
	// the current instance, so a reload never leaves them holding a stale one.
	Proxy
)

func (s Scope) String() string {
	if s == Proxy {
		return "proxy"
	}
	return "singleton"
}

// State is a component's position in its lifecycle.
type State int

const (
	StateDiscovered State = iota
	StatePending
	StateResolved
	StateInstantiated
	StateRegistered
	StateDestroyed
	StateGraphError
)

var stateNames = [...]string{"discovered", "pending", "resolved", "instantiated", "registered", "destroyed", "graph-error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ── Callables ─────────────────────────────────────────────────────────────────

// Hook is a zero-argument lifecycle callable bound to an instance.
type Hook func(instance any) error

// ProxyFactory builds the forwarding stand-in for a PROXY component. The
// returned value must implement the component's declared interface and call
// current() on every method to reach the live instance.
type ProxyFactory func(current func() any) any

// Member is a member-site dependency (field injection). Set is built by the
// scanner; the core only calls it.
type Member struct {
	Name      string
	Type      reflect.Type
	Qualifier string
	Optional  bool
	Set       func(instance, value any) error
}

// Product describes a zero-argument factory method whose result becomes a
// component of its own.
type Product struct {
	Name       string
	Type       reflect.Type
	Qualifier  string
	Scope      Scope
	Tags       []string
	Proxy      ProxyFactory
	PostInit   Hook
	PreDestroy Hook
	Produce    func(parent any) (any, error)
}

// StartupMethod is a method run once the container is booted. Its parameters
// are resolved from the registry the same way constructor parameters are.
type StartupMethod struct {
	Name   string
	Params []Param
	Invoke func(instance any, args []any) error
}

// ── Descriptor ────────────────────────────────────────────────────────────────

// Descriptor is the static record describing one component.
type Descriptor struct {
	Type        reflect.Type
	Initializer *Initializer
	Qualifier   string
	Scope       Scope
	Tags        []string
	PostInit    Hook
	PreDestroy  Hook
	Proxy       ProxyFactory
	Members     []Member
	Factories   []Product
	Startup     []StartupMethod

	// Parent and Producer are set on factory products only.
	Parent   *Descriptor
	Producer *Product
	// Provided marks externally constructed instances.
	Provided bool

	instance   any
	proxy      any
	state      State
	dependents []*Descriptor
	products   []*Descriptor
	derived    bool
	ctor       []*Requirement
	members    []*Requirement
}

// NewProvided wraps an externally constructed instance as an already
// registered component. as overrides the declared type when non-nil.
func NewProvided(instance any, as reflect.Type, qualifier string, tags ...string) *Descriptor {
	t := as
	if t == nil {
		t = reflect.TypeOf(instance)
	}
	return &Descriptor{
		Type:      t,
		Qualifier: qualifier,
		Tags:      tags,
		Provided:  true,
		instance:  instance,
		state:     StateRegistered,
	}
}

func (d *Descriptor) String() string {
	name := TypeName(d.Type)
	if d.Qualifier != "" {
		return fmt.Sprintf("%s(%q)", name, d.Qualifier)
	}
	return name
}

// Validate checks the invariants a descriptor must hold before it enters the
// resolver.
func (d *Descriptor) Validate() error {
	if d.Type == nil {
		return ierrors.InvalidDescriptor("<nil>", "declared type is missing")
	}
	if !d.Provided && d.Parent == nil && d.Initializer == nil {
		return ierrors.InvalidDescriptor(d.String(), "no initializer")
	}
	if d.Scope == Proxy {
		if d.Proxy == nil {
			return ierrors.InvalidDescriptor(d.String(), "proxy scope requires a proxy factory")
		}
		if d.Type.Kind() != reflect.Interface {
			return ierrors.InvalidDescriptor(d.String(), "proxy scope requires an interface type")
		}
	}
	for _, m := range d.Members {
		if m.Set == nil || m.Type == nil {
			return ierrors.InvalidDescriptor(d.String(), "member "+m.Name+" has no setter")
		}
	}
	for _, p := range d.Factories {
		if p.Produce == nil || p.Type == nil {
			return ierrors.InvalidDescriptor(d.String(), "factory product "+p.Name+" is incomplete")
		}
		if p.Scope == Proxy && (p.Proxy == nil || p.Type.Kind() != reflect.Interface) {
			return ierrors.InvalidDescriptor(d.String(), "factory product "+p.Name+" cannot be proxied")
		}
	}
	return nil
}

// Satisfies reports whether this component can be injected where target is
// expected, honouring an optional qualifier.
func (d *Descriptor) Satisfies(target reflect.Type, qualifier string) bool {
	if d.Type == nil || target == nil || !d.Type.AssignableTo(target) {
		return false
	}
	return qualifier == "" || d.Qualifier == qualifier
}

// HasTag reports whether the component carries the given role tag.
func (d *Descriptor) HasTag(tag string) bool { return slices.Contains(d.Tags, tag) }

// IsProduct reports whether the component was produced by a factory method.
func (d *Descriptor) IsProduct() bool { return d.Parent != nil }

// ── Instances ─────────────────────────────────────────────────────────────────

// Instance returns the live instance, nil before instantiation and after
// destruction.
func (d *Descriptor) Instance() any { return d.instance }

// SetInstance replaces the live instance.
func (d *Descriptor) SetInstance(v any) { d.instance = v }

// ProxyInstance returns the forwarding stand-in, if any.
func (d *Descriptor) ProxyInstance() any { return d.proxy }

// HasProxy reports whether a stand-in has been installed.
func (d *Descriptor) HasProxy() bool { return d.proxy != nil }

// SetProxy installs the stand-in. It can be set once, and only on PROXY
// components.
func (d *Descriptor) SetProxy(p any) error {
	if d.proxy != nil {
		return ierrors.ProxyAlreadySet(d.String())
	}
	if d.Scope != Proxy {
		return ierrors.InvalidDescriptor(d.String(), "proxy installed on a singleton component")
	}
	d.proxy = p
	return nil
}

// Value is what consumers receive: the proxy when one exists, the instance
// otherwise.
func (d *Descriptor) Value() any {
	if d.proxy != nil {
		return d.proxy
	}
	return d.instance
}

// Owns reports whether v is this component's instance or proxy.
func (d *Descriptor) Owns(v any) bool {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return false
	}
	return sameValue(d.instance, v) || sameValue(d.proxy, v)
}

func sameValue(a, b any) bool {
	if a == nil || reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a == b
}

// State returns the lifecycle state.
func (d *Descriptor) State() State { return d.state }

// SetState moves the component to s.
func (d *Descriptor) SetState(s State) { d.state = s }

// ── Graph bookkeeping ─────────────────────────────────────────────────────────

// Dependents returns components that consumed this one. The references are
// used for cascade reloads only.
func (d *Descriptor) Dependents() []*Descriptor { return slices.Clone(d.dependents) }

// AddDependent records consumer once.
func (d *Descriptor) AddDependent(consumer *Descriptor) {
	if consumer == nil || consumer == d || slices.Contains(d.dependents, consumer) {
		return
	}
	d.dependents = append(d.dependents, consumer)
}

// Products derives one descriptor per factory product. They are built on
// first call and parented to d.
func (d *Descriptor) Products() []*Descriptor {
	if d.derived {
		return d.products
	}
	d.derived = true
	for i := range d.Factories {
		p := &d.Factories[i]
		d.products = append(d.products, &Descriptor{
			Type:       p.Type,
			Qualifier:  p.Qualifier,
			Scope:      p.Scope,
			Tags:       p.Tags,
			PostInit:   p.PostInit,
			PreDestroy: p.PreDestroy,
			Proxy:      p.Proxy,
			Parent:     d,
			Producer:   p,
		})
	}
	return d.products
}

// Record keeps the requirement lists a component was resolved with so it can
// be rebuilt later without a new resolution pass.
func (d *Descriptor) Record(ctor, members []*Requirement) {
	d.ctor = ctor
	d.members = members
}

// Requirements returns the recorded constructor and member requirements.
func (d *Descriptor) Requirements() (ctor, members []*Requirement) {
	return d.ctor, d.members
}
