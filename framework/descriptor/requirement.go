package descriptor

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Resolver is a last-resort provider for requirements no registered
// component can satisfy. Requirements it supplies are not required: a nil
// value injects the zero value.
type Resolver interface {
	CanResolve(r *Requirement) bool
	Resolve(r *Requirement) (any, error)
}

// Requirement is a single dependency of a component.
//
// A non-collection requirement resolves to exactly one provider, the first
// registered match. A collection requirement accumulates every match; it
// counts as satisfied once all providers known when it was enqueued are
// attached, and keeps growing afterwards. A plain slice requirement also
// takes one provider of the slice type itself, such as a pre-supplied
// []string, which then wins over the element matches.
type Requirement struct {
	Name       string
	Target     reflect.Type
	Elem       reflect.Type
	Qualifier  string
	Collection bool
	Live       bool
	Required   bool
	// Expected is the number of known compatible providers, set by the
	// resolver when the requirement is enqueued.
	Expected int
	// ExpectedWhole counts known providers of the whole slice type.
	ExpectedWhole int

	matches  []*Descriptor
	whole    *Descriptor
	value    any
	supplied bool
	live     liveCollection
}

// NewRequirement builds a requirement for a value of type t. Slices of T and
// *Collection[T] become collection requirements matched on T.
func NewRequirement(name string, t reflect.Type, qualifier string) *Requirement {
	r := &Requirement{Name: name, Target: t, Elem: t, Qualifier: qualifier, Required: true}
	switch {
	case isLiveCollection(t):
		r.Collection, r.Live = true, true
		r.Elem = newLiveCollection(t).elem()
	case t.Kind() == reflect.Slice:
		r.Collection = true
		r.Elem = t.Elem()
	}
	return r
}

func (r *Requirement) String() string {
	var b strings.Builder
	b.WriteString(TypeName(r.Target))
	if r.Qualifier != "" {
		fmt.Fprintf(&b, "(%q)", r.Qualifier)
	}
	if r.Name != "" {
		b.WriteString(" ")
		b.WriteString(r.Name)
	}
	return b.String()
}

// Accepts reports whether d structurally matches: assignable type and equal
// qualifier when one was requested.
func (r *Requirement) Accepts(d *Descriptor) bool {
	return d.Satisfies(r.Elem, r.Qualifier)
}

// AcceptsWhole reports whether d provides the entire value of a plain slice
// requirement.
func (r *Requirement) AcceptsWhole(d *Descriptor) bool {
	return r.Collection && !r.Live && d.Satisfies(r.Target, r.Qualifier)
}

// Attach adds d as a provider. A non-collection requirement keeps its first
// match and ignores later ones; so does the whole-slice slot. Returns true
// when d was attached.
func (r *Requirement) Attach(d *Descriptor) bool {
	if r.AcceptsWhole(d) {
		if r.whole != nil {
			return false
		}
		r.whole = d
		return true
	}
	if !r.Accepts(d) || slices.Contains(r.matches, d) {
		return false
	}
	if !r.Collection && len(r.matches) > 0 {
		return false
	}
	r.matches = append(r.matches, d)
	if r.live != nil {
		r.live.add(d.Value())
	}
	return true
}

// Matches returns the attached providers in attachment order.
func (r *Requirement) Matches() []*Descriptor { return slices.Clone(r.matches) }

// Whole returns the provider of the entire slice, if one is attached.
func (r *Requirement) Whole() (*Descriptor, bool) { return r.whole, r.whole != nil }

// Supply records a value obtained from an external resolver.
func (r *Requirement) Supply(v any) {
	r.value = v
	r.supplied = true
	r.Required = false
}

// Supplied reports whether an external resolver provided the value.
func (r *Requirement) Supplied() bool { return r.supplied }

// Satisfied reports whether the requirement no longer blocks instantiation.
func (r *Requirement) Satisfied() bool {
	if r.Collection {
		if r.ExpectedWhole > 0 {
			return r.whole != nil
		}
		return r.supplied || len(r.matches) >= r.Expected
	}
	return len(r.matches) > 0 || r.supplied || (!r.Required && r.Expected == 0)
}

// Value computes what the consumer receives from the current state of the
// attached providers.
func (r *Requirement) Value() any {
	switch {
	case r.Live:
		if r.live == nil {
			r.live = newLiveCollection(r.Target)
			for _, m := range r.matches {
				r.live.add(m.Value())
			}
		}
		return r.live
	case r.whole != nil:
		return r.whole.Value()
	case r.Collection && r.supplied:
		return r.value
	case r.Collection:
		s := reflect.MakeSlice(r.Target, 0, len(r.matches))
		for _, m := range r.matches {
			if v := m.Value(); v != nil {
				s = reflect.Append(s, reflect.ValueOf(v))
			}
		}
		return s.Interface()
	case len(r.matches) > 0:
		return r.matches[0].Value()
	default:
		return r.value
	}
}

// ── Pending registration ──────────────────────────────────────────────────────

// Pending owns one component and its constructor-site and member-site
// requirements while it waits in the resolver queue.
type Pending struct {
	Descriptor *Descriptor
	Ctor       []*Requirement
	Members    []*Requirement
}

// NewPending derives the requirement lists of d. Constructor requirements
// follow initializer parameter order.
func NewPending(d *Descriptor) *Pending {
	p := &Pending{Descriptor: d}
	if d.Initializer != nil {
		for i, param := range d.Initializer.Params() {
			p.Ctor = append(p.Ctor, NewRequirement(fmt.Sprintf("arg%d", i), param.Type, param.Qualifier))
		}
	}
	for _, m := range d.Members {
		r := NewRequirement(m.Name, m.Type, m.Qualifier)
		if m.Optional {
			r.Required = false
		}
		p.Members = append(p.Members, r)
	}
	return p
}

// Requirements returns constructor requirements followed by member ones.
func (p *Pending) Requirements() []*Requirement {
	return append(slices.Clone(p.Ctor), p.Members...)
}

// Ready reports whether every requirement is satisfied.
func (p *Pending) Ready() bool {
	for _, r := range p.Ctor {
		if !r.Satisfied() {
			return false
		}
	}
	for _, r := range p.Members {
		if !r.Satisfied() {
			return false
		}
	}
	return true
}

// Values returns the constructor and member values in declared order.
func (p *Pending) Values() (ctor, members []any) {
	return Values(p.Ctor), Values(p.Members)
}

// Values evaluates a requirement list.
func Values(reqs []*Requirement) []any {
	out := make([]any, len(reqs))
	for i, r := range reqs {
		out[i] = r.Value()
	}
	return out
}

func (p *Pending) String() string { return p.Descriptor.String() }
