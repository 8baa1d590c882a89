// Package scanner turns raw discovered entries into component descriptors.
//
// Discovery itself is explicit: types are registered in a Table (or any other
// Locator) together with the role tags they carry. The scanner keeps the
// entries tagged with a recognized component tag, picks each one's
// initializer, and binds hook, producer and startup methods by name so the
// rest of the container never touches reflection metadata beyond plain calls.
//
// Member injection is declared with struct tags on exported fields of the
// constructed struct:
//
//	type Handler struct {
//	    Store Store        `inject:""`
//	    Cache Cache        `inject:"redis,optional"`
//	}
package scanner

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/descriptor"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
)

// InjectTag is the struct tag key read for member injection.
const InjectTag = "inject"

// Scanner classifies entries by role tag.
type Scanner struct {
	componentTags []string
	productTags   []string
	aliases       map[string]string
	log           *zap.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithComponentTags replaces the recognized component tags.
func WithComponentTags(tags ...string) ScannerOption {
	return func(s *Scanner) { s.componentTags = tags }
}

// WithProductTags replaces the recognized factory product tags.
func WithProductTags(tags ...string) ScannerOption {
	return func(s *Scanner) { s.productTags = tags }
}

// WithAlias makes alias count as canonical.
func WithAlias(alias, canonical string) ScannerOption {
	return func(s *Scanner) { s.aliases[alias] = canonical }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Scanner recognizing DefaultComponentTag and DefaultProductTag
// unless told otherwise.
func New(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		componentTags: []string{DefaultComponentTag},
		productTags:   []string{DefaultProductTag},
		aliases:       make(map[string]string),
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan builds descriptors for the component entries and for the pre-supplied
// instances. Entries without a recognized component tag are skipped.
func (s *Scanner) Scan(entries []Entry) (components, provided []*descriptor.Descriptor, err error) {
	for _, e := range entries {
		if e.err != nil {
			return nil, nil, ierrors.InvalidDescriptor(entryName(e), e.err.Error())
		}
		if e.Provided {
			d, err := s.instance(e)
			if err != nil {
				return nil, nil, err
			}
			provided = append(provided, d)
			continue
		}
		roles, ok := s.roles(e.Tags, s.componentTags)
		if !ok {
			s.log.Debug("entry skipped, no component tag",
				zap.String("component", entryName(e)),
				zap.Strings("tags", e.Tags))
			continue
		}
		d, err := s.component(e, roles)
		if err != nil {
			return nil, nil, err
		}
		components = append(components, d)
	}
	s.log.Debug("scan complete",
		zap.Int("components", len(components)),
		zap.Int("provided", len(provided)))
	return components, provided, nil
}

// roles expands aliases into [canonical, alias] pairs and reports whether any
// tag is in recognized.
func (s *Scanner) roles(tags, recognized []string) ([]string, bool) {
	var out []string
	found := false
	add := func(t string) {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	for _, t := range tags {
		if canonical, ok := s.aliases[t]; ok {
			add(canonical)
			add(t)
			found = found || slices.Contains(recognized, canonical)
			continue
		}
		add(t)
		found = found || slices.Contains(recognized, t)
	}
	return out, found
}

func (s *Scanner) instance(e Entry) (*descriptor.Descriptor, error) {
	if e.Instance == nil {
		return nil, ierrors.InvalidDescriptor(entryName(e), "nil instance")
	}
	concrete := reflect.TypeOf(e.Instance)
	if e.Type != nil && !concrete.AssignableTo(e.Type) {
		return nil, ierrors.InvalidDescriptor(entryName(e), concrete.String()+" is not assignable to "+e.Type.String())
	}
	roles, _ := s.roles(e.Tags, s.componentTags)
	d := descriptor.NewProvided(e.Instance, e.Type, e.Qualifier, roles...)
	if e.PreDestroy != "" {
		h, err := hookMethod(concrete, e.PreDestroy)
		if err != nil {
			return nil, ierrors.InvalidDescriptor(d.String(), err.Error())
		}
		d.PreDestroy = h
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Scanner) component(e Entry, roles []string) (*descriptor.Descriptor, error) {
	name := entryName(e)
	fn := selectInitializer(e.Initializers)
	if fn == nil {
		return nil, ierrors.InvalidDescriptor(name, "no initializer")
	}
	ctor, err := descriptor.NewInitializer(fn, e.Params...)
	if err != nil {
		return nil, ierrors.InvalidDescriptor(name, err.Error())
	}
	concrete := ctor.Type()
	declared := concrete
	if e.Type != nil {
		if !concrete.AssignableTo(e.Type) {
			return nil, ierrors.InvalidDescriptor(name, concrete.String()+" is not assignable to "+e.Type.String())
		}
		declared = e.Type
	}

	d := &descriptor.Descriptor{
		Type:        declared,
		Initializer: ctor,
		Qualifier:   e.Qualifier,
		Scope:       e.Scope,
		Tags:        roles,
		Proxy:       e.Proxy,
	}
	fail := func(err error) (*descriptor.Descriptor, error) {
		return nil, ierrors.InvalidDescriptor(d.String(), err.Error())
	}

	if e.PostInit != "" {
		if d.PostInit, err = hookMethod(concrete, e.PostInit); err != nil {
			return fail(err)
		}
	}
	if e.PreDestroy != "" {
		if d.PreDestroy, err = hookMethod(concrete, e.PreDestroy); err != nil {
			return fail(err)
		}
	}
	if d.Members, err = members(concrete); err != nil {
		return fail(err)
	}
	for _, p := range e.Products {
		tags, ok := s.roles(p.Tags, s.productTags)
		if !ok {
			s.log.Debug("factory method skipped, no product tag",
				zap.String("component", d.String()),
				zap.String("method", p.Method))
			continue
		}
		product, err := productMethod(concrete, p, tags)
		if err != nil {
			return fail(err)
		}
		d.Factories = append(d.Factories, product)
	}
	for _, m := range e.Startup {
		sm, err := startupMethod(concrete, m)
		if err != nil {
			return fail(err)
		}
		d.Startup = append(d.Startup, sm)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.SetState(descriptor.StateDiscovered)
	return d, nil
}

// selectInitializer returns the first preferred initializer, else the first.
func selectInitializer(inits []Initializer) any {
	for _, i := range inits {
		if i.Preferred {
			return i.Fn
		}
	}
	if len(inits) == 0 {
		return nil
	}
	return inits[0].Fn
}

// members builds setters for `inject`-tagged fields of a struct pointer type.
func members(t reflect.Type) ([]descriptor.Member, error) {
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, nil
	}
	st := t.Elem()
	var out []descriptor.Member
	for _, f := range reflect.VisibleFields(st) {
		tag, ok := f.Tag.Lookup(InjectTag)
		if !ok {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("field %s is tagged for injection but not exported", f.Name)
		}
		qualifier, opt, _ := strings.Cut(tag, ",")
		index := f.Index
		ft := f.Type
		out = append(out, descriptor.Member{
			Name:      f.Name,
			Type:      ft,
			Qualifier: strings.TrimSpace(qualifier),
			Optional:  strings.TrimSpace(opt) == "optional",
			Set: func(instance, value any) error {
				v := reflect.ValueOf(instance)
				if v.Kind() != reflect.Pointer || v.IsNil() {
					return fmt.Errorf("cannot inject %s into %T", ft, instance)
				}
				val := reflect.ValueOf(value)
				if !val.Type().AssignableTo(ft) {
					return fmt.Errorf("cannot assign %s to field of type %s", val.Type(), ft)
				}
				v.Elem().FieldByIndex(index).Set(val)
				return nil
			},
		})
	}
	return out, nil
}

func errProductOption(method string) error {
	return fmt.Errorf("factory method %s only accepts product markers", method)
}

func entryName(e Entry) string {
	switch {
	case e.Type != nil:
		return descriptor.TypeName(e.Type)
	case e.Provided && e.Instance != nil:
		return descriptor.TypeName(reflect.TypeOf(e.Instance))
	case len(e.Initializers) > 0:
		return fmt.Sprintf("%T", e.Initializers[0].Fn)
	}
	return "<unknown>"
}
