// Package instantiation turns resolved descriptors into live objects.
//
// It calls initializers and factory methods, assigns member injections, runs
// lifecycle hooks and installs proxy stand-ins. It never looks anything up:
// the resolver and the registry hand it the values to use.
package instantiation

import (
	"errors"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/descriptor"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
	"github.com/km-arc/go-ioc/framework/metrics"
)

// Service creates and destroys component instances.
type Service struct {
	log     *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the collector pre-destroy failures are counted on.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instantiate builds d from resolved constructor arguments and member values,
// runs its post-init hook and installs its proxy. On failure d keeps no
// instance.
func (s *Service) Instantiate(d *descriptor.Descriptor, args, members []any) error {
	inst, err := s.Build(d, args, members)
	if err != nil {
		return err
	}
	d.SetInstance(inst)
	d.SetState(descriptor.StateInstantiated)
	if err := s.installProxy(d); err != nil {
		d.SetInstance(nil)
		return err
	}
	s.log.Debug("component instantiated",
		zap.Stringer("component", d),
		zap.Stringer("scope", d.Scope))
	return nil
}

// Build creates a fresh instance of d without touching d's live state.
func (s *Service) Build(d *descriptor.Descriptor, args, members []any) (any, error) {
	if d.Initializer == nil {
		return nil, ierrors.InvalidDescriptor(d.String(), "no initializer")
	}
	if want := len(d.Initializer.Params()); want != len(args) {
		return nil, ierrors.ArgumentCount(d.String(), want, len(args))
	}
	if len(d.Members) != len(members) {
		return nil, ierrors.ArgumentCount(d.String(), len(d.Members), len(members))
	}

	inst, err := call(func() (any, error) { return d.Initializer.Call(args) })
	if err != nil {
		return nil, ierrors.Instantiation(d.String(), err)
	}
	if inst == nil {
		return nil, ierrors.Instantiation(d.String(), errors.New("initializer returned nil"))
	}
	for i, m := range d.Members {
		if members[i] == nil {
			continue
		}
		if err := m.Set(inst, members[i]); err != nil {
			return nil, ierrors.Instantiation(d.String(), err)
		}
	}
	if err := s.postInit(d, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Produce invokes a factory product's producer against its parent's current
// instance, then applies the same post-init and proxy steps as Instantiate.
func (s *Service) Produce(p *descriptor.Descriptor) error {
	inst, err := s.BuildProduct(p)
	if err != nil {
		return err
	}
	p.SetInstance(inst)
	p.SetState(descriptor.StateInstantiated)
	if err := s.installProxy(p); err != nil {
		p.SetInstance(nil)
		return err
	}
	s.log.Debug("factory product instantiated",
		zap.Stringer("component", p),
		zap.Stringer("parent", p.Parent))
	return nil
}

// BuildProduct creates a fresh product instance without touching p.
func (s *Service) BuildProduct(p *descriptor.Descriptor) (any, error) {
	if p.Parent == nil || p.Producer == nil {
		return nil, ierrors.InvalidDescriptor(p.String(), "not a factory product")
	}
	parent := p.Parent.Instance()
	if parent == nil {
		return nil, ierrors.FactoryProduct(p.String(), errors.New("parent "+p.Parent.String()+" has no instance"))
	}
	inst, err := call(func() (any, error) { return p.Producer.Produce(parent) })
	if err != nil {
		return nil, ierrors.FactoryProduct(p.String(), err)
	}
	if inst == nil {
		return nil, ierrors.FactoryProduct(p.String(), errors.New("producer returned nil"))
	}
	if err := s.postInit(p, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Destroy runs the pre-destroy hook, best-effort, and clears the instance.
// A hook failure is logged and returned but never keeps the instance alive.
func (s *Service) Destroy(d *descriptor.Descriptor) error {
	var err error
	if inst := d.Instance(); inst != nil && d.PreDestroy != nil {
		if herr := hook(d.PreDestroy, inst); herr != nil {
			err = ierrors.PreDestroy(d.String(), herr)
			s.metrics.PreDestroyFailed(d.String())
			s.log.Warn("pre-destroy hook failed",
				zap.Stringer("component", d),
				zap.Error(herr))
		}
	}
	d.SetInstance(nil)
	d.SetState(descriptor.StateDestroyed)
	return err
}

// DestroyValue runs d's pre-destroy hook against an instance that is no
// longer d's live one.
func (s *Service) DestroyValue(d *descriptor.Descriptor, inst any) error {
	if inst == nil || d.PreDestroy == nil {
		return nil
	}
	if err := hook(d.PreDestroy, inst); err != nil {
		s.metrics.PreDestroyFailed(d.String())
		s.log.Warn("pre-destroy hook failed",
			zap.Stringer("component", d),
			zap.Error(err))
		return ierrors.PreDestroy(d.String(), err)
	}
	return nil
}

func (s *Service) postInit(d *descriptor.Descriptor, inst any) error {
	if d.PostInit == nil {
		return nil
	}
	if err := hook(d.PostInit, inst); err != nil {
		return ierrors.PostInit(d.String(), err)
	}
	return nil
}

// installProxy creates the stand-in once. After a reload the existing proxy
// keeps forwarding, now to the new instance.
func (s *Service) installProxy(d *descriptor.Descriptor) error {
	if d.Scope != descriptor.Proxy || d.HasProxy() {
		return nil
	}
	proxy := d.Proxy(func() any { return d.Instance() })
	if proxy == nil {
		return ierrors.InvalidDescriptor(d.String(), "proxy factory returned nil")
	}
	return d.SetProxy(proxy)
}

func call(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, ierrors.Recovered(r)
		}
	}()
	return fn()
}

func hook(h descriptor.Hook, inst any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ierrors.Recovered(r)
		}
	}()
	return h(inst)
}
