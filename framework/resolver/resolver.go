// Package resolver drives the boot pass: it matches every component's
// requirements against the providers known so far and hands ready components
// to the instantiation service, one at a time, until the queue drains.
//
// The queue starts ordered by constructor requirement count. An entry whose
// requirements are not yet satisfied goes back to the tail and bumps a
// starvation counter; when the counter reaches the configured bound the
// engine gives up with a *errors.GraphError describing what is still pending.
// A cycle or a missing provider therefore ends the boot instead of looping.
//
// Ambiguity is first-registered-wins: a non-collection requirement keeps the
// first provider attached to it and ignores later matches.
package resolver

import (
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/descriptor"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
	"github.com/km-arc/go-ioc/framework/instantiation"
	"github.com/km-arc/go-ioc/framework/metrics"
)

// DefaultMaxIterations bounds the starvation counter when no bound is set.
const DefaultMaxIterations = 10000

// Engine is the work-queue resolver. It is single-use per boot and not safe
// for concurrent use.
type Engine struct {
	maxIterations int
	resolvers     []descriptor.Resolver
	inst          *instantiation.Service
	log           *zap.Logger
	metrics       *metrics.Collector

	queue      []*descriptor.Pending
	universe   []*descriptor.Descriptor
	registered []*descriptor.Descriptor
	live       []liveRequirement
	rotations  int
}

// liveRequirement is a collection requirement of an already instantiated
// consumer. It keeps receiving matches for the rest of the boot.
type liveRequirement struct {
	req   *descriptor.Requirement
	owner *descriptor.Descriptor
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations sets the starvation bound. Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithResolvers appends external last-resort resolvers, tried in order.
func WithResolvers(r ...descriptor.Resolver) Option {
	return func(e *Engine) { e.resolvers = append(e.resolvers, r...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine that materializes components through inst.
func New(inst *instantiation.Service, opts ...Option) *Engine {
	e := &Engine{
		maxIterations: DefaultMaxIterations,
		inst:          inst,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve instantiates every component and factory product, registering the
// pre-supplied instances first. It returns all registered descriptors in
// registration order.
func (e *Engine) Resolve(components, provided []*descriptor.Descriptor) ([]*descriptor.Descriptor, error) {
	e.queue, e.universe, e.registered, e.live, e.rotations = nil, nil, nil, nil, 0

	for _, d := range provided {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		e.universe = append(e.universe, d)
	}
	for _, d := range components {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		d.SetState(descriptor.StatePending)
		e.queue = append(e.queue, descriptor.NewPending(d))
		e.universe = append(e.universe, d)
		e.universe = append(e.universe, d.Products()...)
	}
	sort.SliceStable(e.queue, func(i, j int) bool {
		return len(e.queue[i].Ctor) < len(e.queue[j].Ctor)
	})

	for _, p := range e.queue {
		if err := e.prepare(p); err != nil {
			return nil, err
		}
	}
	for _, d := range provided {
		e.register(d)
	}

	for len(e.queue) > 0 {
		p := e.queue[0]
		e.queue = e.queue[1:]

		if !p.Ready() {
			e.queue = append(e.queue, p)
			e.rotations++
			if e.rotations >= e.maxIterations {
				err := e.graphError()
				e.release()
				return nil, err
			}
			continue
		}
		if err := e.materialize(p); err != nil {
			e.release()
			return nil, err
		}
	}

	e.metrics.Rotations(e.rotations)
	e.log.Info("dependency graph resolved",
		zap.Int("components", len(e.registered)),
		zap.Int("rotations", e.rotations))
	return slices.Clone(e.registered), nil
}

// Rotations returns the starvation counter of the last Resolve call.
func (e *Engine) Rotations() int { return e.rotations }

// prepare counts the known providers of each requirement and consults the
// external resolvers for the ones nothing can satisfy. A plain slice with no
// provider asks the resolvers too before settling for an empty slice.
func (e *Engine) prepare(p *descriptor.Pending) error {
	for _, r := range p.Requirements() {
		r.Expected, r.ExpectedWhole = 0, 0
		for _, d := range e.universe {
			switch {
			case d == p.Descriptor:
			case r.AcceptsWhole(d):
				r.ExpectedWhole++
			case r.Accepts(d):
				r.Expected++
			}
		}
		if r.Expected > 0 || r.ExpectedWhole > 0 || r.Live {
			continue
		}
		for _, res := range e.resolvers {
			if !res.CanResolve(r) {
				continue
			}
			v, err := res.Resolve(r)
			if err != nil {
				return ierrors.Instantiation(p.String(), fmt.Errorf("resolver for %s: %w", r, err))
			}
			r.Supply(v)
			break
		}
	}
	return nil
}

func (e *Engine) materialize(p *descriptor.Pending) error {
	d := p.Descriptor
	d.SetState(descriptor.StateResolved)

	ctor, members := p.Values()
	if err := e.inst.Instantiate(d, ctor, members); err != nil {
		return err
	}
	d.Record(p.Ctor, p.Members)
	for _, r := range p.Requirements() {
		if r.Collection {
			e.live = append(e.live, liveRequirement{req: r, owner: d})
		}
	}
	e.register(d)

	for _, product := range d.Products() {
		if err := e.inst.Produce(product); err != nil {
			return err
		}
		e.register(product)
	}
	return nil
}

// register publishes d and offers it to every waiting requirement, including
// collections of consumers that were already built.
func (e *Engine) register(d *descriptor.Descriptor) {
	d.SetState(descriptor.StateRegistered)
	e.registered = append(e.registered, d)
	e.metrics.Registered()
	e.log.Debug("component registered", zap.Stringer("component", d))

	for _, p := range e.queue {
		for _, r := range p.Requirements() {
			if r.Attach(d) {
				d.AddDependent(p.Descriptor)
			}
		}
	}
	for _, lr := range e.live {
		if lr.req.Attach(d) {
			d.AddDependent(lr.owner)
		}
	}
}

// release destroys what a failed boot already built, newest first. Hook
// failures are logged by the instantiation service. Pre-supplied instances
// belong to the caller and are left alone.
func (e *Engine) release() {
	for _, d := range slices.Backward(e.registered) {
		if d.Provided {
			continue
		}
		_ = e.inst.Destroy(d)
	}
}

func (e *Engine) graphError() error {
	ge := &ierrors.GraphError{
		MaxIterations: e.maxIterations,
		Rotations:     e.rotations,
		Cycle:         waitCycle(e.queue, e.universe),
	}
	for _, p := range e.queue {
		p.Descriptor.SetState(descriptor.StateGraphError)
		u := ierrors.Unresolved{Component: p.String()}
		for _, r := range p.Requirements() {
			switch {
			case r.Satisfied():
			case r.Expected == 0 && r.ExpectedWhole == 0:
				u.Missing = append(u.Missing, r.String())
			default:
				u.Waiting = append(u.Waiting, r.String())
			}
		}
		ge.Pending = append(ge.Pending, u)
	}
	e.metrics.Rotations(e.rotations)
	e.log.Error("dependency graph cannot be resolved",
		zap.Int("rotations", e.rotations),
		zap.Strings("pending", ge.PendingNames()),
		zap.Strings("cycle", ge.Cycle))
	return ge
}
