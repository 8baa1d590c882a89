package container

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/descriptor"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
	"github.com/km-arc/go-ioc/framework/instantiation"
	"github.com/km-arc/go-ioc/framework/metrics"
)

// lookupKey identifies a single-component query.
type lookupKey struct {
	t         reflect.Type
	qualifier string
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the registry of fully instantiated components.
//
// It supports:
//   - Lookup / LookupNamed (first registered match wins)
//   - Implementations (every assignable component, registration order)
//   - ByTag (role tag queries)
//   - Update / Reload (single component, optional cascade to dependents)
//   - NewInstance (fresh, unregistered instance from recorded requirements)
//   - Rebinding callbacks
//   - Shutdown in dependency order
//
// Reads are cached per query; the caches are dropped by Update and Reload.
// Update and Reload are meant to be called from one control goroutine.
type Container struct {
	mu sync.RWMutex

	initialized bool
	components  []*descriptor.Descriptor

	// query caches
	single map[lookupKey]*descriptor.Descriptor
	impls  map[reflect.Type][]*descriptor.Descriptor
	tagged map[string][]*descriptor.Descriptor

	// rebound callbacks: declared type → []func(any)
	reboundCallbacks map[reflect.Type][]func(any)

	graph *graph

	inst    *instantiation.Service
	log     *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Container.
type Option func(*Container)

// WithInstantiation sets the service used for reloads. It should be the one
// the resolver used at boot.
func WithInstantiation(s *instantiation.Service) Option {
	return func(c *Container) {
		if s != nil {
			c.inst = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Container) { c.metrics = m }
}

// New creates an empty, uninitialized container.
func New(opts ...Option) *Container {
	c := &Container{
		reboundCallbacks: make(map[reflect.Type][]func(any)),
		log:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.inst == nil {
		c.inst = instantiation.New(instantiation.WithLogger(c.log), instantiation.WithMetrics(c.metrics))
	}
	c.resetCaches()
	return c
}

// Init publishes the resolved components, in registration order. A container
// is initialized once; a second call fails with ErrDoubleInit.
func (c *Container) Init(components []*descriptor.Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return ierrors.DoubleInit()
	}
	g, err := buildGraph(components)
	if err != nil {
		return err
	}
	c.components = slices.Clone(components)
	c.graph = g
	c.initialized = true
	c.resetCaches()
	c.log.Info("container initialized", zap.Int("components", len(components)))
	return nil
}

// Initialized reports whether Init succeeded.
func (c *Container) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Components returns every registered descriptor in registration order.
func (c *Container) Components() []*descriptor.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.components)
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Find returns the first live component assignable to t, restricted to
// qualifier when one is given. A component whose reload failed has no
// instance and is skipped until a later Reload or Update revives it.
func (c *Container) Find(t reflect.Type, qualifier string) (*descriptor.Descriptor, bool) {
	key := lookupKey{t: t, qualifier: qualifier}

	c.mu.RLock()
	d, ok := c.single[key]
	c.mu.RUnlock()
	if ok {
		return d, d != nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	d = nil
	for _, candidate := range c.components {
		if live(candidate) && candidate.Satisfies(t, qualifier) {
			d = candidate
			break
		}
	}
	c.single[key] = d
	return d, d != nil
}

// declared is Find without the liveness filter or the cache. Mutations use it
// so a component left without an instance can still be rebuilt.
func (c *Container) declared(t reflect.Type) (*descriptor.Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.components {
		if d.Satisfies(t, "") {
			return d, true
		}
	}
	return nil, false
}

func live(d *descriptor.Descriptor) bool { return d.Instance() != nil }

// Lookup returns what a consumer of t would receive: the first registered
// match's proxy or instance.
//
//	v, ok := c.Lookup(reflect.TypeFor[UserRepository]())
func (c *Container) Lookup(t reflect.Type) (any, bool) {
	return c.LookupNamed(t, "")
}

// LookupNamed is Lookup restricted to a qualifier.
func (c *Container) LookupNamed(t reflect.Type, qualifier string) (any, bool) {
	d, ok := c.Find(t, qualifier)
	if !ok {
		return nil, false
	}
	return d.Value(), true
}

// Implementations returns every component assignable to t in registration
// order.
func (c *Container) Implementations(t reflect.Type) []any {
	return values(c.implementations(t))
}

func (c *Container) implementations(t reflect.Type) []*descriptor.Descriptor {
	c.mu.RLock()
	ds, ok := c.impls[t]
	c.mu.RUnlock()
	if ok {
		return ds
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ds = []*descriptor.Descriptor{}
	for _, d := range c.components {
		if live(d) && d.Satisfies(t, "") {
			ds = append(ds, d)
		}
	}
	c.impls[t] = ds
	return ds
}

// ByTag returns every component carrying the role tag.
func (c *Container) ByTag(tag string) []any {
	return values(c.byTag(tag))
}

// TaggedComponents returns the descriptors carrying the role tag.
func (c *Container) TaggedComponents(tag string) []*descriptor.Descriptor {
	return slices.Clone(c.byTag(tag))
}

func (c *Container) byTag(tag string) []*descriptor.Descriptor {
	c.mu.RLock()
	ds, ok := c.tagged[tag]
	c.mu.RUnlock()
	if ok {
		return ds
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ds = []*descriptor.Descriptor{}
	for _, d := range c.components {
		if live(d) && d.HasTag(tag) {
			ds = append(ds, d)
		}
	}
	c.tagged[tag] = ds
	return ds
}

// Arguments resolves call arguments the way constructor parameters are
// resolved: slices and live collections receive every match, anything else
// the first registered match. A missing single value fails with ErrNotFound.
func (c *Container) Arguments(params []descriptor.Param) ([]any, error) {
	components := c.Components()
	out := make([]any, len(params))
	for i, p := range params {
		r := descriptor.NewRequirement(fmt.Sprintf("arg%d", i), p.Type, p.Qualifier)
		for _, d := range components {
			if live(d) {
				r.Attach(d)
			}
		}
		if !r.Collection && len(r.Matches()) == 0 {
			return nil, ierrors.NotFound(r.String())
		}
		out[i] = r.Value()
	}
	return out, nil
}

// ── Mutation ──────────────────────────────────────────────────────────────────

// Update replaces the live instance of the first component assignable to t.
// With destroyOld the old instance's pre-destroy hook runs first; its failure
// is logged and does not stop the update. A proxy keeps forwarding, now to v.
func (c *Container) Update(t reflect.Type, v any, destroyOld bool) error {
	d, ok := c.declared(t)
	if !ok {
		return ierrors.NotFound(descriptor.TypeName(t))
	}
	if v == nil || !reflect.TypeOf(v).AssignableTo(d.Type) {
		return ierrors.InvalidDescriptor(d.String(), fmt.Sprintf("cannot update with %T", v))
	}

	if destroyOld {
		_ = c.inst.DestroyValue(d, d.Instance())
	}
	d.SetInstance(v)
	d.SetState(descriptor.StateRegistered)
	c.invalidate()

	c.metrics.Updated(d.String())
	c.log.Info("component updated",
		zap.Stringer("component", d),
		zap.Bool("destroyOld", destroyOld))
	c.fireRebound(d)
	return nil
}

// Reload destroys and rebuilds the component owning v, from the requirements
// it was resolved with. The owner is found by identity (instance or proxy)
// first, then by v's type. With cascade, dependents holding the raw instance
// (no proxy) are reloaded too, recursively. Returns what consumers now receive.
func (c *Container) Reload(v any, cascade bool) (any, error) {
	d, ok := c.owner(v)
	if !ok {
		return nil, ierrors.NotFound(fmt.Sprintf("%T", v))
	}
	return c.reloadRoot(d, cascade)
}

// ReloadType is Reload addressed by declared type.
func (c *Container) ReloadType(t reflect.Type, cascade bool) (any, error) {
	d, ok := c.declared(t)
	if !ok {
		return nil, ierrors.NotFound(descriptor.TypeName(t))
	}
	return c.reloadRoot(d, cascade)
}

func (c *Container) reloadRoot(d *descriptor.Descriptor, cascade bool) (any, error) {
	var reloaded []*descriptor.Descriptor
	err := c.reload(d, cascade, map[*descriptor.Descriptor]bool{}, &reloaded)
	c.invalidate()

	for _, r := range reloaded {
		c.fireRebound(r)
	}
	if err != nil {
		return nil, err
	}
	return d.Value(), nil
}

func (c *Container) reload(d *descriptor.Descriptor, cascade bool, seen map[*descriptor.Descriptor]bool, reloaded *[]*descriptor.Descriptor) error {
	if seen[d] {
		return nil
	}
	seen[d] = true
	if d.Provided {
		return ierrors.InvalidDescriptor(d.String(), "pre-supplied instances cannot be reloaded")
	}

	_ = c.inst.Destroy(d)
	var err error
	if d.IsProduct() {
		err = c.inst.Produce(d)
	} else {
		ctor, members := d.Requirements()
		err = c.inst.Instantiate(d, descriptor.Values(ctor), descriptor.Values(members))
	}
	if err != nil {
		c.log.Error("component reload failed", zap.Stringer("component", d), zap.Error(err))
		return err
	}
	d.SetState(descriptor.StateRegistered)
	*reloaded = append(*reloaded, d)
	c.metrics.Reloaded(d.String())
	c.log.Info("component reloaded", zap.Stringer("component", d), zap.Bool("cascade", cascade))

	if !cascade || d.HasProxy() {
		return nil
	}
	for _, dep := range d.Dependents() {
		if err := c.reload(dep, cascade, seen, reloaded); err != nil {
			return err
		}
	}
	return nil
}

// owner finds the component whose instance or proxy is v, else the first one
// assignable to v's dynamic type.
func (c *Container) owner(v any) (*descriptor.Descriptor, bool) {
	if v == nil {
		return nil, false
	}
	for _, d := range c.Components() {
		if d.Owns(v) {
			return d, true
		}
	}
	return c.declared(reflect.TypeOf(v))
}

// NewInstance builds a fresh instance of the first component assignable to t
// without registering it. Post-init runs; the proxy is not involved.
func (c *Container) NewInstance(t reflect.Type) (any, error) {
	d, ok := c.declared(t)
	if !ok {
		return nil, ierrors.NotFound(descriptor.TypeName(t))
	}
	if d.Provided {
		return nil, ierrors.InvalidDescriptor(d.String(), "pre-supplied instances cannot be rebuilt")
	}
	if d.IsProduct() {
		return c.inst.BuildProduct(d)
	}
	ctor, members := d.Requirements()
	return c.inst.Build(d, descriptor.Values(ctor), descriptor.Values(members))
}

// Shutdown destroys every component, consumers before the providers they
// depend on. Pre-destroy failures are collected, never fatal.
func (c *Container) Shutdown() error {
	order, err := c.DependencyOrder()
	if err != nil {
		return err
	}
	var errs []error
	for _, d := range slices.Backward(order) {
		if d.State() == descriptor.StateDestroyed {
			continue
		}
		if err := c.inst.Destroy(d); err != nil {
			errs = append(errs, err)
		}
	}
	c.invalidate()
	c.log.Info("container shut down",
		zap.Int("components", len(order)),
		zap.Int("failures", len(errs)))
	return errors.Join(errs...)
}

func (c *Container) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetCaches()
}

// resetCaches must hold mu.Lock (or run before the container is shared).
func (c *Container) resetCaches() {
	c.single = make(map[lookupKey]*descriptor.Descriptor)
	c.impls = make(map[reflect.Type][]*descriptor.Descriptor)
	c.tagged = make(map[string][]*descriptor.Descriptor)
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback fired with the new value whenever a component
// declared as t is updated or reloaded.
func (c *Container) Rebinding(t reflect.Type, cb func(any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reboundCallbacks[t] = append(c.reboundCallbacks[t], cb)
}

func (c *Container) fireRebound(d *descriptor.Descriptor) {
	c.mu.RLock()
	cbs := slices.Clone(c.reboundCallbacks[d.Type])
	c.mu.RUnlock()
	v := d.Value()
	for _, cb := range cbs {
		cb(v)
	}
}

func values(ds []*descriptor.Descriptor) []any {
	out := make([]any, 0, len(ds))
	for _, d := range ds {
		if v := d.Value(); v != nil {
			out = append(out, v)
		}
	}
	return out
}
