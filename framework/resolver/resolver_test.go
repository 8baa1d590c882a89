package resolver_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/descriptor"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
	"github.com/km-arc/go-ioc/framework/instantiation"
	"github.com/km-arc/go-ioc/framework/resolver"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

type Greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

type french struct{}

func (french) Greet() string { return "bonjour" }

type Repo struct{ Name string }

type Service struct {
	Repo *Repo
}

type Hub struct {
	Greeters []Greeter
}

type LiveHub struct {
	Greeters *descriptor.Collection[Greeter]
}

type A struct{ B *B }
type B struct{ A *A }

func component(t *testing.T, fn any, opts ...func(*descriptor.Descriptor)) *descriptor.Descriptor {
	t.Helper()
	ctor, err := descriptor.NewInitializer(fn)
	require.NoError(t, err)
	d := &descriptor.Descriptor{Type: ctor.Type(), Initializer: ctor}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func named(q string) func(*descriptor.Descriptor) {
	return func(d *descriptor.Descriptor) { d.Qualifier = q }
}

func as[T any]() func(*descriptor.Descriptor) {
	return func(d *descriptor.Descriptor) { d.Type = reflect.TypeFor[T]() }
}

func engine(opts ...resolver.Option) *resolver.Engine {
	return resolver.New(instantiation.New(), opts...)
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestResolve_BuildsDependenciesInAnyDeclarationOrder(t *testing.T) {
	svc := component(t, func(r *Repo) *Service { return &Service{Repo: r} })
	repo := component(t, func() *Repo { return &Repo{Name: "main"} })

	out, err := engine().Resolve([]*descriptor.Descriptor{svc, repo}, nil)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Same(t, repo, out[0])
	assert.Same(t, svc, out[1])
	assert.Same(t, repo.Instance(), svc.Instance().(*Service).Repo)
	assert.Equal(t, descriptor.StateRegistered, svc.State())
	assert.Equal(t, []*descriptor.Descriptor{svc}, repo.Dependents())
}

func TestResolve_ProvidedInstancesRegisterFirst(t *testing.T) {
	repo := &Repo{Name: "external"}
	provided := descriptor.NewProvided(repo, nil, "")
	svc := component(t, func(r *Repo) *Service { return &Service{Repo: r} })

	out, err := engine().Resolve([]*descriptor.Descriptor{svc}, []*descriptor.Descriptor{provided})
	require.NoError(t, err)

	assert.Same(t, provided, out[0])
	assert.Same(t, repo, svc.Instance().(*Service).Repo)
}

func TestResolve_QualifierSelectsProvider(t *testing.T) {
	en := component(t, func() english { return english{} }, as[Greeter](), named("en"))
	fr := component(t, func() french { return french{} }, as[Greeter](), named("fr"))

	ctor, err := descriptor.NewInitializer(func(g Greeter) string { return g.Greet() }, "fr")
	require.NoError(t, err)
	consumer := &descriptor.Descriptor{Type: ctor.Type(), Initializer: ctor}

	_, err = engine().Resolve([]*descriptor.Descriptor{consumer, en, fr}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", consumer.Instance())
}

func TestResolve_AmbiguityIsFirstRegisteredWins(t *testing.T) {
	en := component(t, func() english { return english{} }, as[Greeter]())
	fr := component(t, func() french { return french{} }, as[Greeter]())
	consumer := component(t, func(g Greeter) string { return g.Greet() })

	_, err := engine().Resolve([]*descriptor.Descriptor{consumer, en, fr}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", consumer.Instance())
}

func TestResolve_SliceCollectionWaitsForAllProviders(t *testing.T) {
	hub := component(t, func(g []Greeter) *Hub { return &Hub{Greeters: g} })
	en := component(t, func() english { return english{} }, as[Greeter]())
	fr := component(t, func() french { return french{} }, as[Greeter]())

	_, err := engine().Resolve([]*descriptor.Descriptor{hub, en, fr}, nil)
	require.NoError(t, err)
	assert.Len(t, hub.Instance().(*Hub).Greeters, 2)
}

func TestResolve_EmptyCollectionIsSatisfied(t *testing.T) {
	hub := component(t, func(g []Greeter) *Hub { return &Hub{Greeters: g} })

	_, err := engine().Resolve([]*descriptor.Descriptor{hub}, nil)
	require.NoError(t, err)
	assert.Empty(t, hub.Instance().(*Hub).Greeters)
}

func TestResolve_LiveCollectionWaitsOnKnownProviders(t *testing.T) {
	hub := component(t, func(g *descriptor.Collection[Greeter]) *LiveHub { return &LiveHub{Greeters: g} })
	en := component(t, func() english { return english{} }, as[Greeter]())
	// fr depends on the hub, so it can only be built after the hub is.
	fr := component(t, func(*LiveHub) french { return french{} }, as[Greeter]())

	_, err := engine().Resolve([]*descriptor.Descriptor{hub, en, fr}, nil)
	require.Error(t, err, "hub expects fr, fr waits on hub")
	assert.True(t, errors.Is(err, ierrors.ErrGraphResolution))
}

func TestResolve_LiveCollectionIncludesFactoryProducts(t *testing.T) {
	en := component(t, func() english { return english{} }, as[Greeter]())
	hub := component(t, func(g *descriptor.Collection[Greeter]) *LiveHub { return &LiveHub{Greeters: g} })
	parent := component(t, func() *Repo { return &Repo{} }, func(d *descriptor.Descriptor) {
		d.Factories = []descriptor.Product{{
			Name:    "French",
			Type:    reflect.TypeFor[Greeter](),
			Produce: func(any) (any, error) { return french{}, nil },
		}}
	})

	_, err := engine().Resolve([]*descriptor.Descriptor{en, hub, parent}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Instance().(*LiveHub).Greeters.Len())
}

func TestResolve_FactoryProductsAreRegistered(t *testing.T) {
	parent := component(t, func() *Repo { return &Repo{Name: "parent"} }, func(d *descriptor.Descriptor) {
		d.Factories = []descriptor.Product{{
			Name:      "Greeter",
			Type:      reflect.TypeFor[Greeter](),
			Qualifier: "made",
			Produce:   func(p any) (any, error) { return english{}, nil },
		}}
	})
	consumer := component(t, func(g Greeter) string { return g.Greet() })

	out, err := engine().Resolve([]*descriptor.Descriptor{consumer, parent}, nil)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.True(t, out[1].IsProduct())
	assert.Same(t, parent, out[1].Parent)
	assert.Equal(t, "hello", consumer.Instance())
}

func TestResolve_CycleReportsGraphError(t *testing.T) {
	a := component(t, func(b *B) *A { return &A{B: b} })
	b := component(t, func(a *A) *B { return &B{A: a} })

	_, err := engine(resolver.WithMaxIterations(50)).Resolve([]*descriptor.Descriptor{a, b}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierrors.ErrGraphResolution))

	ge, ok := ierrors.AsGraphError(err)
	require.True(t, ok)
	assert.Equal(t, 50, ge.MaxIterations)
	assert.Equal(t, 50, ge.Rotations)
	assert.ElementsMatch(t, []string{"*resolver_test.A", "*resolver_test.B"}, ge.PendingNames())
	assert.Equal(t, []string{"*resolver_test.A", "*resolver_test.B", "*resolver_test.A"}, ge.Cycle)
	assert.Equal(t, descriptor.StateGraphError, a.State())
}

func TestResolve_MissingProviderReportsGraphError(t *testing.T) {
	svc := component(t, func(r *Repo) *Service { return &Service{Repo: r} })

	_, err := engine(resolver.WithMaxIterations(3)).Resolve([]*descriptor.Descriptor{svc}, nil)
	ge, ok := ierrors.AsGraphError(err)
	require.True(t, ok)
	require.Len(t, ge.Pending, 1)
	assert.Equal(t, []string{"*resolver_test.Repo arg0"}, ge.Pending[0].Missing)
	assert.Empty(t, ge.Cycle)
}

type staticResolver struct{ repo *Repo }

func (s staticResolver) CanResolve(r *descriptor.Requirement) bool {
	return r.Target == reflect.TypeFor[*Repo]()
}

func (s staticResolver) Resolve(*descriptor.Requirement) (any, error) { return s.repo, nil }

func TestResolve_ExternalResolverFillsMissingProvider(t *testing.T) {
	repo := &Repo{Name: "resolved"}
	svc := component(t, func(r *Repo) *Service { return &Service{Repo: r} })

	_, err := engine(resolver.WithResolvers(staticResolver{repo: repo})).Resolve([]*descriptor.Descriptor{svc}, nil)
	require.NoError(t, err)
	assert.Same(t, repo, svc.Instance().(*Service).Repo)
}

func TestResolve_InitializerErrorStopsBoot(t *testing.T) {
	broken := component(t, func() (*Repo, error) { return nil, errors.New("boom") })

	_, err := engine().Resolve([]*descriptor.Descriptor{broken}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierrors.ErrInstantiation))
	assert.ErrorContains(t, err, "boom")
}

func TestResolve_InvalidDescriptorIsRejected(t *testing.T) {
	d := &descriptor.Descriptor{Type: reflect.TypeFor[*Repo]()}

	_, err := engine().Resolve([]*descriptor.Descriptor{d}, nil)
	assert.True(t, errors.Is(err, ierrors.ErrInvalidDescriptor))
}

type Gateway struct{ Hosts []string }

func newGateway(hosts []string) *Gateway { return &Gateway{Hosts: hosts} }

type hostsResolver struct{ hosts []string }

func (h hostsResolver) CanResolve(r *descriptor.Requirement) bool {
	return r.Target == reflect.TypeFor[[]string]()
}

func (h hostsResolver) Resolve(*descriptor.Requirement) (any, error) { return h.hosts, nil }

func TestResolve_PlainSliceFromExternalResolver(t *testing.T) {
	gw := component(t, newGateway)

	_, err := engine(resolver.WithResolvers(hostsResolver{hosts: []string{"a", "b"}})).
		Resolve([]*descriptor.Descriptor{gw}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, gw.Instance().(*Gateway).Hosts)
}

func TestResolve_PlainSliceFromProvidedInstance(t *testing.T) {
	hosts := descriptor.NewProvided([]string{"edge-1", "edge-2"}, nil, "")
	gw := component(t, newGateway)

	_, err := engine(resolver.WithResolvers(hostsResolver{hosts: []string{"unused"}})).
		Resolve([]*descriptor.Descriptor{gw}, []*descriptor.Descriptor{hosts})
	require.NoError(t, err)
	assert.Equal(t, []string{"edge-1", "edge-2"}, gw.Instance().(*Gateway).Hosts)
	assert.Contains(t, hosts.Dependents(), gw)
}

func TestResolve_PlainSliceWaitsForWholeProvider(t *testing.T) {
	gw := component(t, newGateway)
	hosts := component(t, func() []string { return []string{"built"} })

	out, err := engine().Resolve([]*descriptor.Descriptor{gw, hosts}, nil)
	require.NoError(t, err)
	assert.Same(t, hosts, out[0])
	assert.Equal(t, []string{"built"}, gw.Instance().(*Gateway).Hosts)
}

type Ledger struct{ closed []string }

type Conn struct {
	name string
	l    *Ledger
}

func closeConn(inst any) error {
	c := inst.(*Conn)
	c.l.closed = append(c.l.closed, c.name)
	return nil
}

func TestResolve_FailedBootReleasesBuiltComponents(t *testing.T) {
	l := &Ledger{}
	ledger := descriptor.NewProvided(l, nil, "")
	withClose := func(d *descriptor.Descriptor) { d.PreDestroy = closeConn }

	db := component(t, func(l *Ledger) *Conn { return &Conn{name: "db", l: l} }, named("db"), withClose)
	cache := component(t, func(_ *Conn, l *Ledger) *Conn {
		return &Conn{name: "cache", l: l}
	}, named("cache"), withClose)
	broken := component(t, func(*Conn, *Ledger, *Repo) (*Service, error) {
		return nil, errors.New("boom")
	})

	_, err := engine().Resolve(
		[]*descriptor.Descriptor{db, cache, broken, component(t, func() *Repo { return &Repo{} })},
		[]*descriptor.Descriptor{ledger})
	require.True(t, errors.Is(err, ierrors.ErrInstantiation))

	assert.Equal(t, []string{"cache", "db"}, l.closed, "newest first")
	assert.Nil(t, db.Instance())
	assert.Equal(t, descriptor.StateDestroyed, cache.State())
	assert.Same(t, l, ledger.Instance(), "pre-supplied instances are left alone")
}

func TestResolve_GraphErrorReleasesBuiltComponents(t *testing.T) {
	l := &Ledger{}
	db := component(t, func() *Conn { return &Conn{name: "db", l: l} }, func(d *descriptor.Descriptor) {
		d.PreDestroy = closeConn
	})
	a := component(t, func(b *B, _ *Conn) *A { return &A{B: b} })
	b := component(t, func(a *A) *B { return &B{A: a} })

	_, err := engine(resolver.WithMaxIterations(20)).Resolve([]*descriptor.Descriptor{a, b, db}, nil)
	require.True(t, errors.Is(err, ierrors.ErrGraphResolution))
	assert.Equal(t, []string{"db"}, l.closed)
}
