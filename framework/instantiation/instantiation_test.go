package instantiation_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-ioc/framework/descriptor"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
	"github.com/km-arc/go-ioc/framework/instantiation"
	"github.com/km-arc/go-ioc/framework/metrics"
)

type Counter interface{ Count() int }

type counter struct {
	n      int
	label  string
	opened bool
	closed bool
}

func (c *counter) Count() int { return c.n }

type forwarder struct{ current func() any }

func (f *forwarder) Count() int { return f.current().(Counter).Count() }

func component(t *testing.T, fn any, qualifiers ...string) *descriptor.Descriptor {
	t.Helper()
	ctor, err := descriptor.NewInitializer(fn, qualifiers...)
	require.NoError(t, err)
	return &descriptor.Descriptor{Type: ctor.Type(), Initializer: ctor}
}

// ── Build / Instantiate ───────────────────────────────────────────────────────

func TestInstantiate_RunsInitializerMembersAndPostInit(t *testing.T) {
	d := component(t, func(n int) *counter { return &counter{n: n} })
	d.Members = []descriptor.Member{{
		Name: "label",
		Type: reflect.TypeFor[string](),
		Set: func(inst, v any) error {
			inst.(*counter).label = v.(string)
			return nil
		},
	}}
	d.PostInit = func(inst any) error {
		inst.(*counter).opened = true
		return nil
	}

	require.NoError(t, instantiation.New().Instantiate(d, []any{3}, []any{"main"}))

	c := d.Instance().(*counter)
	assert.Equal(t, 3, c.n)
	assert.Equal(t, "main", c.label)
	assert.True(t, c.opened)
	assert.Equal(t, descriptor.StateInstantiated, d.State())
	assert.Same(t, c, d.Value())
}

func TestBuild_NilMemberIsSkipped(t *testing.T) {
	d := component(t, func() *counter { return &counter{label: "unset"} })
	d.Members = []descriptor.Member{{
		Name:     "label",
		Type:     reflect.TypeFor[string](),
		Optional: true,
		Set:      func(any, any) error { return errors.New("must not be called") },
	}}

	inst, err := instantiation.New().Build(d, nil, []any{nil})
	require.NoError(t, err)
	assert.Equal(t, "unset", inst.(*counter).label)
	assert.Nil(t, d.Instance(), "Build leaves the descriptor untouched")
}

func TestBuild_Failures(t *testing.T) {
	tests := []struct {
		name string
		d    func(t *testing.T) *descriptor.Descriptor
		args []any
		want error
	}{
		{"no initializer", func(*testing.T) *descriptor.Descriptor {
			return &descriptor.Descriptor{Type: reflect.TypeFor[*counter]()}
		}, nil, ierrors.ErrInvalidDescriptor},
		{"argument count", func(t *testing.T) *descriptor.Descriptor {
			return component(t, func(int) *counter { return &counter{} })
		}, nil, ierrors.ErrInstantiation},
		{"initializer error", func(t *testing.T) *descriptor.Descriptor {
			return component(t, func() (*counter, error) { return nil, errors.New("disk full") })
		}, nil, ierrors.ErrInstantiation},
		{"initializer panic", func(t *testing.T) *descriptor.Descriptor {
			return component(t, func() *counter { panic("boom") })
		}, nil, ierrors.ErrInstantiation},
		{"nil result", func(t *testing.T) *descriptor.Descriptor {
			return component(t, func() Counter { return nil })
		}, nil, ierrors.ErrInstantiation},
		{"post-init error", func(t *testing.T) *descriptor.Descriptor {
			d := component(t, func() *counter { return &counter{} })
			d.PostInit = func(any) error { return errors.New("cannot open") }
			return d
		}, nil, ierrors.ErrPostInit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.d(t)
			err := instantiation.New().Instantiate(d, tt.args, nil)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, d.Instance())
		})
	}
}

// ── Proxies ───────────────────────────────────────────────────────────────────

func TestInstantiate_ProxyFollowsCurrentInstance(t *testing.T) {
	d := component(t, func() *counter { return &counter{n: 1} })
	d.Type = reflect.TypeFor[Counter]()
	d.Scope = descriptor.Proxy
	d.Proxy = func(current func() any) any { return &forwarder{current: current} }

	s := instantiation.New()
	require.NoError(t, s.Instantiate(d, nil, nil))

	proxy, ok := d.Value().(Counter)
	require.True(t, ok)
	assert.IsType(t, &forwarder{}, proxy)
	assert.Equal(t, 1, proxy.Count())

	// A second instantiation keeps the stand-in and retargets it.
	d.Initializer, _ = descriptor.NewInitializer(func() *counter { return &counter{n: 2} })
	require.NoError(t, s.Instantiate(d, nil, nil))
	assert.Same(t, proxy, d.Value())
	assert.Equal(t, 2, proxy.Count())
}

func TestInstantiate_NilProxyIsRejected(t *testing.T) {
	d := component(t, func() *counter { return &counter{} })
	d.Scope = descriptor.Proxy
	d.Proxy = func(func() any) any { return nil }

	err := instantiation.New().Instantiate(d, nil, nil)
	assert.ErrorIs(t, err, ierrors.ErrInvalidDescriptor)
	assert.Nil(t, d.Instance())
}

// ── Factory products ──────────────────────────────────────────────────────────

func productOf(parent *descriptor.Descriptor, produce func(any) (any, error)) *descriptor.Descriptor {
	prod := &descriptor.Product{Name: "Snapshot", Type: reflect.TypeFor[int](), Produce: produce}
	return &descriptor.Descriptor{Type: prod.Type, Parent: parent, Producer: prod}
}

func TestProduce_UsesParentInstance(t *testing.T) {
	s := instantiation.New()
	parent := component(t, func() *counter { return &counter{n: 9} })
	require.NoError(t, s.Instantiate(parent, nil, nil))

	p := productOf(parent, func(inst any) (any, error) { return inst.(*counter).n * 2, nil })
	require.NoError(t, s.Produce(p))
	assert.Equal(t, 18, p.Instance())
	assert.Equal(t, descriptor.StateInstantiated, p.State())
}

func TestProduce_Failures(t *testing.T) {
	s := instantiation.New()

	t.Run("not a product", func(t *testing.T) {
		d := component(t, func() *counter { return &counter{} })
		assert.ErrorIs(t, s.Produce(d), ierrors.ErrInvalidDescriptor)
	})

	t.Run("parent not built", func(t *testing.T) {
		parent := component(t, func() *counter { return &counter{} })
		p := productOf(parent, func(any) (any, error) { return 1, nil })
		assert.ErrorIs(t, s.Produce(p), ierrors.ErrFactoryProduct)
	})

	t.Run("producer error", func(t *testing.T) {
		parent := component(t, func() *counter { return &counter{} })
		require.NoError(t, s.Instantiate(parent, nil, nil))
		p := productOf(parent, func(any) (any, error) { return nil, errors.New("no snapshot") })
		assert.ErrorIs(t, s.Produce(p), ierrors.ErrFactoryProduct)
		assert.Nil(t, p.Instance())
	})

	t.Run("producer panic", func(t *testing.T) {
		parent := component(t, func() *counter { return &counter{} })
		require.NoError(t, s.Instantiate(parent, nil, nil))
		p := productOf(parent, func(any) (any, error) { panic("boom") })
		assert.ErrorIs(t, s.Produce(p), ierrors.ErrFactoryProduct)
	})
}

// ── Destroy ───────────────────────────────────────────────────────────────────

func TestDestroy_RunsPreDestroyAndClears(t *testing.T) {
	s := instantiation.New()
	d := component(t, func() *counter { return &counter{} })
	d.PreDestroy = func(inst any) error {
		inst.(*counter).closed = true
		return nil
	}
	require.NoError(t, s.Instantiate(d, nil, nil))
	c := d.Instance().(*counter)

	require.NoError(t, s.Destroy(d))
	assert.True(t, c.closed)
	assert.Nil(t, d.Instance())
	assert.Equal(t, descriptor.StateDestroyed, d.State())
}

func TestDestroy_HookFailureIsLoggedAndCounted(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	s := instantiation.New(instantiation.WithLogger(zap.New(core)), instantiation.WithMetrics(m))
	d := component(t, func() *counter { return &counter{} })
	d.PreDestroy = func(any) error { panic("stuck") }
	require.NoError(t, s.Instantiate(d, nil, nil))

	err = s.Destroy(d)
	assert.ErrorIs(t, err, ierrors.ErrPreDestroy)
	assert.Nil(t, d.Instance(), "a failing hook never keeps the instance alive")
	assert.Equal(t, 1, logs.FilterMessage("pre-destroy hook failed").Len())

	n, err := testutil.GatherAndCount(reg, "ioc_pre_destroy_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDestroyValue_TargetsDetachedInstance(t *testing.T) {
	s := instantiation.New()
	var closed []int
	d := component(t, func() *counter { return &counter{n: 1} })
	d.PreDestroy = func(inst any) error {
		closed = append(closed, inst.(*counter).n)
		return nil
	}
	require.NoError(t, s.Instantiate(d, nil, nil))

	require.NoError(t, s.DestroyValue(d, &counter{n: 7}))
	require.NoError(t, s.DestroyValue(d, nil))
	assert.Equal(t, []int{7}, closed)
	assert.NotNil(t, d.Instance(), "the live instance is untouched")
}
