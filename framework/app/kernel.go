package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	ierrors "github.com/km-arc/go-ioc/framework/errors"
	"github.com/km-arc/go-ioc/framework/inspect"
	"github.com/km-arc/go-ioc/framework/instantiation"
	"github.com/km-arc/go-ioc/framework/logging"
	"github.com/km-arc/go-ioc/framework/metrics"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/resolver"
	"github.com/km-arc/go-ioc/framework/scanner"
)

// Application drives one boot of the component graph and owns the
// resulting Container.
type Application struct {
	cfg       *config.Config
	log       *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	table     *scanner.Table
	providers *container.ProviderRegistry
	locators  []scanner.Locator
	container *container.Container
	booted    bool
}

// Option configures an Application.
type Option func(*Application)

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(l *zap.Logger) Option {
	return func(a *Application) { a.log = l }
}

// WithRegistry sets the prometheus registry the container's metrics and the
// inspection /metrics route use.
func WithRegistry(r *prometheus.Registry) Option {
	return func(a *Application) { a.registry = r }
}

// WithLocators adds discovery sources next to the provider table.
func WithLocators(l ...scanner.Locator) Option {
	return func(a *Application) { a.locators = append(a.locators, l...) }
}

// New validates cfg and prepares an Application. The framework providers
// (config, logger, metrics registry) are registered first.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	a := &Application{cfg: cfg, table: scanner.NewTable()}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		l, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.log = l
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	m, err := metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	a.metrics = m
	a.providers = container.NewProviderRegistry(a.table)

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LogServiceProvider{Logger: a.log},
		&providers.MetricsServiceProvider{Registry: a.registry},
	} {
		if err := a.providers.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider. Providers must be registered before Boot.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.providers.Register(provider)
}

// Boot discovers, scans and resolves every registered component, publishes
// the container, boots providers and runs startup methods. On error nothing
// is published. Boot runs once: a second call fails with ErrDoubleInit
// whether or not the first one succeeded.
func (a *Application) Boot(ctx context.Context) error {
	if a.booted {
		return ierrors.DoubleInit()
	}
	a.booted = true
	cc := a.cfg.Container
	for _, v := range cc.Provide {
		a.table.Instance(v)
	}

	entries, err := scanner.Discover(ctx, append([]scanner.Locator{a.table}, a.locators...)...)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	scanOpts := []scanner.ScannerOption{
		scanner.WithComponentTags(cc.ComponentTags...),
		scanner.WithProductTags(cc.ProductTags...),
		scanner.WithLogger(logging.Component(a.log, "scanner")),
	}
	for _, pair := range cc.AliasPairs() {
		scanOpts = append(scanOpts, scanner.WithAlias(pair[0], pair[1]))
	}
	components, provided, err := scanner.New(scanOpts...).Scan(entries)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	inst := instantiation.New(
		instantiation.WithLogger(logging.Component(a.log, "instantiation")),
		instantiation.WithMetrics(a.metrics),
	)
	engine := resolver.New(inst,
		resolver.WithMaxIterations(cc.MaxIterations),
		resolver.WithResolvers(cc.Use...),
		resolver.WithLogger(logging.Component(a.log, "resolver")),
		resolver.WithMetrics(a.metrics),
	)
	registered, err := engine.Resolve(components, provided)
	if err != nil {
		return err
	}

	c := container.New(
		container.WithInstantiation(inst),
		container.WithLogger(logging.Component(a.log, "container")),
		container.WithMetrics(a.metrics),
	)
	if err := c.Init(registered); err != nil {
		return err
	}
	if err := a.providers.Boot(c); err != nil {
		return a.abort(c, err)
	}
	if err := startup(c); err != nil {
		return a.abort(c, err)
	}

	a.container = c
	a.log.Info("boot complete",
		zap.Int("components", len(registered)),
		zap.Int("rotations", engine.Rotations()),
	)
	return nil
}

// abort destroys a container that will not be published.
func (a *Application) abort(c *container.Container, err error) error {
	if serr := c.Shutdown(); serr != nil {
		a.log.Warn("shutdown after failed boot", zap.Error(serr))
	}
	return err
}

// startup runs every startup method in registration order, arguments
// resolved from the registry.
func startup(c *container.Container) error {
	for _, d := range c.Components() {
		for _, m := range d.Startup {
			args, err := c.Arguments(m.Params)
			if err != nil {
				return fmt.Errorf("startup %s.%s: %w", d, m.Name, err)
			}
			if err := m.Invoke(d.Value(), args); err != nil {
				return fmt.Errorf("startup %s.%s: %w", d, m.Name, err)
			}
		}
	}
	return nil
}

// Container returns the booted container, or nil before a successful Boot.
func (a *Application) Container() *container.Container { return a.container }

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// Gatherer returns the registry holding the container metrics.
func (a *Application) Gatherer() prometheus.Gatherer { return a.registry }

// Run boots if needed, serves the inspection handler when enabled and blocks
// until ctx is done. The container is shut down before Run returns.
func (a *Application) Run(ctx context.Context) error {
	if a.container == nil {
		if err := a.Boot(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Inspect.Enabled {
		srv := &http.Server{
			Addr: a.cfg.Inspect.Addr,
			Handler: inspect.New(a.container,
				inspect.WithLogger(logging.Component(a.log, "inspect")),
				inspect.WithGatherer(a.registry),
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.log.Info("inspect listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	err := g.Wait()
	if serr := a.container.Shutdown(); serr != nil {
		err = errors.Join(err, serr)
	}
	_ = a.log.Sync()
	return err
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.cfg.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.cfg.App.Debug }
