package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/scanner"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider publishes the loaded configuration.
//
// Registered instances:
//   - *config.Config
//   - *config.AppConfig (shorthand for the App section)
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(t *scanner.Table) {
	t.Instance(p.Config)
	t.Instance(&p.Config.App)
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider publishes the shared *zap.Logger and reports the boot.
type LogServiceProvider struct {
	Logger *zap.Logger
}

func (p *LogServiceProvider) Register(t *scanner.Table) {
	t.Instance(p.Logger)
}

func (p *LogServiceProvider) Boot(c *container.Container) error {
	p.Logger.Info("container booted", zap.Int("components", len(c.Components())))
	return nil
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider publishes the metrics registry so components can
// register their own collectors.
//
// Registered instances:
//   - prometheus.Registerer
//   - prometheus.Gatherer
type MetricsServiceProvider struct {
	container.BaseProvider
	Registry *prometheus.Registry
}

func (p *MetricsServiceProvider) Register(t *scanner.Table) {
	t.Instance(p.Registry, scanner.As[prometheus.Registerer]())
	t.Instance(p.Registry, scanner.As[prometheus.Gatherer]())
}
