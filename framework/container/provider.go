package container

import (
	"errors"
	"fmt"

	"github.com/km-arc/go-ioc/framework/scanner"
)

// ErrProvidersBooted is returned when a provider is registered after boot,
// when its components can no longer join the graph.
var ErrProvidersBooted = errors.New("container: providers already booted")

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registrations of one feature.
//
// Register() fills the registration table before discovery runs.
// Boot() is called after the container is initialized, making it safe
// to look up any component inside Boot().
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(t *scanner.Table) {
//	    t.Component(mail.NewSMTP, scanner.As[mail.Mailer](), scanner.PreDestroy("Close"))
//	}
//
//	func (p *MailProvider) Boot(c *container.Container) error {
//	    container.MustGet[*zap.Logger](c).Info("mail ready")
//	    return nil
//	}
type ServiceProvider interface {
	// Register adds entries to the registration table.
	// Do NOT expect any component to exist yet; use Boot() for that.
	Register(t *scanner.Table)

	// Boot is called once the container is initialized.
	Boot(c *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with a no-op Boot().
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(t *scanner.Table) { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders.
type ProviderRegistry struct {
	table      *scanner.Table
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry writing into table.
func NewProviderRegistry(table *scanner.Table) *ProviderRegistry {
	return &ProviderRegistry{
		table:      table,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register() method. Registering the
// same provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if r.booted {
		return fmt.Errorf("%w: %T", ErrProvidersBooted, provider)
	}
	r.registered[provider] = true
	provider.Register(r.table)
	r.providers = append(r.providers, provider)
	return nil
}

// Boot calls Boot() on all providers in registration order and stops at the
// first error. Must be called after the container is initialized.
func (r *ProviderRegistry) Boot(c *Container) error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, provider := range r.providers {
		if err := provider.Boot(c); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }

// Table returns the registration table providers write into.
func (r *ProviderRegistry) Table() *scanner.Table { return r.table }
