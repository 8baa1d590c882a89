// Package metrics exposes prometheus collectors for container activity.
//
// A nil *Collector is valid and records nothing, so every service can take
// one unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ioc"

// Collector groups the container's prometheus instruments.
type Collector struct {
	registered        prometheus.Counter
	rotations         prometheus.Gauge
	reloads           *prometheus.CounterVec
	updates           *prometheus.CounterVec
	preDestroyFailure *prometheus.CounterVec
}

// New creates the instruments and registers them on reg. A nil reg leaves
// them unregistered, which is handy in tests.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "components_registered_total",
			Help:      "Components and factory products registered during boot.",
		}),
		rotations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boot_rotations",
			Help:      "Work-queue rotations spent on entries that were not ready during the last boot.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Component reloads.",
		}, []string{"component"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Component instance replacements.",
		}, []string{"component"}),
		preDestroyFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pre_destroy_failures_total",
			Help:      "Pre-destroy hooks that returned an error or panicked.",
		}, []string{"component"}),
	}
	if reg != nil {
		for _, col := range []prometheus.Collector{c.registered, c.rotations, c.reloads, c.updates, c.preDestroyFailure} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Registered counts one registration.
func (c *Collector) Registered() {
	if c != nil {
		c.registered.Inc()
	}
}

// Rotations records the starvation counter of a finished boot.
func (c *Collector) Rotations(n int) {
	if c != nil {
		c.rotations.Set(float64(n))
	}
}

// Reloaded counts a reload of component.
func (c *Collector) Reloaded(component string) {
	if c != nil {
		c.reloads.WithLabelValues(component).Inc()
	}
}

// Updated counts an instance replacement of component.
func (c *Collector) Updated(component string) {
	if c != nil {
		c.updates.WithLabelValues(component).Inc()
	}
}

// PreDestroyFailed counts a failed pre-destroy hook of component.
func (c *Collector) PreDestroyFailed(component string) {
	if c != nil {
		c.preDestroyFailure.WithLabelValues(component).Inc()
	}
}
