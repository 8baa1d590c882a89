package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/metrics"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.Registered()
	m.Registered()
	m.Rotations(7)
	m.Reloaded("*app.Repo")
	m.Updated("*app.Repo")
	m.PreDestroyFailed("*app.Repo")

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[f.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[f.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{
		"ioc_components_registered_total": 2,
		"ioc_boot_rotations":              7,
		"ioc_reloads_total":               1,
		"ioc_updates_total":               1,
		"ioc_pre_destroy_failures_total":  1,
	}, values)
}

func TestCollector_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}

func TestCollector_NilIsSafe(t *testing.T) {
	var m *metrics.Collector
	assert.NotPanics(t, func() {
		m.Registered()
		m.Rotations(1)
		m.Reloaded("x")
		m.Updated("x")
		m.PreDestroyFailed("x")
	})

	unregistered, err := metrics.New(nil)
	require.NoError(t, err)
	assert.NotPanics(t, unregistered.Registered)
}
