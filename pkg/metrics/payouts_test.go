package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPayoutMetrics(reg)

	m.IncCreated("direct", "pending")
	m.IncCreated("direct", "pending")
	m.IncCreated("rank", "on_hold")
	m.IncSkipped("direct")
	m.IncFailed("infinity")
	m.AddReleased(3)
	m.AddReleased(0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "mlm_payouts_created_total", "status", "pending")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "mlm_payouts_skipped_total", "bonus_type", "direct")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "mlm_payouts_failed_total", "bonus_type", "infinity")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	released := findMetricFamily(mfs, "mlm_payouts_released_total")
	require.NotNil(t, released)
	assert.Equal(t, float64(3), released.GetMetric()[0].GetCounter().GetValue())
}

func TestPayoutMetricsNilRegistry(t *testing.T) {
	m := NewPayoutMetrics(nil)
	m.IncCreated("direct", "pending")
	m.AddReleased(2)

	var nilMetrics *PayoutMetrics
	nilMetrics.IncFailed("direct")
}
