package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PayoutMetrics counts payout batch outcomes.
type PayoutMetrics struct {
	created *prometheus.CounterVec
	skipped *prometheus.CounterVec
	failed  *prometheus.CounterVec
	release prometheus.Counter
}

// NewPayoutMetrics registers payout counters on reg. A nil registerer yields
// a no-op recorder.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_payouts_created_total",
		Help: "Payouts created by bonus type and initial status.",
	}, []string{"bonus_type", "status"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_payouts_skipped_total",
		Help: "Source events skipped because they were already processed.",
	}, []string{"bonus_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_payouts_failed_total",
		Help: "Source events whose processing failed.",
	}, []string{"bonus_type"})
	release := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mlm_payouts_released_total",
		Help: "On-hold payouts released to pending.",
	})
	reg.MustRegister(created, skipped, failed, release)
	return &PayoutMetrics{created: created, skipped: skipped, failed: failed, release: release}
}

// IncCreated counts a new payout.
func (p *PayoutMetrics) IncCreated(bonusType, status string) {
	if p == nil || p.created == nil {
		return
	}
	p.created.WithLabelValues(normalizeLabel(bonusType), normalizeLabel(status)).Inc()
}

// IncSkipped counts an already-processed source event.
func (p *PayoutMetrics) IncSkipped(bonusType string) {
	if p == nil || p.skipped == nil {
		return
	}
	p.skipped.WithLabelValues(normalizeLabel(bonusType)).Inc()
}

// IncFailed counts a source event that could not be processed.
func (p *PayoutMetrics) IncFailed(bonusType string) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.WithLabelValues(normalizeLabel(bonusType)).Inc()
}

// AddReleased counts hold releases.
func (p *PayoutMetrics) AddReleased(n int) {
	if p == nil || p.release == nil || n <= 0 {
		return
	}
	p.release.Add(float64(n))
}
