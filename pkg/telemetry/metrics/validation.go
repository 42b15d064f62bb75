package metrics

import (
	"time"

	"claimforge/compliance/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ValidationMetrics tracks claim validation.
//
// Metrics:
//   - claimforge_validations_total: validations by outcome
//   - claimforge_validation_duration_seconds: validation latency
//   - claimforge_findings_total: findings by rule kind and severity
//   - claimforge_risk_score: distribution of computed risk scores
type ValidationMetrics struct {
	validationsTotal   *prometheus.CounterVec
	validationDuration prometheus.Histogram
	findingsTotal      *prometheus.CounterVec
	riskScore          prometheus.Histogram
}

// NewValidationMetrics creates and registers validation metrics with the provided registry.
func NewValidationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ValidationMetrics {
	vm := &ValidationMetrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "validations_total",
				Help:      "Total number of claim validations",
			},
			[]string{"outcome"},
		),

		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "validation_duration_seconds",
				Help:      "Duration of claim validation in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),

		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "findings_total",
				Help:      "Total number of findings by rule kind and severity",
			},
			[]string{"kind", "severity"},
		),

		riskScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "risk_score",
				Help:      "Distribution of claim risk scores",
				Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
	}

	registry.MustRegister(
		vm.validationsTotal,
		vm.validationDuration,
		vm.findingsTotal,
		vm.riskScore,
	)

	return vm
}

// RecordValidation records one validation.
func (vm *ValidationMetrics) RecordValidation(outcome string, duration time.Duration, riskScore int) {
	vm.validationsTotal.WithLabelValues(outcome).Inc()
	vm.validationDuration.Observe(duration.Seconds())
	if outcome != "error" {
		vm.riskScore.Observe(float64(riskScore))
	}
}

// RecordFinding records one finding.
func (vm *ValidationMetrics) RecordFinding(kind, severity string) {
	vm.findingsTotal.WithLabelValues(kind, severity).Inc()
}
