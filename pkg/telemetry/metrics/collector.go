package metrics

import (
	"time"

	"claimforge/compliance/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns every claimforge metric and the registry they live on.
//
// A nil *Collector is valid and records nothing, so library callers that
// do not care about metrics may pass nil.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ingestMetrics     *IngestMetrics
	validationMetrics *ValidationMetrics
	cacheMetrics      *CacheMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a private registry with Go
// runtime and process collectors is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "claimforge"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		config:            cfg,
		registry:          registry,
		ingestMetrics:     NewIngestMetrics(cfg, registry),
		validationMetrics: NewValidationMetrics(cfg, registry),
		cacheMetrics:      NewCacheMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordBuild records the outcome of staging one edit family.
//
// Parameters:
//   - kind: edit family ("ptp", "mue", "aoc")
//   - status: "success" or "failure"
//   - duration: time spent locating, downloading and parsing
//   - rows: rows staged (ignored on failure)
func (c *Collector) RecordBuild(kind, status string, duration time.Duration, rows int) {
	if !c.enabled() {
		return
	}
	c.ingestMetrics.RecordBuild(kind, status, duration, rows)
}

// RecordDecodeFailure records an archive entry or row block that could not
// be decoded.
func (c *Collector) RecordDecodeFailure(kind string) {
	if !c.enabled() {
		return
	}
	c.ingestMetrics.RecordDecodeFailure(kind)
}

// RecordDownload records bytes fetched for an edit family.
func (c *Collector) RecordDownload(kind string, bytes int64) {
	if !c.enabled() {
		return
	}
	c.ingestMetrics.RecordDownload(kind, bytes)
}

// RecordCommit records a snapshot commit attempt.
func (c *Collector) RecordCommit(status string) {
	if !c.enabled() {
		return
	}
	c.ingestMetrics.RecordCommit(status)
}

// RecordValidation records one claim validation.
//
// Parameters:
//   - outcome: "valid", "invalid" or "unavailable"
//   - duration: validation latency
//   - riskScore: the computed risk score (ignored when outcome is "unavailable")
func (c *Collector) RecordValidation(outcome string, duration time.Duration, riskScore int) {
	if !c.enabled() {
		return
	}
	c.validationMetrics.RecordValidation(outcome, duration, riskScore)
}

// RecordFinding records a single finding by rule kind and severity.
func (c *Collector) RecordFinding(kind, severity string) {
	if !c.enabled() {
		return
	}
	c.validationMetrics.RecordFinding(kind, severity)
}

// RecordCacheHit records a rule lookup cache hit.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a rule lookup cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheEviction records a rule lookup cache eviction.
func (c *Collector) RecordCacheEviction(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordEviction(cacheName)
}

// UpdateCacheSize updates the current size of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
