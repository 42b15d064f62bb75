package metrics

import (
	"time"

	"claimforge/compliance/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics tracks rule store rebuilds.
//
// Metrics:
//   - claimforge_ingest_builds_total: staging attempts by kind and status
//   - claimforge_ingest_build_duration_seconds: staging duration by kind
//   - claimforge_ingest_rows: rows in the most recent successful stage
//   - claimforge_ingest_decode_failures_total: undecodable entries by kind
//   - claimforge_ingest_download_bytes_total: bytes fetched by kind
//   - claimforge_ingest_commits_total: snapshot commits by status
//   - claimforge_ingest_last_success_timestamp_seconds: last successful stage
type IngestMetrics struct {
	buildsTotal     *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec
	rows            *prometheus.GaugeVec
	decodeFailures  *prometheus.CounterVec
	downloadBytes   *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	lastSuccessTime *prometheus.GaugeVec
}

// NewIngestMetrics creates and registers ingest metrics with the provided registry.
func NewIngestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *IngestMetrics {
	im := &IngestMetrics{
		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "builds_total",
				Help:      "Total number of edit family staging attempts",
			},
			[]string{"kind", "status"},
		),

		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "build_duration_seconds",
				Help:      "Duration of edit family staging in seconds",
				// Downloads of quarterly releases run from seconds to many minutes.
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"kind"},
		),

		rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "rows",
				Help:      "Rows staged by the most recent successful build",
			},
			[]string{"kind"},
		),

		decodeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "decode_failures_total",
				Help:      "Total number of archive entries that could not be decoded",
			},
			[]string{"kind"},
		),

		downloadBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "download_bytes_total",
				Help:      "Total bytes downloaded from publisher sources",
			},
			[]string{"kind"},
		),

		commitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "commits_total",
				Help:      "Total number of snapshot commits",
			},
			[]string{"status"},
		),

		lastSuccessTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful stage per kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		im.buildsTotal,
		im.buildDuration,
		im.rows,
		im.decodeFailures,
		im.downloadBytes,
		im.commitsTotal,
		im.lastSuccessTime,
	)

	return im
}

// RecordBuild records one staging attempt.
func (im *IngestMetrics) RecordBuild(kind, status string, duration time.Duration, rows int) {
	im.buildsTotal.WithLabelValues(kind, status).Inc()
	im.buildDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if status == "success" {
		im.rows.WithLabelValues(kind).Set(float64(rows))
		im.lastSuccessTime.WithLabelValues(kind).SetToCurrentTime()
	}
}

// RecordDecodeFailure records an undecodable entry.
func (im *IngestMetrics) RecordDecodeFailure(kind string) {
	im.decodeFailures.WithLabelValues(kind).Inc()
}

// RecordDownload records downloaded bytes.
func (im *IngestMetrics) RecordDownload(kind string, bytes int64) {
	if bytes > 0 {
		im.downloadBytes.WithLabelValues(kind).Add(float64(bytes))
	}
}

// RecordCommit records a snapshot commit.
func (im *IngestMetrics) RecordCommit(status string) {
	im.commitsTotal.WithLabelValues(status).Inc()
}
