// Package metrics provides Prometheus metrics collection for claimforge.
//
// # Metrics Categories
//
//   - Ingest: staging attempts, durations, row counts, decode failures,
//     download volume and snapshot commits per edit family
//   - Validation: validation outcomes and latency, findings by rule kind
//     and severity, and the risk score distribution
//   - Cache: rule lookup cache hits, misses, evictions and size
//
// All metrics live on a private registry exposed by Collector.Handler.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordBuild("ptp", "success", 42*time.Second, 612345)
//	collector.RecordValidation("invalid", 300*time.Microsecond, 40)
//	mux.Handle("/metrics", collector.Handler())
//
// A nil *Collector is a no-op for every Record method.
package metrics
