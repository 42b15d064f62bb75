// Package telemetry groups the observability packages used by claimforge.
//
// # Components
//
//   - logging: structured slog logging with credential redaction and an
//     optional JSON file sink
//   - metrics: Prometheus collectors for builds, validations and the lookup
//     cache
//   - tracing: OpenTelemetry spans for builds and validations
//   - health: liveness, readiness and version endpoints
//
// Builds and validations carry their build ID, edit kind and claim ID on
// the context (see logging.WithBuildID and friends), so every log record
// emitted below them is correlated without passing loggers around.
package telemetry
