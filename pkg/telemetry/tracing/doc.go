// Package tracing exports OpenTelemetry spans for rule store builds and
// claim validations.
//
// New installs a global tracer provider when telemetry.tracing.enabled is
// set; otherwise Start returns no-op spans. Builds produce one
// "ingest.build" span with an "ingest.stage" child per edit kind and an
// "ingest.commit" child. Each validation produces a "rules.validate" span.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracing.Start(ctx, "ingest.stage", tracing.Kind("ptp"))
//	err := stage(ctx)
//	tracing.End(span, err)
package tracing
