// Package logging configures structured logging for claimforge.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON or text console output
//   - An optional JSON log file fanned out alongside the console
//   - Context fields (build_id, kind, claim_id, trigger) on every record
//   - Masking of credentials in store DSNs and object storage keys
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	defer logger.Shutdown()
//	logger.SetDefault()
//
//	ctx = logging.WithBuildID(ctx, id)
//	slog.Default().With("component", "ingest").InfoContext(ctx, "staged", "rows", n)
//
// Packages obtain their logger with slog.Default().With("component", name)
// and log with the *Context variants so build IDs propagate.
package logging
