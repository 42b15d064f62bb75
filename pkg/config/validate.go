package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "store.driver").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any rule fails. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateSources(&cfg.Sources)...)
	errs = append(errs, validateMirror(&cfg.Mirror)...)
	errs = append(errs, validateRefresh(&cfg.Refresh)...)
	errs = append(errs, validateValidation(&cfg.Validation)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Driver {
	case "sqlite", "sqlite3", "postgres":
	default:
		errs = append(errs, FieldError{
			Field:   "store.driver",
			Message: fmt.Sprintf("must be one of sqlite, sqlite3, postgres (got %q)", cfg.Driver),
		})
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		errs = append(errs, FieldError{Field: "store.dsn", Message: "must not be empty"})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, FieldError{Field: "store.max_open_conns", Message: "must be at least 1"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{Field: "store.max_idle_conns", Message: "must not be negative"})
	}
	if cfg.InsertBatchSize < 1 {
		errs = append(errs, FieldError{Field: "store.insert_batch_size", Message: "must be at least 1"})
	}

	return errs
}

func validateSources(cfg *SourcesConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.DownloadDir) == "" {
		errs = append(errs, FieldError{Field: "sources.download_dir", Message: "must not be empty"})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "sources.timeout", Message: "must not be negative"})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "sources.max_retries", Message: "must not be negative"})
	}
	if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, FieldError{Field: "sources.requests_per_second", Message: "must be positive"})
	}
	if cfg.Burst < 1 {
		errs = append(errs, FieldError{Field: "sources.burst", Message: "must be at least 1"})
	}
	if cfg.MaxEntryBytes < 1 {
		errs = append(errs, FieldError{Field: "sources.max_entry_bytes", Message: "must be positive"})
	}

	for name, src := range map[string]SourceConfig{"ptp": cfg.PTP, "mue": cfg.MUE, "aoc": cfg.AOC} {
		if src.LocalPath != "" {
			continue
		}
		u, err := url.Parse(src.IndexURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "sources." + name + ".index_url",
				Message: fmt.Sprintf("must be an absolute http(s) URL (got %q)", src.IndexURL),
			})
		}
	}

	return errs
}

func validateMirror(cfg *MirrorConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{Field: "mirror.endpoint", Message: "required when mirror is enabled"})
	}
	if cfg.Bucket == "" {
		errs = append(errs, FieldError{Field: "mirror.bucket", Message: "required when mirror is enabled"})
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		errs = append(errs, FieldError{Field: "mirror.access_key", Message: "access and secret keys are required when mirror is enabled"})
	}
	return errs
}

func validateRefresh(cfg *RefreshConfig) []FieldError {
	var errs []FieldError
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "refresh.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "refresh.debounce", Message: "must not be negative"})
	}
	return errs
}

func validateValidation(cfg *ValidationConfig) []FieldError {
	var errs []FieldError
	for i, m := range cfg.BypassModifiers {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("validation.bypass_modifiers[%d]", i),
				Message: "must not be empty",
			})
		}
	}
	if cfg.CacheSize < 0 {
		errs = append(errs, FieldError{Field: "validation.cache_size", Message: "must not be negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error (got %q)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text (got %q)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("must be always, never or ratio (got %q)", cfg.Tracing.Sampler),
			})
		}
	}

	return errs
}
