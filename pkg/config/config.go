package config

import "time"

// Config is the root configuration structure for the claimforge compliance
// engine. It contains the rule store, source discovery, validation policy,
// ops server and telemetry settings.
type Config struct {
	// Store contains rule snapshot persistence settings.
	Store StoreConfig `yaml:"store"`

	// Sources contains publisher index pages and shared HTTP fetch settings
	// for each edit family.
	Sources SourcesConfig `yaml:"sources"`

	// Mirror optionally copies downloaded distributions to object storage.
	Mirror MirrorConfig `yaml:"mirror"`

	// Refresh controls scheduled and file-triggered rebuilds run by
	// "claimforge serve".
	Refresh RefreshConfig `yaml:"refresh"`

	// Validation contains claim validation policy knobs.
	Validation ValidationConfig `yaml:"validation"`

	// Server contains the ops HTTP server configuration (health and metrics).
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig configures the rule store.
type StoreConfig struct {
	// Driver selects the database backend.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo), "postgres"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// DSN is the database file path for SQLite drivers or the connection
	// string for Postgres.
	// Default: "data/rules.db"
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging for SQLite so readers keep
	// seeing the previous snapshot while a rebuild commits.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// InsertBatchSize is the number of rows per multi-row INSERT statement.
	// Default: 200
	InsertBatchSize int `yaml:"insert_batch_size"`
}

// SourcesConfig configures where and how edit distributions are fetched.
type SourcesConfig struct {
	// DownloadDir is where fetched distributions are written.
	// Default: "data/downloads"
	DownloadDir string `yaml:"download_dir"`

	// UserAgent is sent with every request to the publisher.
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds each individual HTTP request.
	// Default: 2m
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryInitialInterval is the first backoff delay.
	// Default: 1s
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`

	// RetryMaxInterval caps the backoff delay.
	// Default: 30s
	RetryMaxInterval time.Duration `yaml:"retry_max_interval"`

	// RequestsPerSecond limits request rate against the publisher.
	// Default: 2
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the rate limiter burst size.
	// Default: 4
	Burst int `yaml:"burst"`

	// MaxEntryBytes caps how much of a single archive entry is buffered.
	// Default: 512MiB
	MaxEntryBytes int64 `yaml:"max_entry_bytes"`

	PTP SourceConfig `yaml:"ptp"`
	MUE SourceConfig `yaml:"mue"`
	AOC SourceConfig `yaml:"aoc"`
}

// SourceConfig configures one edit family's source.
type SourceConfig struct {
	// IndexURL is the publisher page listing downloadable distributions.
	IndexURL string `yaml:"index_url"`

	// LocalPath, when set, is read instead of locating and downloading.
	// It may be a zip archive or a single .xlsx/.csv/.txt file.
	LocalPath string `yaml:"local_path"`

	// Siblings fetches every candidate tied with the best one, for
	// releases split across several files.
	// Default: false
	Siblings bool `yaml:"siblings"`
}

// MirrorConfig configures S3-compatible archival of downloaded distributions.
type MirrorConfig struct {
	// Enabled turns mirroring on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Prefix is prepended to every object key.
	// Default: "distributions"
	Prefix string `yaml:"prefix"`
}

// RefreshConfig controls rebuild triggers started by the serve command.
type RefreshConfig struct {
	// Schedule is a standard cron expression. Empty disables scheduling.
	// Example: "0 4 * * 1" (Mondays at 04:00)
	Schedule string `yaml:"schedule"`

	// WatchLocal rebuilds when configured local source files change.
	// Default: false
	WatchLocal bool `yaml:"watch_local"`

	// Debounce is the quiet period before a file-triggered rebuild.
	// Default: 2s
	Debounce time.Duration `yaml:"debounce"`

	// BuildTimeout bounds a single triggered rebuild.
	// Default: 30m
	BuildTimeout time.Duration `yaml:"build_timeout"`
}

// ValidationConfig contains claim validation policy.
type ValidationConfig struct {
	// BypassModifiers satisfy a bypass-required PTP edit.
	// Default: ["25", "59", "91", "XE", "XP", "XS", "XU"]
	BypassModifiers []string `yaml:"bypass_modifiers"`

	// RequireDiagnosisDecimal rejects bare 3-character ICD-10-CM categories.
	// Default: false
	RequireDiagnosisDecimal bool `yaml:"require_diagnosis_decimal"`

	// CacheSize is the number of cached rule lookups. Zero disables caching.
	// Default: 4096
	CacheSize int `yaml:"cache_size"`

	// CacheTTL bounds how long a cached lookup may be served.
	// Default: 1m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout for incoming requests.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout for responses.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the graceful shutdown budget.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// File additionally writes JSON logs to this path when set.
	File string `yaml:"file"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes metrics on the ops server.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "claimforge"
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry tracing of builds and validations.
type TracingConfig struct {
	// Enabled exports spans over OTLP gRPC.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces kept by the ratio sampler.
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "claimforge"
	ServiceName string `yaml:"service_name"`
}
