package config

import "time"

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreDriver          = "sqlite"
	DefaultStoreDSN             = "data/rules.db"
	DefaultStoreMaxOpenConns    = 10
	DefaultStoreMaxIdleConns    = 5
	DefaultStoreWALMode         = true
	DefaultStoreBusyTimeout     = 5 * time.Second
	DefaultStoreInsertBatchSize = 200

	// Source defaults
	DefaultDownloadDir          = "data/downloads"
	DefaultUserAgent            = "claimforge-compliance/0.1 (+regulatory edit refresh)"
	DefaultSourceTimeout        = 2 * time.Minute
	DefaultSourceMaxRetries     = 3
	DefaultRetryInitialInterval = 1 * time.Second
	DefaultRetryMaxInterval     = 30 * time.Second
	DefaultRequestsPerSecond    = 2.0
	DefaultBurst                = 4
	DefaultMaxEntryBytes        = int64(512 << 20)

	DefaultPTPIndexURL = "https://www.cms.gov/medicare/coding-billing/national-correct-coding-initiative-ncci-edits/medicare-ncci-procedure-procedure-ptp-edits"
	DefaultMUEIndexURL = "https://www.cms.gov/medicare/coding-billing/national-correct-coding-initiative-ncci-edits/medicare-ncci-medically-unlikely-edits"
	DefaultAOCIndexURL = "https://www.cms.gov/medicare/coding-billing/national-correct-coding-initiative-ncci-edits/medicare-ncci-add-code-edits"

	// Mirror defaults
	DefaultMirrorRegion = "us-east-1"
	DefaultMirrorPrefix = "distributions"

	// Refresh defaults
	DefaultRefreshDebounce     = 2 * time.Second
	DefaultRefreshBuildTimeout = 30 * time.Minute

	// Validation defaults
	DefaultValidationCacheSize = 4096
	DefaultValidationCacheTTL  = time.Minute

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "claimforge"

	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampler     = "always"
	DefaultTracingServiceName = "claimforge"
)

// DefaultBypassModifiers returns the modifiers that satisfy a bypass-required
// PTP edit when no list is configured.
func DefaultBypassModifiers() []string {
	return []string{"25", "59", "91", "XE", "XP", "XS", "XU"}
}

// NewDefaultConfig returns a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{WALMode: DefaultStoreWALMode},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans that
// default to true are only set by NewDefaultConfig, since a zero value read
// from YAML may be an explicit false.
func ApplyDefaults(cfg *Config) {
	applyStoreDefaults(&cfg.Store)
	applySourcesDefaults(&cfg.Sources)
	applyMirrorDefaults(&cfg.Mirror)
	applyRefreshDefaults(&cfg.Refresh)
	applyValidationDefaults(&cfg.Validation)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Driver == "" {
		cfg.Driver = DefaultStoreDriver
	}
	if cfg.DSN == "" {
		cfg.DSN = DefaultStoreDSN
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = DefaultStoreMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultStoreMaxIdleConns
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultStoreBusyTimeout
	}
	if cfg.InsertBatchSize == 0 {
		cfg.InsertBatchSize = DefaultStoreInsertBatchSize
	}
}

func applySourcesDefaults(cfg *SourcesConfig) {
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = DefaultDownloadDir
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultSourceTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultSourceMaxRetries
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if cfg.RetryMaxInterval == 0 {
		cfg.RetryMaxInterval = DefaultRetryMaxInterval
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.MaxEntryBytes == 0 {
		cfg.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if cfg.PTP.IndexURL == "" {
		cfg.PTP.IndexURL = DefaultPTPIndexURL
	}
	if cfg.MUE.IndexURL == "" {
		cfg.MUE.IndexURL = DefaultMUEIndexURL
	}
	if cfg.AOC.IndexURL == "" {
		cfg.AOC.IndexURL = DefaultAOCIndexURL
	}
}

func applyMirrorDefaults(cfg *MirrorConfig) {
	if cfg.Region == "" {
		cfg.Region = DefaultMirrorRegion
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultMirrorPrefix
	}
}

func applyRefreshDefaults(cfg *RefreshConfig) {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultRefreshDebounce
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = DefaultRefreshBuildTimeout
	}
}

func applyValidationDefaults(cfg *ValidationConfig) {
	if len(cfg.BypassModifiers) == 0 {
		cfg.BypassModifiers = DefaultBypassModifiers()
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultValidationCacheSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultValidationCacheTTL
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
}
