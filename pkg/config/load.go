package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "CLAIMFORGE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields absent from the file keep their defaults. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration over the defaults without validating it.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named CLAIMFORGE_SECTION_FIELD (for example
// CLAIMFORGE_STORE_DSN). Environment variables always win over the file.
//
// When optional is true a missing file is not an error and defaults are used
// as the base instead.
func LoadConfigWithEnvOverrides(path string, optional bool) (*Config, error) {
	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		cfg = NewDefaultConfig()
	default:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Store overrides
	envString("STORE_DRIVER", &cfg.Store.Driver)
	envString("STORE_DSN", &cfg.Store.DSN)
	envInt("STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns)
	envBool("STORE_WAL_MODE", &cfg.Store.WALMode)
	envDuration("STORE_BUSY_TIMEOUT", &cfg.Store.BusyTimeout)

	// Source overrides
	envString("SOURCES_DOWNLOAD_DIR", &cfg.Sources.DownloadDir)
	envString("SOURCES_USER_AGENT", &cfg.Sources.UserAgent)
	envDuration("SOURCES_TIMEOUT", &cfg.Sources.Timeout)
	envInt("SOURCES_MAX_RETRIES", &cfg.Sources.MaxRetries)
	envFloat("SOURCES_REQUESTS_PER_SECOND", &cfg.Sources.RequestsPerSecond)
	for name, src := range map[string]*SourceConfig{
		"PTP": &cfg.Sources.PTP,
		"MUE": &cfg.Sources.MUE,
		"AOC": &cfg.Sources.AOC,
	} {
		envString("SOURCES_"+name+"_INDEX_URL", &src.IndexURL)
		envString("SOURCES_"+name+"_LOCAL_PATH", &src.LocalPath)
		envBool("SOURCES_"+name+"_SIBLINGS", &src.Siblings)
	}

	// Mirror overrides
	envBool("MIRROR_ENABLED", &cfg.Mirror.Enabled)
	envString("MIRROR_ENDPOINT", &cfg.Mirror.Endpoint)
	envString("MIRROR_REGION", &cfg.Mirror.Region)
	envString("MIRROR_ACCESS_KEY", &cfg.Mirror.AccessKey)
	envString("MIRROR_SECRET_KEY", &cfg.Mirror.SecretKey)
	envString("MIRROR_BUCKET", &cfg.Mirror.Bucket)
	envBool("MIRROR_USE_SSL", &cfg.Mirror.UseSSL)

	// Refresh overrides
	envString("REFRESH_SCHEDULE", &cfg.Refresh.Schedule)
	envBool("REFRESH_WATCH_LOCAL", &cfg.Refresh.WatchLocal)

	// Validation overrides
	if val := os.Getenv(EnvPrefix + "VALIDATION_BYPASS_MODIFIERS"); val != "" {
		var mods []string
		for _, m := range strings.Split(val, ",") {
			if m = strings.TrimSpace(m); m != "" {
				mods = append(mods, m)
			}
		}
		if len(mods) > 0 {
			cfg.Validation.BypassModifiers = mods
		}
	}
	envBool("VALIDATION_REQUIRE_DIAGNOSIS_DECIMAL", &cfg.Validation.RequireDiagnosisDecimal)
	envInt("VALIDATION_CACHE_SIZE", &cfg.Validation.CacheSize)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envString("TELEMETRY_LOGGING_FILE", &cfg.Telemetry.Logging.File)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
