package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Machine-dependent limits (workers, handle cap) stay zero and are
//     resolved by the filesystem layer itself
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyScanDefaults(&cfg.Scan)
	applyDigestDefaults(&cfg.Digest)
	applyWatchDefaults(&cfg.Watch)
	applyMetricsDefaults(&cfg.Metrics)

	// FS limits stay zero: the handle factory resolves 0 workers to one
	// per CPU and 0 max_open_handles to half the descriptor limit, both
	// of which depend on the machine the process lands on.
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyScanDefaults sets scan defaults.
func applyScanDefaults(cfg *ScanConfig) {
	if cfg.Root == "" {
		cfg.Root = "."
	}

	// If Ignore is nil, initialize to empty (nothing ignored)
	if cfg.Ignore == nil {
		cfg.Ignore = []string{}
	}
}

// applyDigestDefaults sets digest defaults and normalizes the type.
func applyDigestDefaults(cfg *DigestConfig) {
	if cfg.Type == "" {
		cfg.Type = "blake3"
	}
	// Normalize digest type to lowercase for consistent internal representation
	cfg.Type = strings.ToLower(cfg.Type)

	// Initialize maps if nil
	if cfg.Blake3 == nil {
		cfg.Blake3 = make(map[string]any)
	}
}

// applyWatchDefaults sets watch mode defaults.
func applyWatchDefaults(cfg *WatchConfig) {
	// Enabled defaults to false (single scan)

	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.RebuildsPerSecond == 0 {
		cfg.RebuildsPerSecond = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false

	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		FS:      FSConfig{},
		Scan: ScanConfig{
			Ignore: []string{},
		},
		Digest: DigestConfig{
			Blake3: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
