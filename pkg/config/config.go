package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ForgeFS configuration.
//
// This structure captures all configurable aspects of the filesystem
// layer including:
//   - Logging configuration
//   - Handle factory limits (workers, open-handle cap)
//   - Scan definition (root directory, ignore patterns)
//   - Digest selection and type-specific configuration
//   - Watch mode behavior (debounce, rebuild rate limiting)
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FORGEFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Digest Configuration Pattern:
// Each digest type defines its own option map. The Config struct contains
// type-specific sections (e.g., digest.blake3) and only the section
// matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// FS contains handle factory limits
	FS FSConfig `mapstructure:"fs" yaml:"fs"`

	// Scan defines what gets scanned and what gets skipped
	Scan ScanConfig `mapstructure:"scan" yaml:"scan"`

	// Digest specifies the digest type and type-specific configuration
	Digest DigestConfig `mapstructure:"digest" yaml:"digest"`

	// Watch controls continual tree behavior in watch mode
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`

	// Metrics controls Prometheus metrics exposure
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// FSConfig contains handle factory limits.
type FSConfig struct {
	// Workers is the number of syscall worker goroutines
	// 0 selects one worker per CPU
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gte=0"`

	// MaxOpenHandles caps concurrently open handles
	// 0 selects half of the process descriptor limit
	MaxOpenHandles int `mapstructure:"max_open_handles" yaml:"max_open_handles" validate:"gte=0"`
}

// ScanConfig defines the scan target.
type ScanConfig struct {
	// Root is the directory scans start from
	Root string `mapstructure:"root" yaml:"root" validate:"required"`

	// Ignore lists glob patterns excluded from scans
	// Patterns match slash-separated paths relative to Root
	// (e.g., "**/*.o", "target/**")
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
}

// DigestConfig specifies digest configuration.
//
// The Type field determines which digest implementation is used.
// Only the corresponding type-specific configuration section is used.
type DigestConfig struct {
	// Type specifies which digest to compute during scans
	// Valid values: none, blake3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none blake3"`

	// Blake3 contains BLAKE3-specific configuration
	// Only used when Type = "blake3"
	Blake3 map[string]any `mapstructure:"blake3" yaml:"blake3"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Enabled turns on watch mode after the initial scan
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Debounce is the quiet period required after a filesystem event
	// before a rebuild starts
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" validate:"gte=0"`

	// RebuildsPerSecond caps the sustained rebuild rate
	// 0 disables the cap
	RebuildsPerSecond float64 `mapstructure:"rebuilds_per_second" yaml:"rebuilds_per_second" validate:"gte=0"`

	// Burst is the rebuild burst allowance when the cap is active
	Burst int `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port to serve metrics on
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FORGEFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use FORGEFS_ prefix and underscores
	// Example: FORGEFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FORGEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/forgefs/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		// An explicitly named file that does not exist falls back to
		// defaults the same way (viper reports it as a plain path error)
		if configPath != "" && os.IsNotExist(err) {
			return nil
		}
		// Other errors are problems
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "forgefs")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "forgefs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
