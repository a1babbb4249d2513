package config

import (
	"github.com/forgebuild/forgefs/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FS is the handle factory recorder (never nil, uses noop if disabled)
	FS metrics.FSMetrics

	// Walk is the tree walk recorder (never nil, uses noop if disabled)
	Walk metrics.WalkMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed recorders for the filesystem layer
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op recorders (zero overhead)
//
// The Prometheus-backed recorders register their collectors on creation,
// so InitializeMetrics must run at most once per process.
//
// Parameters:
//   - cfg: The complete ForgeFS configuration
//
// Returns:
//   - MetricsResult containing all metrics components
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		// Metrics disabled - recorders come back as no-ops
		return &MetricsResult{
			Server: nil,
			FS:     metrics.NewFSMetrics(),
			Walk:   metrics.NewWalkMetrics(),
		}
	}

	// Initialize global Prometheus registry
	metrics.InitRegistry()

	// Create metrics HTTP server
	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server: server,
		FS:     metrics.NewFSMetrics(),
		Walk:   metrics.NewWalkMetrics(),
	}
}
