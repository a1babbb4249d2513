// Package metrics provides Prometheus metrics collection for ForgeFS
// components.
//
// All metrics are optional. If the registry is never initialized, the
// constructors return no-op implementations with zero overhead, so the
// filesystem layer can run with or without collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	fsMetrics := metrics.NewFSMetrics()
//	walkMetrics := metrics.NewWalkMetrics()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all ForgeFS metrics.
	// Write-once through registryOnce, read-many afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// It must be called before creating any metrics instances and is safe to
// call multiple times; subsequent calls are ignored. If never called,
// GetRegistry returns nil and all constructors return no-op
// implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
