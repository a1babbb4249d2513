package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WalkMetrics provides observability for metadata-tree builds.
type WalkMetrics interface {
	// RecordWalk records one completed tree build: its duration, the
	// number of leaves in the resulting tree, and the outcome.
	RecordWalk(duration time.Duration, leaves int, err error)
}

type walkMetrics struct {
	walksTotal   *prometheus.CounterVec
	walkDuration prometheus.Histogram
	walkLeaves   prometheus.Histogram
}

// NewWalkMetrics creates a Prometheus-backed WalkMetrics instance, or a
// no-op one when the registry was never initialized.
func NewWalkMetrics() WalkMetrics {
	if !IsEnabled() {
		return &noopWalkMetrics{}
	}

	reg := GetRegistry()

	return &walkMetrics{
		walksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forgefs_walk_builds_total",
				Help: "Total metadata-tree builds by status",
			},
			[]string{"status"},
		),
		walkDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forgefs_walk_duration_seconds",
				Help:    "Duration of metadata-tree builds in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		walkLeaves: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forgefs_walk_leaves",
				Help:    "Leaf count of completed metadata trees",
				Buckets: prometheus.ExponentialBuckets(1, 8, 8),
			},
		),
	}
}

func (m *walkMetrics) RecordWalk(duration time.Duration, leaves int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.walksTotal.WithLabelValues(status).Inc()
	if err == nil {
		m.walkDuration.Observe(duration.Seconds())
		m.walkLeaves.Observe(float64(leaves))
	}
}

// noopWalkMetrics is a no-op implementation of WalkMetrics.
type noopWalkMetrics struct{}

func (noopWalkMetrics) RecordWalk(duration time.Duration, leaves int, err error) {}
