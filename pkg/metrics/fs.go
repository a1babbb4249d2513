package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FSMetrics provides observability for the handle factory: opens, closes,
// permit pressure, and bytes moved through file handles.
//
// Implementations must be safe for concurrent use. If metrics are not
// enabled, NewFSMetrics returns a no-op implementation with zero overhead.
type FSMetrics interface {
	// RecordOpen records one handle-open attempt by kind ("file" or
	// "directory") and outcome.
	RecordOpen(kind string, err error)

	// RecordClose records one handle release. Outcome is "explicit" for
	// a Close call, "dropped" for a handle drained by the deferred close
	// worker.
	RecordClose(outcome string)

	// RecordPermitWait records how long one open waited for a permit.
	RecordPermitWait(d time.Duration)

	// SetPermitsInUse updates the number of permits currently held.
	SetPermitsInUse(count int)

	// RecordBytesTransferred records bytes read or written through file
	// handles. Direction is "read" or "write".
	RecordBytesTransferred(direction string, bytes int64)
}

type fsMetrics struct {
	opensTotal       *prometheus.CounterVec
	closesTotal      *prometheus.CounterVec
	permitWait       prometheus.Histogram
	permitsInUse     prometheus.Gauge
	bytesTransferred *prometheus.CounterVec
}

// NewFSMetrics creates a Prometheus-backed FSMetrics instance, or a no-op
// one when the registry was never initialized.
func NewFSMetrics() FSMetrics {
	if !IsEnabled() {
		return &noopFSMetrics{}
	}

	reg := GetRegistry()

	return &fsMetrics{
		opensTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forgefs_fs_opens_total",
				Help: "Total handle opens by kind and status",
			},
			[]string{"kind", "status"},
		),
		closesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forgefs_fs_closes_total",
				Help: "Total handle releases by outcome",
			},
			[]string{"outcome"},
		),
		permitWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "forgefs_fs_permit_wait_seconds",
				Help: "Time spent waiting for an open-handle permit",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
		),
		permitsInUse: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "forgefs_fs_permits_in_use",
				Help: "Open-handle permits currently held",
			},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forgefs_fs_bytes_transferred_total",
				Help: "Total bytes moved through file handles",
			},
			[]string{"direction"}, // read or write
		),
	}
}

func (m *fsMetrics) RecordOpen(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.opensTotal.WithLabelValues(kind, status).Inc()
}

func (m *fsMetrics) RecordClose(outcome string) {
	m.closesTotal.WithLabelValues(outcome).Inc()
}

func (m *fsMetrics) RecordPermitWait(d time.Duration) {
	m.permitWait.Observe(d.Seconds())
}

func (m *fsMetrics) SetPermitsInUse(count int) {
	m.permitsInUse.Set(float64(count))
}

func (m *fsMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

// noopFSMetrics is a no-op implementation of FSMetrics.
type noopFSMetrics struct{}

func (noopFSMetrics) RecordOpen(kind string, err error)                {}
func (noopFSMetrics) RecordClose(outcome string)                       {}
func (noopFSMetrics) RecordPermitWait(d time.Duration)                 {}
func (noopFSMetrics) SetPermitsInUse(count int)                        {}
func (noopFSMetrics) RecordBytesTransferred(direction string, b int64) {}
