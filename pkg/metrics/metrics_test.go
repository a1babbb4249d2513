package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The registry is write-once per process, so the tests in this file
// share one lifecycle and depend on declaration order: no-op checks run
// before InitRegistry, and each Prometheus-backed constructor runs
// exactly once after it.

// ============================================================================
// Test Helper Functions
// ============================================================================

// histogramSampleCount gathers the global registry and returns the
// observation count of the named histogram family.
func histogramSampleCount(t *testing.T, name string) uint64 {
	t.Helper()

	families, err := GetRegistry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() == name {
			require.NotEmpty(t, mf.GetMetric())
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}

	t.Fatalf("metric family %q not found", name)
	return 0
}

// ============================================================================
// No-op Implementation Tests
// ============================================================================

func TestNoopMetricsAreSafe(t *testing.T) {
	t.Run("FSMetricsMethodsDoNotPanic", func(t *testing.T) {
		var m FSMetrics = noopFSMetrics{}
		m.RecordOpen("file", nil)
		m.RecordOpen("directory", errors.New("open failed"))
		m.RecordClose("explicit")
		m.RecordPermitWait(time.Millisecond)
		m.SetPermitsInUse(3)
		m.RecordBytesTransferred("read", 4096)
	})

	t.Run("WalkMetricsMethodsDoNotPanic", func(t *testing.T) {
		var m WalkMetrics = noopWalkMetrics{}
		m.RecordWalk(time.Second, 100, nil)
		m.RecordWalk(0, 0, errors.New("walk failed"))
	})
}

// ============================================================================
// Registry Lifecycle Tests
// ============================================================================

func TestRegistryLifecycle(t *testing.T) {
	t.Run("DisabledUntilInit", func(t *testing.T) {
		assert.False(t, IsEnabled())
		assert.Nil(t, GetRegistry())
	})

	t.Run("ConstructorsReturnNoopsWhenDisabled", func(t *testing.T) {
		assert.IsType(t, &noopFSMetrics{}, NewFSMetrics())
		assert.IsType(t, &noopWalkMetrics{}, NewWalkMetrics())
	})

	t.Run("InitEnablesCollection", func(t *testing.T) {
		InitRegistry()
		assert.True(t, IsEnabled())
		require.NotNil(t, GetRegistry())
	})

	t.Run("InitIsIdempotent", func(t *testing.T) {
		reg := GetRegistry()
		InitRegistry()
		assert.Same(t, reg, GetRegistry())
	})
}

// ============================================================================
// FSMetrics Tests
// ============================================================================

func TestFSMetricsRecording(t *testing.T) {
	m, ok := NewFSMetrics().(*fsMetrics)
	require.True(t, ok, "expected Prometheus-backed implementation after InitRegistry")

	t.Run("RecordOpenCountsByKindAndStatus", func(t *testing.T) {
		m.RecordOpen("file", nil)
		m.RecordOpen("file", nil)
		m.RecordOpen("file", errors.New("permission denied"))
		m.RecordOpen("directory", nil)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.opensTotal.WithLabelValues("file", "success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.opensTotal.WithLabelValues("file", "error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.opensTotal.WithLabelValues("directory", "success")))
	})

	t.Run("RecordCloseCountsByOutcome", func(t *testing.T) {
		m.RecordClose("explicit")
		m.RecordClose("dropped")
		m.RecordClose("dropped")

		assert.Equal(t, 1.0, testutil.ToFloat64(m.closesTotal.WithLabelValues("explicit")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.closesTotal.WithLabelValues("dropped")))
	})

	t.Run("SetPermitsInUseTracksGauge", func(t *testing.T) {
		m.SetPermitsInUse(7)
		assert.Equal(t, 7.0, testutil.ToFloat64(m.permitsInUse))

		m.SetPermitsInUse(0)
		assert.Equal(t, 0.0, testutil.ToFloat64(m.permitsInUse))
	})

	t.Run("RecordBytesTransferredAccumulates", func(t *testing.T) {
		m.RecordBytesTransferred("read", 4096)
		m.RecordBytesTransferred("read", 4096)
		m.RecordBytesTransferred("write", 512)

		assert.Equal(t, 8192.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("read")))
		assert.Equal(t, 512.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("write")))
	})

	t.Run("RecordPermitWaitObserves", func(t *testing.T) {
		before := histogramSampleCount(t, "forgefs_fs_permit_wait_seconds")
		m.RecordPermitWait(5 * time.Millisecond)
		assert.Equal(t, before+1, histogramSampleCount(t, "forgefs_fs_permit_wait_seconds"))
	})
}

// ============================================================================
// WalkMetrics Tests
// ============================================================================

func TestWalkMetricsRecording(t *testing.T) {
	m, ok := NewWalkMetrics().(*walkMetrics)
	require.True(t, ok, "expected Prometheus-backed implementation after InitRegistry")

	t.Run("SuccessfulWalkObservesDurationAndLeaves", func(t *testing.T) {
		m.RecordWalk(250*time.Millisecond, 1200, nil)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.walksTotal.WithLabelValues("success")))
		assert.Equal(t, uint64(1), histogramSampleCount(t, "forgefs_walk_duration_seconds"))
		assert.Equal(t, uint64(1), histogramSampleCount(t, "forgefs_walk_leaves"))
	})

	t.Run("FailedWalkCountsErrorWithoutObserving", func(t *testing.T) {
		m.RecordWalk(0, 0, errors.New("root vanished"))

		assert.Equal(t, 1.0, testutil.ToFloat64(m.walksTotal.WithLabelValues("error")))
		assert.Equal(t, uint64(1), histogramSampleCount(t, "forgefs_walk_duration_seconds"))
		assert.Equal(t, uint64(1), histogramSampleCount(t, "forgefs_walk_leaves"))
	})
}

// ============================================================================
// Registry Gather Tests
// ============================================================================

func TestRegistryGathersAllFamilies(t *testing.T) {
	families, err := GetRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"forgefs_fs_opens_total",
		"forgefs_fs_closes_total",
		"forgefs_fs_permit_wait_seconds",
		"forgefs_fs_permits_in_use",
		"forgefs_fs_bytes_transferred_total",
		"forgefs_walk_builds_total",
		"forgefs_walk_duration_seconds",
		"forgefs_walk_leaves",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

// ============================================================================
// Server Tests
// ============================================================================

func TestServer(t *testing.T) {
	t.Run("PortDefaultsWhenUnset", func(t *testing.T) {
		assert.Equal(t, 9090, NewServer(ServerConfig{}).Port())
		assert.Equal(t, 8081, NewServer(ServerConfig{Port: 8081}).Port())
	})

	t.Run("ServesMetricsEndpoint", func(t *testing.T) {
		srv := NewServer(ServerConfig{})

		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "forgefs_fs_opens_total")
	})

	t.Run("ServesIndexPage", func(t *testing.T) {
		srv := NewServer(ServerConfig{Port: 9191})

		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/metrics")
		assert.Contains(t, rec.Body.String(), "9191")
	})

	t.Run("UnknownPathIs404", func(t *testing.T) {
		srv := NewServer(ServerConfig{})

		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("StopIsIdempotent", func(t *testing.T) {
		srv := NewServer(ServerConfig{})

		ctx := context.Background()
		require.NoError(t, srv.Stop(ctx))
		require.NoError(t, srv.Stop(ctx))
	})
}
