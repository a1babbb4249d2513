package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgebuild/forgefs/internal/logger"
)

// Server exposes the global registry over HTTP for Prometheus to scrape.
//
// GET /metrics serves the metrics in text format; GET / serves a small
// index page pointing at it. When collection is disabled the /metrics
// endpoint answers 503 instead.
type Server struct {
	server          *http.Server
	port            int
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on (default: 9090)
	Port int

	// ShutdownTimeout bounds how long a graceful shutdown may take once
	// the serving context is cancelled (default: 5s)
	ShutdownTimeout time.Duration
}

// NewServer creates a metrics server in a stopped state. Call Start to
// begin serving.
func NewServer(config ServerConfig) *Server {
	if config.Port <= 0 {
		config.Port = 9090
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	mux := http.NewServeMux()

	if IsEnabled() {
		mux.Handle("/metrics", promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		logger.Debug("metrics endpoint registered at /metrics")
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintln(w, "Metrics collection is disabled")
		})
		logger.Debug("metrics collection disabled")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>ForgeFS Metrics</title></head>
<body>
<h1>ForgeFS Metrics Server</h1>
<p>Prometheus metrics are served at <a href="/metrics">/metrics</a>.</p>
<p>Point your Prometheus scraper at <code>http://&lt;host&gt;:%d/metrics</code>.</p>
</body>
</html>
`, config.Port)
	})

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		port:            config.Port,
		shutdownTimeout: config.ShutdownTimeout,
	}
}

// Start serves until ctx is cancelled or the listener fails. On
// cancellation it drains in-flight scrapes within the shutdown timeout
// and returns nil; a listener failure is returned as an error.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening on port %d", s.port)

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("metrics server shutting down")
		// The serving context is already cancelled; shutdown gets its
		// own deadline so draining is not cut short.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. It is safe to call more than once
// and concurrently with Start; only the first call does the work.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown: %w", err)
			logger.Error("metrics server shutdown error: %v", err)
			return
		}
		logger.Info("metrics server stopped")
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.port
}
