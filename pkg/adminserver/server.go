// Package adminserver exposes engine health and metrics over HTTP. It is
// observability-only: there is no query or transaction surface here, by
// design the engine's own Go API is the only way to read or write data.
// Routing and middleware follow pkg/server/server.go's chi setup.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hekaton-db/hekaton/pkg/metrics"
)

// EngineStats is whatever the admin server needs from the engine to
// answer /_stats; it decouples this package from pkg/engine to avoid an
// import cycle (pkg/engine wires adminserver, not the reverse).
type EngineStats struct {
	ActiveTransactions int    `json:"active_transactions"`
	RowCount           int    `json:"row_count"`
	OldestActiveBeginTS uint64 `json:"oldest_active_begin_ts,omitempty"`
}

// StatsProvider supplies a live EngineStats snapshot on demand.
type StatsProvider func() EngineStats

// Config configures Server.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	EnableLogging bool
}

// DefaultConfig returns sane defaults for the admin server.
func DefaultConfig() *Config {
	return &Config{
		Host:          "127.0.0.1",
		Port:          9090,
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		IdleTimeout:   30 * time.Second,
		EnableLogging: true,
	}
}

// Server is the admin-only HTTP server: /_health, /_stats, /_metrics.
type Server struct {
	config    *Config
	router    *chi.Mux
	httpSrv   *http.Server
	startTime time.Time

	stats        StatsProvider
	promExporter *metrics.PrometheusExporter
}

// New creates a Server backed by collector (and, optionally,
// resourceTracker) for /_metrics and stats for /_stats.
func New(config *Config, collector *metrics.Collector, resourceTracker *metrics.ResourceTracker, stats StatsProvider) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:       config,
		router:       chi.NewRouter(),
		startTime:    time.Now(),
		stats:        stats,
		promExporter: metrics.NewPrometheusExporter(collector, resourceTracker),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/_stats", s.handleStats)
	s.router.Get("/_metrics", s.handleMetrics)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.stats == nil {
		json.NewEncoder(w).Encode(EngineStats{})
		return
	}
	json.NewEncoder(w).Encode(s.stats())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server. It blocks until Shutdown is
// called from another goroutine or the server fails to start.
func (s *Server) ListenAndServe() error {
	fmt.Printf("🚀 admin server listening on %s\n", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
