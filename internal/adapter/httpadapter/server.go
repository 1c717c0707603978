package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobService submits detection requests and looks them up.
type JobService interface {
	Submit(ctx context.Context, params domain.QueryParameters) (string, error)
	Get(ctx context.Context, id string) (job.Job, error)
}

// Server exposes the detection API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer   *http.Server
	jobs         JobService
	clock        clockwork.Clock
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces the real clock used by the status stream.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithStatusPollInterval sets how often the status stream checks a job.
func WithStatusPollInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pollInterval = d
	}
}

// NewServer creates an HTTP server with the /api/v1 routes and /healthz,
// /readyz, and /metrics.
func NewServer(addr string, jobs JobService, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		jobs:         jobs,
		clock:        clockwork.NewRealClock(),
		pollInterval: 500 * time.Millisecond,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("POST /api/v1/detect", s.handleDetect)
	mux.HandleFunc("POST /api/v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /api/v1/status/{request_id}", s.handleStatus)
	mux.HandleFunc("GET /api/v1/results/{request_id}", s.handleResults)
	mux.HandleFunc("GET /api/v1/ws/status/{request_id}", s.handleStatusStream)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
