// Package server exposes the conversation pipeline over HTTP.
//
// Routes:
//
//   - POST /analyze: multipart upload (field "audio") processed as one turn.
//   - GET /replies/{id}.wav: synthesized reply audio of a recent turn.
//   - GET /metrics: Prometheus scrape endpoint, when enabled.
//   - GET /healthz, GET /readyz: liveness and readiness probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MrWong99/solace/internal/health"
	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/internal/turn"
	"github.com/MrWong99/solace/pkg/audio"
)

// Defaults used when the corresponding option is not given.
const (
	defaultMaxUploadBytes = 10 << 20
	defaultTurnTimeout    = 30 * time.Second
	defaultRetryAfter     = 2 * time.Second

	// formMemory is how much of a multipart form is buffered in memory
	// before parts spill to temporary files.
	formMemory = 4 << 20
)

// Processor runs one conversation turn. *turn.Pipeline implements it.
type Processor interface {
	ProcessTurn(ctx context.Context, raw []byte, format audio.Format) (*turn.Turn, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts the health handler's probes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMaxUploadBytes bounds the request body of POST /analyze.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithTurnTimeout bounds how long one turn may run.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.turnTimeout = d
		}
	}
}

// WithRetryAfter sets the Retry-After hint sent when the pipeline is busy.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

// WithReplyCache keeps the synthesized audio of the n most recent turns for
// GET /replies/{id}.wav. Zero disables the endpoint's storage.
func WithReplyCache(n int) Option {
	return func(s *Server) { s.replyCacheSize = n }
}

// Server is the HTTP front end. It is safe for concurrent use.
type Server struct {
	proc           Processor
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	maxUpload      int64
	turnTimeout    time.Duration
	retryAfter     time.Duration
	replyCacheSize int

	// replies is nil when the reply cache is disabled.
	replies *lru.Cache[string, []byte]
	router  chi.Router
}

// New creates a [Server] that runs turns on proc.
func New(proc Processor, opts ...Option) (*Server, error) {
	if proc == nil {
		return nil, errors.New("server: processor is nil")
	}
	s := &Server{
		proc:        proc,
		maxUpload:   defaultMaxUploadBytes,
		turnTimeout: defaultTurnTimeout,
		retryAfter:  defaultRetryAfter,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.replyCacheSize > 0 {
		c, err := lru.New[string, []byte](s.replyCacheSize)
		if err != nil {
			return nil, fmt.Errorf("server: reply cache: %w", err)
		}
		s.replies = c
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/replies/{id}.wav", s.handleReply)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout. TLS is used when both certFile and
// keyFile are set.
func (s *Server) ListenAndServe(ctx context.Context, addr, certFile, keyFile string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return nil
}
