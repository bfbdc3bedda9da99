// Package app wires all Solace subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds the turn pipeline and the
// HTTP server from the config, Run serves until the context is cancelled while
// applying config file changes, and Shutdown releases provider resources.
//
// For testing, pass a hand-built [Providers] with mock backends and inject
// metrics through [WithMetrics].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/solace/internal/config"
	"github.com/MrWong99/solace/internal/health"
	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/internal/respond"
	"github.com/MrWong99/solace/internal/sentiment"
	"github.com/MrWong99/solace/internal/server"
	"github.com/MrWong99/solace/internal/turn"
	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/tts"
)

// shutdownTimeout bounds how long in-flight requests may finish once Run's
// context is cancelled.
const shutdownTimeout = 15 * time.Second

// App owns all subsystem lifetimes and serves conversation turns.
type App struct {
	providers      *Providers
	metrics        *observe.Metrics
	metricsHandler http.Handler
	logLevel       *slog.LevelVar
	configPath     string

	// cfg is the config the current pipeline was built from.
	cfg      atomic.Pointer[config.Config]
	pipeline atomic.Pointer[turn.Pipeline]
	server   *server.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Compile-time interface assertion.
var _ server.Processor = (*App)(nil)

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics recorded by the pipeline, providers and HTTP
// middleware. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler overrides the handler mounted at GET /metrics.
// Default: the Prometheus exporter's [promhttp.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogLevel hands the app the level variable of the process logger so
// log level changes in the config file apply without a restart.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithConfigWatch makes Run watch path and apply changes as they are saved.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg and providers. The App takes ownership of
// providers and closes them in Shutdown.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: an stt provider is required")
	}
	a := &App{providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = promhttp.Handler()
	}
	if a.logLevel != nil {
		a.logLevel.Set(cfg.Server.LogLevel.SlogLevel())
	}

	// ── 1. Turn pipeline ─────────────────────────────────────────────────
	p, err := a.buildPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	a.pipeline.Store(p)
	a.cfg.Store(cfg)

	// ── 2. Readiness ─────────────────────────────────────────────────────
	checkers := []health.Checker{availability("stt", providers.STT, false)}
	if providers.LLM != nil {
		checkers = append(checkers, availability("llm", providers.LLM, true))
	}
	if providers.TTS != nil {
		checkers = append(checkers, availability("tts", providers.TTS, true))
	}

	// ── 3. HTTP server ───────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithMetrics(a.metrics),
		server.WithHealth(health.New(checkers...)),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithTurnTimeout(cfg.Server.TurnTimeout),
		server.WithReplyCache(cfg.Server.ReplyCacheSize),
	}
	if cfg.Observability.Metrics() {
		srvOpts = append(srvOpts, server.WithMetricsHandler(a.metricsHandler))
	}
	a.server, err = server.New(a, srvOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.closers = append(a.closers, providers.Close)
	return a, nil
}

// buildPipeline assembles a turn pipeline from cfg around the app's providers.
func (a *App) buildPipeline(cfg *config.Config) (*turn.Pipeline, error) {
	ingest := audio.NewIngester(audio.WithMaxDuration(cfg.Audio.MaxDuration))
	classifier := sentiment.New(sentiment.WithPhoneticMatching(cfg.Sentiment.PhoneticMatching))

	genOpts := []respond.Option{
		respond.WithTemperature(cfg.Response.Temperature),
		respond.WithMaxTokens(cfg.Response.MaxTokens),
		respond.WithFallbackMessage(cfg.Response.FallbackMessage),
		respond.WithMetrics(a.metrics),
	}
	if cfg.Response.Mode == config.ResponseLLM {
		if a.providers.LLM == nil {
			return nil, errors.New("response mode llm requires an llm provider")
		}
		genOpts = append(genOpts, respond.WithLLM(a.providers.LLM))
	}

	turnOpts := []turn.Option{
		turn.WithMetrics(a.metrics),
		turn.WithMaxConcurrent(cfg.Server.MaxConcurrentTurns),
		turn.WithQueueTimeout(cfg.Server.QueueTimeout),
	}
	if a.providers.TTS != nil {
		turnOpts = append(turnOpts, turn.WithSynthesizer(a.providers.TTS, configVoiceProfile(cfg)))
	}

	return turn.New(ingest, a.providers.STT, classifier, respond.New(genOpts...), turnOpts...)
}

// ─── Serving ─────────────────────────────────────────────────────────────────

// ProcessTurn runs one turn on the current pipeline. A pipeline swapped in by
// a config change only affects turns that start afterwards.
func (a *App) ProcessTurn(ctx context.Context, raw []byte, format audio.Format) (*turn.Turn, error) {
	return a.pipeline.Load().ProcessTurn(ctx, raw, format)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Config returns the config the current pipeline was built from.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Run serves HTTP and blocks until ctx is cancelled, then drains in-flight
// requests. When a config path was given, saved changes are applied while
// running.
func (a *App) Run(ctx context.Context) error {
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, func(_, next *config.Config) { a.Apply(next) })
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		defer w.Stop()
	}

	cfg := a.cfg.Load()
	var certFile, keyFile string
	if cfg.Server.TLS != nil {
		certFile, keyFile = cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	}

	slog.Info("app running",
		"listen_addr", cfg.Server.ListenAddr,
		"tls", certFile != "",
		"response_mode", cfg.Response.Mode,
		"synthesis", a.pipeline.Load().Synthesizes(),
	)
	return a.server.ListenAndServe(ctx, cfg.Server.ListenAddr, certFile, keyFile, shutdownTimeout)
}

// Apply moves the app to next. The log level and pipeline settings take
// effect immediately; sections that are only read at startup are logged.
// When the new pipeline cannot be built the previous one stays in place.
func (a *App) Apply(next *config.Config) {
	d := config.Diff(a.cfg.Load(), next)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("config: log level changed", "level", d.NewLogLevel)
	}

	if d.PipelineChanged {
		p, err := a.buildPipeline(next)
		if err != nil {
			slog.Error("config: keeping previous pipeline", "err", err)
			return
		}
		a.pipeline.Store(p)
		slog.Info("config: pipeline rebuilt")
	}

	for _, section := range d.RestartRequired {
		slog.Warn("config: change takes effect after restart", "section", section)
	}
	a.cfg.Store(next)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// configVoiceProfile converts the voice section to a tts.VoiceProfile.
func configVoiceProfile(cfg *config.Config) tts.VoiceProfile {
	return tts.VoiceProfile{
		ID:          cfg.Voice.VoiceID,
		Name:        cfg.Voice.Name,
		Provider:    cfg.Providers.TTS.Name,
		SpeedFactor: cfg.Voice.SpeedFactor,
	}
}

// availability returns a readiness checker for p. Providers that cannot
// report breaker state are always considered available.
func availability(name string, p any, optional bool) health.Checker {
	if av, ok := p.(interface{ Available() bool }); ok {
		return health.Available(name, av.Available, optional)
	}
	return health.Available(name, func() bool { return true }, optional)
}
