// Package server binds the transports, the dispatch engine, and the kernel
// into one HTTP process. The resumable transport lives on /endpoint, the
// push-only one on /stream and /message, and Prometheus metrics on /metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tailored-agentic-units/conduit/observability"
	"github.com/tailored-agentic-units/conduit/transport"
)

// Server is the assembled process: HTTP listener, session registry, and the
// session sweeper.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	observer observability.Observer
	engine   *Engine
	registry *transport.Registry
	httpSrv  *http.Server
	sweepCh  chan struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// New assembles a Server from configuration.
func New(cfg Config, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  slog.Default(),
		sweepCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	promReg := prometheus.NewRegistry()
	// The config-named observer carries the logging side; "slog" (the
	// default) binds to the server's own logger rather than the registry's
	// default-logger instance so WithLogger stays honored.
	base := observability.Observer(observability.NewSlogObserver(s.logger))
	if cfg.Observer != "" && cfg.Observer != "slog" {
		named, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			s.logger.Warn("unknown observer, using slog", "name", cfg.Observer)
		} else {
			base = named
		}
	}
	s.observer = observability.NewMultiObserver(base, observability.NewMetricsObserver(promReg))

	s.registry = transport.NewRegistry(transport.RegistryConfig{
		MaxSessions:    cfg.MaxSessions,
		EventRetention: cfg.EventRetention,
		CallTimeout:    cfg.CallTimeout,
	})
	promReg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "conduit_active_sessions",
			Help: "Number of currently attached sessions.",
		},
		func() float64 { return float64(s.registry.Len()) },
	))

	s.engine = NewEngine(cfg,
		WithEngineObserver(s.observer),
		WithEngineLogger(s.logger),
	)

	streamable := transport.NewStreamableHandler(s.registry, s.engine,
		transport.WithStreamableObserver(s.observer),
		transport.WithKeepalive(cfg.Keepalive),
	)
	sse := transport.NewSSEHandler(s.registry, s.engine, "/message",
		transport.WithSSEObserver(s.observer),
		transport.WithSSEKeepalive(cfg.Keepalive),
	)

	mux := http.NewServeMux()
	mux.Handle("/endpoint", streamable)
	mux.HandleFunc("/stream", sse.HandleStream)
	mux.HandleFunc("/message", sse.HandleMessage)
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpSrv = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     withRequestLogging(s.logger, mux),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Registry exposes the session registry, mainly for tests and diagnostics.
func (s *Server) Registry() *transport.Registry { return s.registry }

// Start runs the HTTP listener and the idle-session sweeper. It blocks until
// Stop is called or the listener fails.
func (s *Server) Start() error {
	go s.sweepLoop()

	s.logger.Info("server listening", "addr", s.cfg.ListenAddr)
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains the server: new requests are rejected with a shutting-down
// error, every session terminates so open streams unwind, and the listener
// shuts down within the configured grace period.
func (s *Server) Stop(ctx context.Context) error {
	s.engine.Drain()
	close(s.sweepCh)

	for _, sess := range s.registry.Snapshot() {
		sess.Terminate()
		s.registry.Remove(sess.ID())
	}

	if s.cfg.ShutdownGrace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownGrace)
		defer cancel()
	}
	return s.httpSrv.Shutdown(ctx)
}

// sweepLoop terminates sessions whose clients have gone quiet for longer
// than the idle timeout. Resumable clients that come back afterwards get the
// same unknown-session error an invalid identifier would.
func (s *Server) sweepLoop() {
	if s.cfg.SweepInterval <= 0 || s.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sweepCh:
			return
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

func (s *Server) sweepIdle() {
	cutoff := time.Now().Add(-s.cfg.IdleTimeout)
	for _, sess := range s.registry.Snapshot() {
		if sess.IdleSince().Before(cutoff) {
			sess.Terminate()
			s.registry.Remove(sess.ID())
			s.logger.Info("idle session expired",
				"session_id", sess.ID(),
				"kind", string(sess.Kind()))
		}
	}
}
