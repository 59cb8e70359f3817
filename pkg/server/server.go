package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/quorum/pkg/config"
	"mercator-hq/quorum/pkg/telemetry/health"
	"mercator-hq/quorum/pkg/telemetry/metrics"
)

// Server is the ops HTTP server.
type Server struct {
	config  config.ServerConfig
	checker *health.Checker
	logger  *slog.Logger

	collector   *metrics.Collector
	metricsPath string
	version     [3]string

	extra map[string]http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	stopped    bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves collector at path and records every request in it.
func WithMetrics(collector *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.collector = collector
		s.metricsPath = path
	}
}

// WithVersion sets the build information served at /version.
func WithVersion(version, commit, buildTime string) Option {
	return func(s *Server) { s.version = [3]string{version, commit, buildTime} }
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHandler mounts an additional handler at pattern.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) { s.extra[pattern] = h }
}

// New creates a server. checker backs /health and /ready.
func New(cfg config.ServerConfig, checker *health.Checker, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		checker: checker,
		logger:  slog.Default().With("component", "server"),
		version: [3]string{"dev", "unknown", "unknown"},
		extra:   make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", s.checker.LivenessHandler())
	mux.Handle("GET /ready", s.checker.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.version[0], s.version[1], s.version[2]))
	if s.collector != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.collector.Handler())
	}
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}

	var h http.Handler = mux
	h = instrument(s.logger, s.collector)(h)
	h = recoverer(s.logger)(h)
	h = requestID(h)
	return h
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	scheme := "http"
	if s.config.TLS.Enabled {
		tlsLn, err := s.tlsListener(ctx, ln)
		if err != nil {
			ln.Close()
			s.mu.Unlock()
			return err
		}
		ln, scheme = tlsLn, "https"
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", "address", ln.Addr().String(), "scheme", scheme)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// tlsListener wraps ln in TLS and keeps the certificate fresh until ctx is
// done.
func (s *Server) tlsListener(ctx context.Context, ln net.Listener) (net.Listener, error) {
	cfg := s.config.TLS
	reloader, err := newCertReloader(cfg.CertFile, cfg.KeyFile, s.logger)
	if err != nil {
		return nil, err
	}
	tlsConfig, err := newTLSConfig(cfg, reloader)
	if err != nil {
		return nil, err
	}
	interval := cfg.ReloadInterval
	if interval <= 0 {
		interval = config.DefaultTLSReloadInterval
	}
	go reloader.watch(ctx, interval)
	return tls.NewListener(ln, tlsConfig), nil
}

// Addr returns the bound address once Start is listening, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the configured shutdown timeout. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	if srv == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down ops server", "timeout", s.config.ShutdownTimeout.String())
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
