// Package server exposes the session over HTTP.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/systmms/zligate/internal/logging"
	"github.com/systmms/zligate/internal/session"
)

const readHeaderTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Session *session.Session
	Metrics *Metrics
	Logger  *logging.Logger

	// Redact scrubs secret values from text before it is returned or
	// logged. Nil leaves text unchanged.
	Redact func(string) string
}

// Server is the HTTP front end of a session.
type Server struct {
	session *session.Session
	metrics *Metrics
	logger  *logging.Logger
	redact  func(string) string

	router     chi.Router
	httpServer *http.Server
}

// New builds the router and the underlying http.Server. It does not listen.
func New(opts Options) (*Server, error) {
	if opts.Session == nil {
		return nil, errors.New("server: session is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Redact == nil {
		opts.Redact = func(s string) string { return s }
	}

	s := &Server{
		session: opts.Session,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		redact:  opts.Redact,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/", s.handleVersion)
	r.Get("/login", s.handleLogin)
	r.Get("/generate", s.handleGenerate)
	r.Get("/ssh", s.handleSSH)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe listens on the configured address and blocks until the
// server is shut down. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones to finish
// or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
