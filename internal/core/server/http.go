package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solatis/launchrules/internal/core/auth"
	"github.com/solatis/launchrules/internal/core/metrics"
	"github.com/solatis/launchrules/internal/history"
	"github.com/solatis/launchrules/internal/rules"
)

// Validator pre-checks uploaded rule documents.
type Validator interface {
	Validate(data []byte) error
}

// Options wires the HTTP API. Engine is required; the rest are optional.
type Options struct {
	Engine    *rules.Engine
	History   *history.Store
	Verifier  *auth.Verifier
	Validator Validator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// HTTPServer serves the launchrules HTTP API.
type HTTPServer struct {
	server *http.Server
	api    *api
	logger *slog.Logger
}

// NewHTTPServer builds the router and server.
func NewHTTPServer(opts Options) (*HTTPServer, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Verifier == nil {
		opts.Verifier = auth.NewVerifier(nil, opts.Logger)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	a := &api{
		engine:    opts.Engine,
		history:   opts.History,
		validator: opts.Validator,
		logger:    opts.Logger.With("component", "http"),
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:           newRouter(a, opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		api:    a,
		logger: a.logger,
	}, nil
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func newRouter(a *api, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)

	r.Route("/v1", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		r.Use(maxBody(opts.MaxBodyBytes))

		r.Post("/events", a.postEvent)
		r.Get("/rules", a.getRules)
		r.With(opts.Verifier.Middleware).Put("/rules", a.putRules)
	})
	return r
}

// Start binds the listener and serves until Shutdown.
func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.logger.Info("HTTP server listening", "addr", listener.Addr().String())

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
