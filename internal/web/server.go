// Package web provides the HTTP API for starting and inspecting catalog loads.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/catalog-etl/internal/config"
	"github.com/JonMunkholm/catalog-etl/internal/pipeline"
	webmw "github.com/JonMunkholm/catalog-etl/internal/web/middleware"
)

// TableCounter reports the number of rows in a sink table.
type TableCounter interface {
	Count(ctx context.Context, table string) (int64, error)
}

// Options configures a Server. Zero values disable the matching feature.
type Options struct {
	Security       config.SecurityConfig
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer // serves /metrics when set
	Tables         TableCounter        // adds row counts to /api/tables when set
	Logger         *slog.Logger
}

// Server is the HTTP server for the catalog load API.
type Server struct {
	service *pipeline.Service
	opts    Options
	logger  *slog.Logger
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *pipeline.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: service,
		opts:    opts,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.opts.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)

		// Run operations
		r.Group(func(r chi.Router) {
			r.Use(webmw.APIKeyAuth(s.opts.Security))

			r.Post("/runs", s.handleStartRun)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{runID}", s.handleGetRun)
			r.Post("/runs/{runID}/cancel", s.handleCancelRun)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(cfg config.ServerConfig) error {
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	s.logger.Info("Starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON only; nothing to load
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
