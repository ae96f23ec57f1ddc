// Package api exposes the scoring engine over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, repo domain.Repository, cache domain.Cache, bus domain.EventBus, patterns *pattern.Table, custom *rules.Engine, version string, logger *slog.Logger) *Server {
	handler := NewHandler(repo, cache, bus, patterns, custom, cfg, version, logger)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health and observability endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Scoring
	router.Post("/score", handler.Score)
	router.Post("/score/batch", handler.ScoreBatch)

	// Result retrieval
	router.Get("/results/{id}", handler.GetResult)
	router.Get("/transactions/{id}", handler.GetTransaction)
	router.Get("/transactions/{id}/result", handler.GetTransactionResult)
	router.Get("/alerts", handler.ListAlerts)

	// Pattern table
	router.Get("/patterns/rating", handler.PatternRating)
	router.Post("/patterns/reload", handler.ReloadPatterns)

	// Custom rule management
	router.Get("/rules", handler.ListRules)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
