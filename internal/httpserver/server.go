// Package httpserver wires the retrieval gateway's HTTP surface: health and
// metrics endpoints, indexing endpoints behind wallet auth, and retrieval
// endpoints behind wallet auth plus the payment pipeline.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ragpay/server/internal/auth"
	"github.com/ragpay/server/internal/config"
	"github.com/ragpay/server/internal/indexer"
	"github.com/ragpay/server/internal/logger"
	"github.com/ragpay/server/internal/metrics"
	"github.com/ragpay/server/internal/pipeline"
	"github.com/ragpay/server/internal/ratelimit"
	"github.com/ragpay/server/internal/vectorindex"
	"github.com/ragpay/server/internal/versioning"
)

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg      *config.Config
	verifier *auth.Verifier
	indexer  *indexer.Service
	index    *vectorindex.Index
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New builds the HTTP server with the configured router.
func New(cfg *config.Config, verifier *auth.Verifier, indexSvc *indexer.Service, index *vectorindex.Index, pl *pipeline.Pipeline, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:      cfg,
			verifier: verifier,
			indexer:  indexSvc,
			index:    index,
			pipeline: pl,
			metrics:  metricsCollector,
			logger:   appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	s.configureRouter(router)
	return s
}

func (s *Server) configureRouter(router chi.Router) {
	h := s.handlers

	if len(h.cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   h.cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Payment-Response", "X-Request-Id", "X-Api-Version"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(versioning.Negotiation)

	// Logging middleware first so downstream middleware logs with request context.
	router.Use(logger.Middleware(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	rateLimitCfg := ratelimit.FromAppConfig(h.cfg.RateLimit, h.metrics)
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.WalletLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	// Lightweight endpoints with a short timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", h.health)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Indexing and retrieval, behind wallet auth. The long timeout covers
	// embedding calls and the facilitator round-trips.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(h.requireAuth)
		r.Post("/docs/index", h.indexDocs)
		r.Post("/docs/index/web", h.indexWebPages)
		r.Post("/docs/search", h.searchDocs)
		r.Post("/docs/chunks", h.getChunkRange)
	})
}

// Handler exposes the configured router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
