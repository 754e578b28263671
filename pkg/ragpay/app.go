// Package ragpay wires the paywalled retrieval gateway for standalone serving
// or embedding into a larger program.
package ragpay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ragpay/server/internal/auth"
	"github.com/ragpay/server/internal/chunks"
	"github.com/ragpay/server/internal/circuitbreaker"
	"github.com/ragpay/server/internal/config"
	"github.com/ragpay/server/internal/embed"
	"github.com/ragpay/server/internal/httpserver"
	"github.com/ragpay/server/internal/indexer"
	"github.com/ragpay/server/internal/ledger"
	"github.com/ragpay/server/internal/lifecycle"
	"github.com/ragpay/server/internal/loaders"
	"github.com/ragpay/server/internal/logger"
	"github.com/ragpay/server/internal/metrics"
	"github.com/ragpay/server/internal/pipeline"
	"github.com/ragpay/server/internal/vectorindex"
	"github.com/ragpay/server/pkg/x402"
)

// App holds the assembled gateway components.
type App struct {
	Config   *config.Config
	Ledger   ledger.PurchaseLedger
	Embedder embed.Embedder
	Index    *vectorindex.Index
	Indexer  *indexer.Service

	server           *httpserver.Server
	resourceManager  *lifecycle.Manager
	metricsCollector *metrics.Metrics
}

// Option configures App construction.
type Option func(*options)

type options struct {
	ledger   ledger.PurchaseLedger
	embedder embed.Embedder
	pdf      loaders.PDFConverter
	registry prometheus.Registerer
}

// WithLedger injects a custom purchase ledger backend.
func WithLedger(l ledger.PurchaseLedger) Option {
	return func(o *options) { o.ledger = l }
}

// WithEmbedder injects a custom embedding provider.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithPDFConverter injects a PDF-to-markdown converter for file indexing.
func WithPDFConverter(c loaders.PDFConverter) Option {
	return func(o *options) { o.pdf = c }
}

// WithMetricsRegistry registers metrics on a custom registry instead of the
// process-wide default.
func WithMetricsRegistry(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

// NewApp assembles the gateway from configuration.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("ragpay: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	app := &App{
		Config:          cfg,
		resourceManager: lifecycle.NewManager(),
	}

	registry := optState.registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	app.metricsCollector = metrics.New(registry)

	if optState.embedder != nil {
		app.Embedder = optState.embedder
	} else {
		embedder, err := embed.New(cfg.Embedding)
		if err != nil {
			return nil, err
		}
		app.Embedder = embedder
	}

	index, err := vectorindex.New(cfg.VectorIndex, app.Embedder, cfg.Retrieval.MaxRetrievedChunks)
	if err != nil {
		return nil, err
	}
	app.Index = index

	if optState.ledger != nil {
		app.Ledger = optState.ledger
	} else {
		l, err := ledger.New(cfg.Database)
		if err != nil {
			return nil, err
		}
		app.Ledger = l
		app.resourceManager.Register("ledger", l)
	}

	breakers := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)

	pdf := optState.pdf
	if pdf == nil && cfg.Loaders.PDFCommand != "" {
		pdf = &loaders.CommandConverter{Command: cfg.Loaders.PDFCommand, Args: cfg.Loaders.PDFArgs}
	}
	app.Indexer = indexer.New(
		loaders.NewFileLoader(pdf),
		loaders.NewWebLoader(cfg.Loaders, breakers),
		chunks.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		index,
		cfg.X402.AssetDecimals,
		app.metricsCollector,
	)

	var facilitator *x402.FacilitatorClient
	if cfg.X402.Enabled {
		timeout := cfg.X402.SettleTimeout.Duration
		if timeout <= 0 {
			timeout = time.Duration(cfg.X402.MaxTimeoutSeconds) * time.Second
		}
		facilitator = x402.NewFacilitatorClient(cfg.X402.FacilitatorURL, timeout, breakers)
	}
	pl := pipeline.New(cfg.X402, app.Ledger, facilitator, app.metricsCollector)

	verifier := auth.NewVerifier(cfg.Auth.MaxTTL.Duration, cfg.Auth.ClockSkew.Duration)

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "ragpay-gateway",
		Environment: cfg.Logging.Environment,
	})

	app.server = httpserver.New(cfg, verifier, app.Indexer, index, pl, app.metricsCollector, appLogger)
	return app, nil
}

// Handler exposes the gateway's router for embedding.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// ListenAndServe starts the HTTP server.
func (a *App) ListenAndServe() error {
	return a.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Close releases resources owned by the app.
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// Config is an exported alias of the internal configuration struct.
type Config = config.Config

// LoadConfig wraps the internal loader for embedding use.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
