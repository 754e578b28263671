package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings ("30s",
// "5m") or bare numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Database       DatabaseConfig       `yaml:"database"`
	VectorIndex    VectorIndexConfig    `yaml:"vector_index"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Chunking       ChunkingConfig       `yaml:"chunking"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	Loaders        LoadersConfig        `yaml:"loaders"`
	X402           X402Config           `yaml:"x402"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// DatabaseConfig holds purchase-ledger storage configuration.
type DatabaseConfig struct {
	Backend         string             `yaml:"backend"`          // "memory", "postgres", or "mongodb"
	PostgresURL     string             `yaml:"postgres_url"`     // PostgreSQL connection string
	MongoDBURL      string             `yaml:"mongodb_url"`      // MongoDB connection string
	MongoDBDatabase string             `yaml:"mongodb_database"` // MongoDB database name
	PostgresPool    PostgresPoolConfig `yaml:"postgres_pool"`
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // Maximum number of open connections (default: 25)
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // Maximum number of idle connections (default: 5)
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // Maximum lifetime of connections (default: 5m)
}

// VectorIndexConfig holds the embedded vector store configuration.
type VectorIndexConfig struct {
	Collection      string `yaml:"collection"`       // Collection name (default: "document_chunks")
	PersistencePath string `yaml:"persistence_path"` // On-disk storage path; empty keeps the index in memory
	Compress        bool   `yaml:"compress"`         // Gzip persisted records
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai", "gemini", "huggingface", or "fake"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // OpenAI-compatible endpoint; required for huggingface
}

// ChunkingConfig drives the recursive character splitter.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`    // Target chunk length in characters (default: 1200)
	ChunkOverlap int `yaml:"chunk_overlap"` // Overlap between consecutive chunks (default: 150)
}

// RetrievalConfig bounds retrieval responses.
type RetrievalConfig struct {
	MaxRetrievedChunks int `yaml:"max_retrieved_chunks"` // Hard cap on chunks per response (default: 100)
}

// LoadersConfig configures the content loaders used during indexing.
type LoadersConfig struct {
	MinTextLen     int      `yaml:"min_text_len"`    // Static HTML below this length triggers the render fallback (default: 800)
	RenderEndpoint string   `yaml:"render_endpoint"` // Optional JS-rendering service for SPA pages
	FetchTimeout   Duration `yaml:"fetch_timeout"`
	PDFCommand     string   `yaml:"pdf_command"` // External PDF-to-markdown converter; empty rejects PDF sources
	PDFArgs        []string `yaml:"pdf_args"`    // Extra arguments passed before the PDF path
}

// X402Config holds x402 payment rail configuration.
type X402Config struct {
	Enabled           bool     `yaml:"enabled"`
	PayToAddress      string   `yaml:"pay_to_address"` // Recipient wallet (base58)
	Network           string   `yaml:"network"`        // "solana" or "solana-devnet"
	Asset             string   `yaml:"asset"`          // Token mint address (USDC)
	AssetDecimals     uint8    `yaml:"asset_decimals"` // default: 6
	FeePayer          string   `yaml:"fee_payer"`      // Facilitator wallet that pays chain fees
	FacilitatorURL    string   `yaml:"facilitator_url"`
	MaxTimeoutSeconds int      `yaml:"max_timeout_seconds"` // Payment window advertised in requirements (default: 60)
	SettleTimeout     Duration `yaml:"settle_timeout"`
}

// AuthConfig bounds the freshness window for signed bearer tokens.
type AuthConfig struct {
	MaxTTL    Duration `yaml:"max_ttl"`    // default: 5m
	ClockSkew Duration `yaml:"clock_skew"` // default: 2m
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`

	PerWalletEnabled bool     `yaml:"per_wallet_enabled"`
	PerWalletLimit   int      `yaml:"per_wallet_limit"`
	PerWalletWindow  Duration `yaml:"per_wallet_window"`

	PerIPEnabled bool     `yaml:"per_ip_enabled"`
	PerIPLimit   int      `yaml:"per_ip_limit"`
	PerIPWindow  Duration `yaml:"per_ip_window"`
}

// CircuitBreakerConfig holds circuit breaker configuration for external services.
type CircuitBreakerConfig struct {
	Enabled     bool                 `yaml:"enabled"`
	Facilitator BreakerServiceConfig `yaml:"facilitator"`
	Renderer    BreakerServiceConfig `yaml:"renderer"`
}

// BreakerServiceConfig configures a circuit breaker for one external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // Max requests in half-open state (default: 3)
	Interval            Duration `yaml:"interval"`             // Stats reset interval in closed state (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // Open state timeout before half-open (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Consecutive failures to trip (default: 5)
	FailureRatio        float64  `yaml:"failure_ratio"`        // Failure ratio to trip 0.0-1.0 (default: 0.5)
	MinRequests         uint32   `yaml:"min_requests"`         // Minimum requests before checking ratio (default: 10)
}
