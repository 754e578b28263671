package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file (optional) and applies
// environment variable overrides. Pass an empty path to run on defaults plus
// environment only.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := parseFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			IdleTimeout:  Duration{60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Backend:         "memory",
			MongoDBDatabase: "ragpay",
			PostgresPool: PostgresPoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration{5 * time.Minute},
			},
		},
		VectorIndex: VectorIndexConfig{
			Collection: "document_chunks",
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1200,
			ChunkOverlap: 150,
		},
		Retrieval: RetrievalConfig{
			MaxRetrievedChunks: 100,
		},
		Loaders: LoadersConfig{
			MinTextLen:   800,
			FetchTimeout: Duration{20 * time.Second},
		},
		X402: X402Config{
			Enabled:           true,
			Network:           "solana",
			Asset:             "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			AssetDecimals:     6,
			MaxTimeoutSeconds: 60,
			SettleTimeout:     Duration{30 * time.Second},
		},
		Auth: AuthConfig{
			MaxTTL:    Duration{5 * time.Minute},
			ClockSkew: Duration{2 * time.Minute},
		},
		RateLimit: RateLimitConfig{
			GlobalEnabled: false,
			GlobalLimit:   1000,
			GlobalWindow:  Duration{1 * time.Minute},

			PerWalletEnabled: true,
			PerWalletLimit:   60,
			PerWalletWindow:  Duration{1 * time.Minute},

			PerIPEnabled: true,
			PerIPLimit:   120,
			PerIPWindow:  Duration{1 * time.Minute},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:     true,
			Facilitator: defaultBreakerConfig(),
			Renderer:    defaultBreakerConfig(),
		},
	}
}

func defaultBreakerConfig() BreakerServiceConfig {
	return BreakerServiceConfig{
		MaxRequests:         3,
		Interval:            Duration{60 * time.Second},
		Timeout:             Duration{30 * time.Second},
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

func parseFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}
