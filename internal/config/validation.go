package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// finalize validates the assembled configuration and rejects combinations the
// server cannot run with.
func (c *Config) finalize() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}

	switch c.Database.Backend {
	case "memory":
	case "postgres":
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("database.postgres_url is required when backend is postgres")
		}
	case "mongodb":
		if c.Database.MongoDBURL == "" {
			return fmt.Errorf("database.mongodb_url is required when backend is mongodb")
		}
	default:
		return fmt.Errorf("database.backend must be memory, postgres, or mongodb (got %q)", c.Database.Backend)
	}

	switch c.Embedding.Provider {
	case "openai", "gemini", "fake":
	case "huggingface":
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for the huggingface provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be openai, gemini, huggingface, or fake (got %q)", c.Embedding.Provider)
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive (got %d)", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size) (got %d)", c.Chunking.ChunkOverlap)
	}
	if c.Retrieval.MaxRetrievedChunks <= 0 {
		return fmt.Errorf("retrieval.max_retrieved_chunks must be positive (got %d)", c.Retrieval.MaxRetrievedChunks)
	}

	if c.X402.Enabled {
		switch c.X402.Network {
		case "solana", "solana-devnet":
		default:
			return fmt.Errorf("x402.network must be solana or solana-devnet (got %q)", c.X402.Network)
		}
		if c.X402.FacilitatorURL == "" {
			return fmt.Errorf("x402.facilitator_url is required when x402 is enabled")
		}
		for name, addr := range map[string]string{
			"x402.pay_to_address": c.X402.PayToAddress,
			"x402.asset":          c.X402.Asset,
			"x402.fee_payer":      c.X402.FeePayer,
		} {
			if addr == "" {
				return fmt.Errorf("%s is required when x402 is enabled", name)
			}
			if _, err := solana.PublicKeyFromBase58(addr); err != nil {
				return fmt.Errorf("%s is not a valid base58 address: %w", name, err)
			}
		}
		if c.X402.MaxTimeoutSeconds <= 0 {
			return fmt.Errorf("x402.max_timeout_seconds must be positive (got %d)", c.X402.MaxTimeoutSeconds)
		}
	}

	if c.Auth.MaxTTL.Duration <= 0 {
		return fmt.Errorf("auth.max_ttl must be positive")
	}
	if c.Auth.ClockSkew.Duration < 0 {
		return fmt.Errorf("auth.clock_skew must not be negative")
	}

	return nil
}
