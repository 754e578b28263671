package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides layers RAGPAY_* environment variables over the file
// configuration. Every override is optional; unset variables leave the file
// value in place.
func applyEnvOverrides(cfg *Config) {
	// Server
	setString(&cfg.Server.Address, "RAGPAY_SERVER_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "RAGPAY_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "RAGPAY_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "RAGPAY_SERVER_IDLE_TIMEOUT")
	setStringSlice(&cfg.Server.CORSAllowedOrigins, "RAGPAY_CORS_ALLOWED_ORIGINS")

	// Logging
	setString(&cfg.Logging.Level, "RAGPAY_LOG_LEVEL")
	setString(&cfg.Logging.Format, "RAGPAY_LOG_FORMAT")
	setString(&cfg.Logging.Environment, "RAGPAY_ENVIRONMENT")

	// Database
	setString(&cfg.Database.Backend, "RAGPAY_DATABASE_BACKEND")
	setString(&cfg.Database.PostgresURL, "RAGPAY_POSTGRES_URL")
	setString(&cfg.Database.MongoDBURL, "RAGPAY_MONGODB_URL")
	setString(&cfg.Database.MongoDBDatabase, "RAGPAY_MONGODB_DATABASE")
	setInt(&cfg.Database.PostgresPool.MaxOpenConns, "RAGPAY_POSTGRES_MAX_OPEN_CONNS")
	setInt(&cfg.Database.PostgresPool.MaxIdleConns, "RAGPAY_POSTGRES_MAX_IDLE_CONNS")
	setDuration(&cfg.Database.PostgresPool.ConnMaxLifetime, "RAGPAY_POSTGRES_CONN_MAX_LIFETIME")

	// Vector index
	setString(&cfg.VectorIndex.Collection, "RAGPAY_VECTOR_COLLECTION")
	setString(&cfg.VectorIndex.PersistencePath, "RAGPAY_VECTOR_PERSISTENCE_PATH")
	setBool(&cfg.VectorIndex.Compress, "RAGPAY_VECTOR_COMPRESS")

	// Embedding
	setString(&cfg.Embedding.Provider, "RAGPAY_EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "RAGPAY_EMBEDDING_MODEL")
	setString(&cfg.Embedding.APIKey, "RAGPAY_EMBEDDING_API_KEY")
	setString(&cfg.Embedding.BaseURL, "RAGPAY_EMBEDDING_BASE_URL")

	// Chunking / retrieval
	setInt(&cfg.Chunking.ChunkSize, "RAGPAY_CHUNK_SIZE")
	setInt(&cfg.Chunking.ChunkOverlap, "RAGPAY_CHUNK_OVERLAP")
	setInt(&cfg.Retrieval.MaxRetrievedChunks, "RAGPAY_MAX_RETRIEVED_CHUNKS")

	// Loaders
	setInt(&cfg.Loaders.MinTextLen, "RAGPAY_MIN_TEXT_LEN")
	setString(&cfg.Loaders.RenderEndpoint, "RAGPAY_RENDER_ENDPOINT")
	setDuration(&cfg.Loaders.FetchTimeout, "RAGPAY_FETCH_TIMEOUT")
	setString(&cfg.Loaders.PDFCommand, "RAGPAY_PDF_COMMAND")
	setStringSlice(&cfg.Loaders.PDFArgs, "RAGPAY_PDF_ARGS")

	// x402
	setBool(&cfg.X402.Enabled, "RAGPAY_X402_ENABLED")
	setString(&cfg.X402.PayToAddress, "RAGPAY_X402_PAY_TO_ADDRESS")
	setString(&cfg.X402.Network, "RAGPAY_X402_NETWORK")
	setString(&cfg.X402.Asset, "RAGPAY_X402_ASSET")
	setUint8(&cfg.X402.AssetDecimals, "RAGPAY_X402_ASSET_DECIMALS")
	setString(&cfg.X402.FeePayer, "RAGPAY_X402_FEE_PAYER")
	setString(&cfg.X402.FacilitatorURL, "RAGPAY_X402_FACILITATOR_URL")
	setInt(&cfg.X402.MaxTimeoutSeconds, "RAGPAY_X402_MAX_TIMEOUT_SECONDS")
	setDuration(&cfg.X402.SettleTimeout, "RAGPAY_X402_SETTLE_TIMEOUT")

	// Auth
	setDuration(&cfg.Auth.MaxTTL, "RAGPAY_AUTH_MAX_TTL")
	setDuration(&cfg.Auth.ClockSkew, "RAGPAY_AUTH_CLOCK_SKEW")

	// Rate limiting
	setBool(&cfg.RateLimit.GlobalEnabled, "RAGPAY_RATELIMIT_GLOBAL_ENABLED")
	setInt(&cfg.RateLimit.GlobalLimit, "RAGPAY_RATELIMIT_GLOBAL_LIMIT")
	setDuration(&cfg.RateLimit.GlobalWindow, "RAGPAY_RATELIMIT_GLOBAL_WINDOW")
	setBool(&cfg.RateLimit.PerWalletEnabled, "RAGPAY_RATELIMIT_PER_WALLET_ENABLED")
	setInt(&cfg.RateLimit.PerWalletLimit, "RAGPAY_RATELIMIT_PER_WALLET_LIMIT")
	setDuration(&cfg.RateLimit.PerWalletWindow, "RAGPAY_RATELIMIT_PER_WALLET_WINDOW")
	setBool(&cfg.RateLimit.PerIPEnabled, "RAGPAY_RATELIMIT_PER_IP_ENABLED")
	setInt(&cfg.RateLimit.PerIPLimit, "RAGPAY_RATELIMIT_PER_IP_LIMIT")
	setDuration(&cfg.RateLimit.PerIPWindow, "RAGPAY_RATELIMIT_PER_IP_WINDOW")

	// Circuit breakers
	setBool(&cfg.CircuitBreaker.Enabled, "RAGPAY_CIRCUIT_BREAKER_ENABLED")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setStringSlice(dst *[]string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint8(dst *uint8, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			*dst = uint8(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
