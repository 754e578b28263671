package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testPayTo    = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testMint     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testFeePayer = "9aUn5swQzUTRanaaTwmszxiv89cvFwUCjEBv1vZCoT1u"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RAGPAY_X402_ENABLED", "false")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("default address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.Chunking.ChunkSize != 1200 || cfg.Chunking.ChunkOverlap != 150 {
		t.Errorf("default chunking = %d/%d, want 1200/150", cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	}
	if cfg.Retrieval.MaxRetrievedChunks != 100 {
		t.Errorf("default max_retrieved_chunks = %d, want 100", cfg.Retrieval.MaxRetrievedChunks)
	}
	if cfg.Database.Backend != "memory" {
		t.Errorf("default database backend = %q, want memory", cfg.Database.Backend)
	}
	if cfg.Auth.MaxTTL.Duration != 5*time.Minute {
		t.Errorf("default auth max_ttl = %v, want 5m", cfg.Auth.MaxTTL.Duration)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempConfig(t, `
server:
  address: ":9090"
  read_timeout: 5s
chunking:
  chunk_size: 500
  chunk_overlap: 50
x402:
  enabled: true
  pay_to_address: "`+testPayTo+`"
  asset: "`+testMint+`"
  fee_payer: "`+testFeePayer+`"
  network: solana-devnet
  facilitator_url: "http://localhost:4021"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("address = %q, want :9090", cfg.Server.Address)
	}
	if cfg.Server.ReadTimeout.Duration != 5*time.Second {
		t.Errorf("read_timeout = %v, want 5s", cfg.Server.ReadTimeout.Duration)
	}
	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("chunk_size = %d, want 500", cfg.Chunking.ChunkSize)
	}
	if cfg.X402.Network != "solana-devnet" {
		t.Errorf("network = %q, want solana-devnet", cfg.X402.Network)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
x402:
  enabled: false
`)
	t.Setenv("RAGPAY_SERVER_ADDRESS", ":7070")
	t.Setenv("RAGPAY_CHUNK_SIZE", "256")
	t.Setenv("RAGPAY_EMBEDDING_PROVIDER", "fake")
	t.Setenv("RAGPAY_MAX_RETRIEVED_CHUNKS", "10")
	t.Setenv("RAGPAY_AUTH_MAX_TTL", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("address = %q, want :7070", cfg.Server.Address)
	}
	if cfg.Chunking.ChunkSize != 256 {
		t.Errorf("chunk_size = %d, want 256", cfg.Chunking.ChunkSize)
	}
	if cfg.Embedding.Provider != "fake" {
		t.Errorf("provider = %q, want fake", cfg.Embedding.Provider)
	}
	if cfg.Retrieval.MaxRetrievedChunks != 10 {
		t.Errorf("max_retrieved_chunks = %d, want 10", cfg.Retrieval.MaxRetrievedChunks)
	}
	if cfg.Auth.MaxTTL.Duration != 90*time.Second {
		t.Errorf("auth max_ttl = %v, want 90s", cfg.Auth.MaxTTL.Duration)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad backend",
			yaml: "x402:\n  enabled: false\ndatabase:\n  backend: cassandra\n",
		},
		{
			name: "postgres without url",
			yaml: "x402:\n  enabled: false\ndatabase:\n  backend: postgres\n",
		},
		{
			name: "overlap exceeds size",
			yaml: "x402:\n  enabled: false\nchunking:\n  chunk_size: 100\n  chunk_overlap: 100\n",
		},
		{
			name: "x402 enabled without addresses",
			yaml: "x402:\n  enabled: true\n  facilitator_url: http://localhost:4021\n",
		},
		{
			name: "bad pay_to address",
			yaml: "x402:\n  enabled: true\n  facilitator_url: http://localhost:4021\n  pay_to_address: not-base58!\n  asset: " + testMint + "\n  fee_payer: " + testFeePayer + "\n",
		},
		{
			name: "unknown network",
			yaml: "x402:\n  enabled: true\n  network: ethereum\n  facilitator_url: http://localhost:4021\n  pay_to_address: " + testPayTo + "\n  asset: " + testMint + "\n  fee_payer: " + testFeePayer + "\n",
		},
		{
			name: "unknown embedding provider",
			yaml: "x402:\n  enabled: false\nembedding:\n  provider: cohere\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeTempConfig(t, `
x402:
  enabled: false
loaders:
  fetch_timeout: 45
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Loaders.FetchTimeout.Duration != 45*time.Second {
		t.Errorf("bare number duration = %v, want 45s", cfg.Loaders.FetchTimeout.Duration)
	}
}
