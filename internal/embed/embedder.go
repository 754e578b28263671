// Package embed provides text embedding backends for the vector index.
package embed

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/ragpay/server/internal/config"
)

// Embedder turns text into dense vectors. Implementations must be safe for
// concurrent use.
type Embedder interface {
	// EmbedDocuments embeds a batch of document chunks.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// geminiOpenAIBaseURL is Google's OpenAI-compatible embeddings endpoint.
const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// New constructs the embedder selected by configuration.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		fn := chromem.NewEmbeddingFuncOpenAI(cfg.APIKey, chromem.EmbeddingModelOpenAI(cfg.Model))
		return &funcEmbedder{fn: fn}, nil
	case "gemini":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = geminiOpenAIBaseURL
		}
		fn := chromem.NewEmbeddingFuncOpenAICompat(baseURL, cfg.APIKey, cfg.Model, nil)
		return &funcEmbedder{fn: fn}, nil
	case "huggingface":
		fn := chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.Model, nil)
		return &funcEmbedder{fn: fn}, nil
	case "fake":
		return NewFake(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// funcEmbedder adapts a chromem embedding function to the Embedder interface.
type funcEmbedder struct {
	fn chromem.EmbeddingFunc
}

func (e *funcEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.fn(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding document %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *funcEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vec, nil
}

// ChromemFunc exposes an Embedder as a chromem embedding function, used when
// the collection needs to embed query text itself.
func ChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
