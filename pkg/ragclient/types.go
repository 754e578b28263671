// Package ragclient is the Go client for the paywalled retrieval gateway.
// It mints a fresh signed Authorization header for every request and, when a
// request answers 402, builds an x402 payment and retries exactly once.
package ragclient

import (
	"fmt"

	"github.com/ragpay/server/pkg/x402"
)

// DocumentInput names one local file to index and its per-chunk price.
type DocumentInput struct {
	Path     string  `json:"path"`
	PriceUSD float64 `json:"price_usd"`
}

// WebPageInput names one web page to index and its per-chunk price.
type WebPageInput struct {
	URL      string  `json:"url"`
	PriceUSD float64 `json:"price_usd"`
}

// IndexedDocument is the per-document indexing result.
type IndexedDocument struct {
	DocID       string `json:"doc_id"`
	Source      string `json:"source"`
	ChunksCount int    `json:"chunks_count"`
}

// ChunkMetadata mirrors the metadata attached to each retrieved chunk.
type ChunkMetadata struct {
	Source     string `json:"source"`
	DocType    string `json:"doc_type"`
	DocID      string `json:"doc_id"`
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	Price      uint64 `json:"price"` // base units
}

// DocumentChunk is one retrieved chunk of text with its metadata.
type DocumentChunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SearchResult is the body of a similarity search response.
type SearchResult struct {
	Chunks []DocumentChunk `json:"chunks"`
	Total  int             `json:"total"`
}

// ChunkRangeResult is the body of a chunk-range retrieval response.
type ChunkRangeResult struct {
	Chunks []DocumentChunk `json:"chunks"`
	DocID  string          `json:"doc_id"`
	Total  int             `json:"total"`
}

// PaymentInfo records the payment honored for a retrieval. It is nil when the
// request succeeded without a payment round trip.
type PaymentInfo struct {
	Amount     string // base units, decimal string, from the honored requirement
	PayTo      string
	Network    string
	Settlement *x402.SettleResponse // decoded X-PAYMENT-RESPONSE, when present
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragclient: gateway returned %d: %s", e.StatusCode, e.Detail)
}
