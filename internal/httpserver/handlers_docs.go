package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/ragpay/server/internal/chunks"
	apierrors "github.com/ragpay/server/internal/errors"
	"github.com/ragpay/server/internal/indexer"
	"github.com/ragpay/server/internal/logger"
	"github.com/ragpay/server/pkg/responders"
)

// defaultSearchK is the result count when the request omits k.
const defaultSearchK = 5

type indexDocsRequest struct {
	Documents []struct {
		Path     string  `json:"path"`
		PriceUSD float64 `json:"price_usd"`
	} `json:"documents"`
}

type indexWebPagesRequest struct {
	Pages []struct {
		URL      string  `json:"url"`
		PriceUSD float64 `json:"price_usd"`
	} `json:"pages"`
}

type searchRequest struct {
	Query   string            `json:"query"`
	K       int               `json:"k"`
	Filters map[string]string `json:"filters"`
}

type chunkRangeRequest struct {
	DocID      string `json:"doc_id"`
	StartChunk int    `json:"start_chunk"`
	EndChunk   *int   `json:"end_chunk"`
}

type chunkMetadata struct {
	Source     string `json:"source"`
	DocType    string `json:"doc_type"`
	DocID      string `json:"doc_id"`
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	Price      uint64 `json:"price"`
}

type documentChunk struct {
	Text     string        `json:"text"`
	Metadata chunkMetadata `json:"metadata"`
}

type searchResult struct {
	Chunks []documentChunk `json:"chunks"`
	Total  int             `json:"total"`
}

type chunkRangeResult struct {
	Chunks []documentChunk `json:"chunks"`
	DocID  string          `json:"doc_id"`
	Total  int             `json:"total"`
}

func toDocumentChunks(batch []chunks.Chunk) []documentChunk {
	out := make([]documentChunk, len(batch))
	for i, c := range batch {
		out[i] = documentChunk{
			Text: c.Content,
			Metadata: chunkMetadata{
				Source:     c.Source,
				DocType:    c.DocType,
				DocID:      c.DocID,
				ChunkID:    c.ID,
				ChunkIndex: c.Index,
				Price:      c.PriceBaseUnits,
			},
		}
	}
	return out
}

// indexDocs handles POST /docs/index.
func (h handlers) indexDocs(w http.ResponseWriter, r *http.Request) {
	var req indexDocsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}

	items := make([]indexer.Item, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d.Path == "" {
			apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "document path is required")
			return
		}
		if d.PriceUSD < 0 {
			apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "price_usd must not be negative")
			return
		}
		items = append(items, indexer.Item{Source: d.Path, PriceUSD: d.PriceUSD})
	}

	docs, err := h.indexer.IndexDocuments(r.Context(), items)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("docs.index_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeIndexError, "Failed to index documents")
		return
	}
	responders.JSON(w, http.StatusOK, docs)
}

// indexWebPages handles POST /docs/index/web.
func (h handlers) indexWebPages(w http.ResponseWriter, r *http.Request) {
	var req indexWebPagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}

	items := make([]indexer.Item, 0, len(req.Pages))
	for _, p := range req.Pages {
		if p.URL == "" {
			apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "page url is required")
			return
		}
		if p.PriceUSD < 0 {
			apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "price_usd must not be negative")
			return
		}
		items = append(items, indexer.Item{Source: p.URL, PriceUSD: p.PriceUSD})
	}

	docs, err := h.indexer.IndexWebPages(r.Context(), items)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("docs.index_web_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeIndexError, "Failed to index web pages")
		return
	}
	responders.JSON(w, http.StatusOK, docs)
}

// searchDocs handles POST /docs/search. The response is gated by the payment
// pipeline: unpaid chunks in the result trigger a 402 challenge.
func (h handlers) searchDocs(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}
	if req.Query == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "query is required")
		return
	}
	if req.K < 0 {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidRange, "k must be at least 1")
		return
	}
	if req.K == 0 {
		req.K = defaultSearchK
	}

	hits, err := h.index.Search(r.Context(), req.Query, req.K, req.Filters)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("docs.search_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeIndexError, "Failed to search documents")
		return
	}
	batch := make([]chunks.Chunk, len(hits))
	for i, hit := range hits {
		batch[i] = hit.Chunk
	}

	h.pipeline.Run(w, r, walletFromContext(r.Context()), "search", batch, func(served []chunks.Chunk) (interface{}, error) {
		return searchResult{Chunks: toDocumentChunks(served), Total: len(served)}, nil
	})
}

// getChunkRange handles POST /docs/chunks, fetching an inclusive chunk index
// range for one document. Like search, the response is payment gated.
func (h handlers) getChunkRange(w http.ResponseWriter, r *http.Request) {
	var req chunkRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Invalid JSON body")
		return
	}
	if req.DocID == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "doc_id is required")
		return
	}
	if req.StartChunk < 0 {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidRange, "start_chunk must not be negative")
		return
	}

	start := req.StartChunk
	end := start
	if req.EndChunk != nil {
		end = *req.EndChunk
	}
	if end < start {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidRange, "end_chunk must not be before start_chunk")
		return
	}
	if max := h.cfg.Retrieval.MaxRetrievedChunks; end-start+1 > max {
		end = start + max - 1
	}

	batch, err := h.index.GetByIDs(r.Context(), chunks.ChunkIDRange(req.DocID, start, end))
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("docs.chunk_range_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeIndexError, "Failed to fetch chunks")
		return
	}

	h.pipeline.Run(w, r, walletFromContext(r.Context()), "chunks", batch, func(served []chunks.Chunk) (interface{}, error) {
		return chunkRangeResult{Chunks: toDocumentChunks(served), DocID: req.DocID, Total: len(served)}, nil
	})
}
