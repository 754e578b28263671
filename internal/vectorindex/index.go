// Package vectorindex wraps the embedded vector store holding priced document
// chunks. Chunk metadata rides along with each vector so search results carry
// everything the payment flow needs.
package vectorindex

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/ragpay/server/internal/cacheutil"
	"github.com/ragpay/server/internal/chunks"
	"github.com/ragpay/server/internal/config"
	"github.com/ragpay/server/internal/embed"
)

// Query embeddings are cached briefly: a challenged search is retried with
// payment moments later carrying the same query text, and the second pass
// should not call the embedding provider again.
const (
	queryEmbedTTL     = 2 * time.Minute
	queryEmbedMaxSize = 256
)

// Metadata keys stored with each chunk vector.
const (
	metaSource     = "source"
	metaDocType    = "doc_type"
	metaDocID      = "doc_id"
	metaChunkIndex = "chunk_index"
	metaPrice      = "price"
)

// Result is a search hit: the chunk plus its similarity score.
type Result struct {
	Chunk      chunks.Chunk
	Similarity float32
}

// Index stores and retrieves chunk vectors.
type Index struct {
	collection *chromem.Collection
	embedder   embed.Embedder
	maxResults int

	embedMu    sync.RWMutex
	embedCache map[string]cacheutil.CachedValue[[]float32]
}

// New opens the configured collection. A persistence path makes the index
// durable across restarts; without one it lives in memory.
func New(cfg config.VectorIndexConfig, embedder embed.Embedder, maxResults int) (*Index, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistencePath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistencePath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening persistent vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embed.ChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", cfg.Collection, err)
	}

	return &Index{
		collection: collection,
		embedder:   embedder,
		maxResults: maxResults,
		embedCache: make(map[string]cacheutil.CachedValue[[]float32]),
	}, nil
}

// Add embeds and stores the given chunks. Re-adding a chunk id overwrites the
// stored vector, which keeps re-indexing idempotent.
func (ix *Index) Add(ctx context.Context, batch []chunks.Chunk) error {
	if len(batch) == 0 {
		return nil
	}

	contents := make([]string, len(batch))
	for i, c := range batch {
		contents[i] = c.Content
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(batch), err)
	}

	docs := make([]chromem.Document, len(batch))
	for i, c := range batch {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: vectors[i],
			Metadata: map[string]string{
				metaSource:     c.Source,
				metaDocType:    c.DocType,
				metaDocID:      c.DocID,
				metaChunkIndex: strconv.Itoa(c.Index),
				metaPrice:      strconv.FormatUint(c.PriceBaseUnits, 10),
			},
		}
	}

	if err := ix.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding %d chunks to index: %w", len(docs), err)
	}
	return nil
}

// Search returns up to k chunks most similar to query. filters are equality
// predicates over chunk metadata; nil means no filtering. k is clamped to the
// configured maximum and to the collection size; an empty index yields an
// empty result, not an error.
func (ix *Index) Search(ctx context.Context, query string, k int, filters map[string]string) ([]Result, error) {
	if k <= 0 {
		k = ix.maxResults
	}
	if k > ix.maxResults {
		k = ix.maxResults
	}
	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	qvec, err := ix.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := ix.collection.QueryEmbedding(ctx, qvec, k, filters, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Chunk:      decodeChunk(hit.ID, hit.Content, hit.Metadata),
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

// embedQuery embeds query text through a TTL-bound read-through cache.
func (ix *Index) embedQuery(ctx context.Context, query string) ([]float32, error) {
	return cacheutil.ReadThrough(
		&ix.embedMu,
		func(now time.Time) ([]float32, bool) {
			if entry, ok := ix.embedCache[query]; ok && now.Sub(entry.FetchedAt) < queryEmbedTTL {
				return entry.Value, true
			}
			return nil, false
		},
		func(now time.Time) ([]float32, error) {
			vec, err := ix.embedder.EmbedQuery(ctx, query)
			if err != nil {
				return nil, err
			}
			if len(ix.embedCache) >= queryEmbedMaxSize {
				ix.embedCache = make(map[string]cacheutil.CachedValue[[]float32], queryEmbedMaxSize)
			}
			ix.embedCache[query] = cacheutil.CachedValue[[]float32]{Value: vec, FetchedAt: now}
			return vec, nil
		},
	)
}

// GetByIDs fetches chunks by id, preserving request order. Unknown ids are
// silently omitted.
func (ix *Index) GetByIDs(ctx context.Context, ids []string) ([]chunks.Chunk, error) {
	out := make([]chunks.Chunk, 0, len(ids))
	for _, id := range ids {
		doc, err := ix.collection.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, decodeChunk(doc.ID, doc.Content, doc.Metadata))
	}
	return out, nil
}

// Count reports the number of indexed chunks.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

func decodeChunk(id, content string, meta map[string]string) chunks.Chunk {
	index, _ := strconv.Atoi(meta[metaChunkIndex])
	price, _ := strconv.ParseUint(meta[metaPrice], 10, 64)
	return chunks.Chunk{
		ID:             id,
		DocID:          meta[metaDocID],
		Index:          index,
		Content:        content,
		Source:         meta[metaSource],
		DocType:        meta[metaDocType],
		PriceBaseUnits: price,
	}
}
