// Package indexer runs the load, split, price, embed pipeline that turns
// document sources into priced chunks in the vector index.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ragpay/server/internal/chunks"
	"github.com/ragpay/server/internal/loaders"
	"github.com/ragpay/server/internal/logger"
	"github.com/ragpay/server/internal/metrics"
	"github.com/ragpay/server/internal/vectorindex"
)

// Item is one document to index with its total price in USD. A price of zero
// makes every chunk free.
type Item struct {
	Source   string  `json:"source"`
	PriceUSD float64 `json:"price_usd"`
}

// IndexedDocument reports the outcome for one indexed source.
type IndexedDocument struct {
	DocID       string `json:"doc_id"`
	Source      string `json:"source"`
	ChunksCount int    `json:"chunks_count"`
}

// Service indexes files and web pages into the vector store.
type Service struct {
	files         *loaders.FileLoader
	web           *loaders.WebLoader
	splitter      *chunks.Splitter
	index         *vectorindex.Index
	assetDecimals uint8
	metrics       *metrics.Metrics
}

// New wires the index service. m may be nil.
func New(files *loaders.FileLoader, web *loaders.WebLoader, splitter *chunks.Splitter, index *vectorindex.Index, assetDecimals uint8, m *metrics.Metrics) *Service {
	return &Service{
		files:         files,
		web:           web,
		splitter:      splitter,
		index:         index,
		assetDecimals: assetDecimals,
		metrics:       m,
	}
}

// IndexDocuments loads local files (text, markdown, PDF) and indexes them.
func (s *Service) IndexDocuments(ctx context.Context, items []Item) ([]IndexedDocument, error) {
	results := make([]IndexedDocument, 0, len(items))
	for _, item := range items {
		text, docType, err := s.files.Load(ctx, item.Source)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", item.Source, err)
		}
		doc, err := s.indexText(ctx, item, text, docType)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, nil
}

// IndexWebPages fetches URLs and indexes their extracted text.
func (s *Service) IndexWebPages(ctx context.Context, items []Item) ([]IndexedDocument, error) {
	results := make([]IndexedDocument, 0, len(items))
	for _, item := range items {
		text, err := s.web.Load(ctx, item.Source)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", item.Source, err)
		}
		doc, err := s.indexText(ctx, item, text, "web")
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, nil
}

func (s *Service) indexText(ctx context.Context, item Item, text, docType string) (IndexedDocument, error) {
	start := time.Now()
	docID := chunks.DocID(item.Source)
	contents := s.splitter.Split(text)

	totalBase := chunks.TotalBaseUnits(item.PriceUSD, s.assetDecimals)
	prices := chunks.AllocatePrices(contents, totalBase)

	batch := make([]chunks.Chunk, len(contents))
	for i, content := range contents {
		batch[i] = chunks.Chunk{
			ID:             chunks.ChunkID(docID, i),
			DocID:          docID,
			Index:          i,
			Content:        content,
			Source:         item.Source,
			DocType:        docType,
			PriceBaseUnits: prices[i],
		}
	}

	if err := s.index.Add(ctx, batch); err != nil {
		return IndexedDocument{}, fmt.Errorf("indexing %s: %w", item.Source, err)
	}

	if s.metrics != nil {
		s.metrics.DocumentsIndexedTotal.WithLabelValues(docType).Inc()
		s.metrics.ChunksIndexedTotal.Add(float64(len(batch)))
		s.metrics.IndexingDuration.WithLabelValues(docType).Observe(time.Since(start).Seconds())
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("doc_id", docID).
		Str("source", item.Source).
		Str("doc_type", docType).
		Int("chunks", len(batch)).
		Uint64("price_base_units", totalBase).
		Msg("indexer.document_indexed")

	return IndexedDocument{
		DocID:       docID,
		Source:      item.Source,
		ChunksCount: len(batch),
	}, nil
}
