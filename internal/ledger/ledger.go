// Package ledger tracks which wallet owns which chunks. Ownership is
// permanent: once a chunk is recorded for a wallet it is never charged again.
package ledger

import (
	"context"
	"fmt"

	"github.com/ragpay/server/internal/chunks"
	"github.com/ragpay/server/internal/config"
)

// PurchaseLedger is the durable record of chunk ownership per wallet.
type PurchaseLedger interface {
	// PaidSubset returns the subset of ids already owned by wallet.
	PaidSubset(ctx context.Context, wallet string, ids []string) (map[string]bool, error)
	// Record marks ids as owned by wallet. Re-recording an owned chunk is a
	// no-op, which makes settlement recording idempotent.
	Record(ctx context.Context, wallet string, ids []string) error
	// Close releases backend resources.
	Close() error
}

// New constructs the configured ledger backend.
func New(cfg config.DatabaseConfig) (PurchaseLedger, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return NewPostgres(cfg)
	case "mongodb":
		return NewMongo(cfg)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// Split partitions batch into (unpaid, paid) for wallet, preserving order
// within each part.
func Split(ctx context.Context, l PurchaseLedger, wallet string, batch []chunks.Chunk) (unpaid, paid []chunks.Chunk, err error) {
	if len(batch) == 0 {
		return nil, nil, nil
	}
	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
	}
	owned, err := l.PaidSubset(ctx, wallet, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up paid chunks: %w", err)
	}
	for _, c := range batch {
		if owned[c.ID] {
			paid = append(paid, c)
		} else {
			unpaid = append(unpaid, c)
		}
	}
	return unpaid, paid, nil
}
