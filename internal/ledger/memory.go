package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger for development and tests. Ownership does
// not survive restarts.
type Memory struct {
	mu    sync.RWMutex
	owned map[string]map[string]bool // wallet -> chunk id -> owned
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{owned: make(map[string]map[string]bool)}
}

func (m *Memory) PaidSubset(ctx context.Context, wallet string, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]bool)
	walletOwned := m.owned[wallet]
	for _, id := range ids {
		if walletOwned[id] {
			result[id] = true
		}
	}
	return result, nil
}

func (m *Memory) Record(ctx context.Context, wallet string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	walletOwned := m.owned[wallet]
	if walletOwned == nil {
		walletOwned = make(map[string]bool)
		m.owned[wallet] = walletOwned
	}
	for _, id := range ids {
		walletOwned[id] = true
	}
	return nil
}

func (m *Memory) Close() error { return nil }
