// Package cacheutil provides a small read-through cache helper shared by
// components that memoize expensive lookups.
package cacheutil

import (
	"sync"
	"time"
)

// CachedValue pairs a cached value with the time it was fetched, so callers
// can apply their own TTL when checking freshness.
type CachedValue[T any] struct {
	Value     T
	FetchedAt time.Time
}

// ReadThrough serves a value from cache when checkCache reports a hit, and
// otherwise fetches and stores it under the write lock. The cache is
// re-checked after lock promotion, so concurrent misses for the same key
// trigger only one fetch. checkCache runs under at least a read lock;
// fetchAndCache runs under the write lock and is responsible for storing the
// value it returns.
func ReadThrough[T any](
	mu *sync.RWMutex,
	checkCache func(now time.Time) (T, bool),
	fetchAndCache func(now time.Time) (T, error),
) (T, error) {
	now := time.Now()
	mu.RLock()
	if value, ok := checkCache(now); ok {
		mu.RUnlock()
		return value, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Another goroutine may have filled the cache between the two locks.
	now = time.Now()
	if value, ok := checkCache(now); ok {
		return value, nil
	}
	return fetchAndCache(now)
}
