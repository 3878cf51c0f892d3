// Package cacheutil holds the locking skeletons shared by cached
// repositories, so each cache only supplies its check and fetch steps.
package cacheutil

import (
	"sync"
	"time"
)

// CachedValue pairs a value with the time it was fetched; callers
// compare FetchedAt against their TTL.
type CachedValue[T any] struct {
	Value     T
	FetchedAt time.Time
}

// ReadThrough serves from cache under a read lock and falls back to
// fetchAndCache under the write lock. The cache is re-checked after
// lock promotion, with a fresh timestamp, so a concurrent fill is not
// fetched twice or treated as already expired.
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

	if value, ok := checkCache(time.Now()); ok {
		return value, nil
	}
	return fetchAndCache(time.Now())
}

// WriteThrough runs the write and invalidates the cache only when the
// write succeeded; a failed write leaves the cache serving the old,
// still-valid value.
func WriteThrough(invalidate func(), write func() error) error {
	if err := write(); err != nil {
		return err
	}
	invalidate()
	return nil
}
