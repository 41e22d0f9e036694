// Package cache tracks when each uploaded document was first seen. Entries
// are keyed by document id and hold the time they were written, which lets
// the service evict the oldest uploads once the cache grows past its bound.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for keys that are not cached.
var ErrNotFound = errors.New("cache entry not found")

// Cache is a set of keys ordered by insertion time. Timestamps have
// millisecond resolution; ties are broken by key.
type Cache interface {
	// Set records key with the current time unless it is already present.
	// It reports whether the key was written.
	Set(ctx context.Context, key string) (bool, error)
	// Get returns the time key was recorded.
	Get(ctx context.Context, key string) (time.Time, error)
	// Oldest returns the i-th oldest key, 0 being the oldest.
	Oldest(ctx context.Context, i int) (string, error)
	// Delete removes key and reports whether it was present.
	Delete(ctx context.Context, key string) (bool, error)
	// Keys lists every key from oldest to newest.
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Evict deletes the oldest keys until at most max remain and returns the
// evicted keys. A non-positive max disables eviction.
func Evict(ctx context.Context, c Cache, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	n, err := c.Len(ctx)
	if err != nil {
		return nil, err
	}

	var evicted []string
	for ; n > max; n-- {
		key, err := c.Oldest(ctx, 0)
		if err != nil {
			return evicted, err
		}
		if _, err := c.Delete(ctx, key); err != nil {
			return evicted, err
		}
		evicted = append(evicted, key)
	}
	return evicted, nil
}
