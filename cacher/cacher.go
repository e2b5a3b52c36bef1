// Package cacher memoises values that are expensive to produce, such as the
// text render of a large board, behind a small interface.
package cacher

import (
	"context"
	"time"
)

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher caches values with fetch-on-miss. Implementations must be safe for
// concurrent use and must run at most one fetch per key at a time.
type Cacher[T any] interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn, stores
	// its result with the given TTL and returns it. A failed fetch is not cached.
	//
	// Parameters:
	//   - ctx: Context for cancellation, passed on to fetchFn
	//   - key: The cache key
	//   - ttl: Time-to-live for a freshly fetched value
	//   - fetchFn: Function producing the value on a miss
	//
	// Returns:
	//   - The cached or fetched value
	//   - An error if the context is done or fetchFn fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Delete removes a key from the cache. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ItemCount returns the number of items in the cache. Expired items may be
	// counted until the next cleanup.
	ItemCount(ctx context.Context) (int, error)
}
