// Package cache implements the read-through TTL collection cache that keeps
// recipes, products, and branding metadata warm without hammering the content
// source on every request.
//
// Semantics:
//   - A fresh, non-empty collection is returned without touching the source.
//   - An empty or stale collection triggers exactly one synchronous refresh
//     attempt on the calling goroutine.
//   - A failed refresh keeps the previous items AND the previous refresh
//     timestamp, so the next read retries immediately instead of waiting out
//     a failed TTL window (stale-but-present beats empty).
//   - Concurrent reads during a refresh may each attempt their own fetch;
//     refreshes are idempotent reads of the source, so duplicates are an
//     accepted inefficiency rather than a correctness problem.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FetchFunc loads the full collection from the external source. It must honor
// ctx for cancellation and return an error on any non-success outcome.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Collection is a process-wide cache of one item collection with a TTL.
// It is safe for concurrent use.
type Collection[T any] struct {
	name  string
	ttl   time.Duration
	fetch FetchFunc[T]

	mu          sync.Mutex
	items       []T
	refreshedAt time.Time

	now func() time.Time // test seam
}

// NewCollection constructs an empty collection cache. name is used only for
// logging and health reporting.
func NewCollection[T any](name string, ttl time.Duration, fetch FetchFunc[T]) *Collection[T] {
	return &Collection[T]{
		name:  name,
		ttl:   ttl,
		fetch: fetch,
		now:   time.Now,
	}
}

// Get returns the current collection, refreshing it first when the cache is
// empty or the TTL has elapsed. On refresh failure the previous items are
// returned unchanged.
func (c *Collection[T]) Get(ctx context.Context) []T {
	c.mu.Lock()
	now := c.now()
	fresh := len(c.items) > 0 && now.Sub(c.refreshedAt) < c.ttl
	if fresh {
		items := c.items
		c.mu.Unlock()
		return items
	}
	c.mu.Unlock()

	// Refresh outside the lock; duplicate in-flight fetches are tolerated.
	items, err := c.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Str("cache", c.name).Msg("cache refresh failed, serving stale data")
		c.mu.Lock()
		stale := c.items
		c.mu.Unlock()
		return stale
	}

	c.mu.Lock()
	c.items = items
	c.refreshedAt = c.now()
	c.mu.Unlock()

	log.Info().Str("cache", c.name).Int("items", len(items)).Msg("cache refreshed")
	return items
}

// Peek returns the cached items without attempting a refresh.
func (c *Collection[T]) Peek() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Len reports the number of cached items.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Age reports how long ago the collection was last successfully refreshed.
// It returns a negative duration when no refresh has succeeded yet.
func (c *Collection[T]) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshedAt.IsZero() {
		return -1
	}
	return c.now().Sub(c.refreshedAt)
}
