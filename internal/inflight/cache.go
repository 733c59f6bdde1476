// Package inflight implements the In-Flight Cache: a TTL-bounded set of
// request IDs currently being executed, preventing the Executor from
// submitting the same relay twice across nearly-simultaneous ticks.
package inflight

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults from the spec.
const (
	DefaultTTL      = 30 * time.Second
	DefaultCapacity = 1000
)

// Cache is a thread-safe TTL map keyed on canonical request ID.
// Presence means "the executor has taken responsibility for this
// request within the TTL window". Capacity is enforced with LRU
// eviction, per spec.md's "hard cap on entries... eviction is
// LRU/FIFO when capped".
type Cache struct {
	entries *lru.LRU[string, struct{}]
	ttl     time.Duration
}

// New builds an in-flight cache with the default TTL and capacity.
func New() *Cache {
	return NewWithLimits(DefaultCapacity, DefaultTTL)
}

// NewWithLimits builds an in-flight cache with explicit capacity/TTL,
// for tests and config-driven overrides.
func NewWithLimits(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		entries: lru.NewLRU[string, struct{}](capacity, nil, ttl),
		ttl:     ttl,
	}
}

// Has reports whether id is currently in flight.
func (c *Cache) Has(id string) bool {
	return c.entries.Contains(id)
}

// Set marks id as in flight using this cache's configured TTL. Must be
// called by the Executor before its first on-chain side effect for id.
func (c *Cache) Set(id string) {
	c.entries.Add(id, struct{}{})
}

// Delete removes id from the cache, allowing a retry on a subsequent
// tick. Must be called by the Executor on irrecoverable trade failure.
func (c *Cache) Delete(id string) {
	c.entries.Remove(id)
}

// Len returns the current number of live (non-expired) entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
