// Package cache memoizes prediction results by feature fingerprint.
//
// Entries expire a fixed TTL after insertion. Expired entries are removed when
// they are next looked up; there is no background janitor and no size bound,
// the fingerprint domain being small.
package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Cache is a TTL cache safe for concurrent use. Concurrent Sets on the same key
// are last-writer-wins.
type Cache[V any] struct {
	items *gocache.Cache
	ttl   time.Duration
}

// New creates a cache whose entries live for ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	// a cleanup interval of 0 disables the janitor goroutine
	return &Cache[V]{
		items: gocache.New(ttl, 0),
		ttl:   ttl,
	}
}

// Get returns the value stored under key if it is younger than the TTL.
// A stale entry is evicted and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	x, exp, found := c.items.GetWithExpiration(key)
	// go-cache still serves an entry whose age equals the TTL
	if found && !exp.IsZero() && !time.Now().Before(exp) {
		found = false
	}
	if !found {
		// removes only expired entries, so a concurrent Set of key survives
		c.items.DeleteExpired()
		return zero, false
	}

	v, ok := x.(V)
	if !ok {
		err := fmt.Errorf("cached value for %s has type %T", key, x)
		log.Warn().Err(err).Msg("Cache error, treating as miss")
		c.items.Delete(key)
		return zero, false
	}
	return v, true
}

// Set stores v under key, replacing any previous value and resetting its age.
func (c *Cache[V]) Set(key string, v V) {
	c.items.Set(key, v, gocache.DefaultExpiration)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.items.Flush()
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	return c.items.ItemCount()
}

// TTL returns the entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}
