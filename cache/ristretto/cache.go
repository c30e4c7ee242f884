// Package ristretto implements cache.Cache on dgraph-io/ristretto as an
// in-process L1 store.
package ristretto

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/theo-gk/wordpress-menu-caching/cache"
)

// Cache wraps a ristretto cache.
//
// Ristretto hashes keys and cannot enumerate them, so Cache keeps its own
// index of written keys to serve DeletePrefix. Entries the admission policy
// evicts stay in the index until the next prefix sweep notices they are gone.
type Cache struct {
	c *ristretto.Cache[string, []byte]

	// mu guards keys and orders writes against removals: a resident value
	// is always indexed.
	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates a ristretto-backed cache holding at most maxCostBytes of markup.
func New(maxCostBytes int64) (*Cache, error) {
	counters := maxCostBytes / 100 * 10 // ~10x expected items
	if counters < 1000 {
		counters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, keys: make(map[string]struct{})}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value. ttl=0 stores nothing; cache.Forever disables expiry.
// Set waits for the write buffer so a following Get observes the value.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		return nil
	}
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if ttl == cache.Forever {
		ttl = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = struct{}{}
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	c.c.Del(key)
	return nil
}

// DeletePrefix removes every indexed key starting with prefix. Only keys
// still resident are counted.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	if err := cache.ValidatePrefix(prefix); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := c.c.Get(key); ok {
			n++
		}
		c.c.Del(key)
		delete(c.keys, key)
	}
	return n, nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}

var _ cache.Cache = (*Cache)(nil)
