// Package natskv implements cache.Cache on a NATS JetStream key-value bucket
// as the shared L2 store.
package natskv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/theo-gk/wordpress-menu-caching/cache"
)

// KeyValue is the subset of jetstream.KeyValue the cache uses.
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	ListKeysFiltered(ctx context.Context, filters ...string) (jetstream.KeyLister, error)
}

// Cache wraps a JetStream KV bucket.
//
// Expiry is a bucket setting (jetstream.KeyValueConfig.TTL), so the ttl
// argument to Set only decides whether anything is written.
type Cache struct {
	kv KeyValue
}

// New creates a NATS KV-backed cache.
func New(kv KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Open creates or updates the bucket and returns a cache on it.
// ttl of zero or cache.Forever keeps entries until they are deleted.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*Cache, error) {
	if ttl < 0 {
		ttl = 0
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "rendered navigation menu markup",
		TTL:         ttl,
	})
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

// Get retrieves a value from the bucket.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores a value in the bucket. ttl=0 stores nothing.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		return nil
	}
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	_, err := c.kv.Put(ctx, key, value)
	return err
}

// Delete removes a value from the bucket.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// DeletePrefix removes every key starting with prefix.
//
// Prefixes ending in a token separator are pushed down to the server as a
// subject filter; anything else is listed in full and matched locally.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := cache.ValidatePrefix(prefix); err != nil {
		return 0, err
	}

	filter := ">"
	if strings.HasSuffix(prefix, ".") {
		filter = prefix + ">"
	}

	lister, err := c.kv.ListKeysFiltered(ctx, filter)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, err
	}

	var matched []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	_ = lister.Stop()

	n := 0
	for _, key := range matched {
		if err := c.Delete(ctx, key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

var _ cache.Cache = (*Cache)(nil)
