package cache

import (
	"context"
	"time"
)

// Tiered combines an L1 (in-process) and L2 (remote) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Set, Delete and DeletePrefix operate on both levels.
type Tiered struct {
	l1       Cache
	l2       Cache
	l1Expire time.Duration
}

// NewTiered creates a tiered cache with the given L1 and L2 backends.
// l1Expire controls how long L2 backfill entries live in L1; Forever keeps
// them until invalidated.
func NewTiered(l1, l2 Cache, l1Expire time.Duration) *Tiered {
	if l1Expire == 0 {
		l1Expire = Forever
	}
	return &Tiered{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2. On L2 hit, backfills L1.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes to L2 first, then L1, so L1 never holds a value L2 rejected.
func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, value, c.l1TTL(ttl))
}

// Delete removes from both L1 and L2.
func (c *Tiered) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}

// DeletePrefix removes matching keys from both levels.
// The reported count is the L2 count, since L2 is authoritative.
func (c *Tiered) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if _, err := c.l1.DeletePrefix(ctx, prefix); err != nil {
		return 0, err
	}
	return c.l2.DeletePrefix(ctx, prefix)
}

// l1TTL never lets an L1 copy outlive its L2 original.
func (c *Tiered) l1TTL(ttl time.Duration) time.Duration {
	if c.l1Expire == Forever {
		return ttl
	}
	if ttl == Forever || ttl > c.l1Expire {
		return c.l1Expire
	}
	return ttl
}

var _ Cache = (*Tiered)(nil)
