package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/cache/cachetest"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
)

// countingCache fails the first failures calls, then delegates.
type countingCache struct {
	cache.Cache
	failures int32
	calls    atomic.Int32
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.calls.Add(1) <= c.failures {
		return nil, false, errors.New("connection reset")
	}
	return c.Cache.Get(ctx, key)
}

// slowCache blocks until its context is done.
type slowCache struct{ cache.Cache }

func (slowCache) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func TestGuarded_Contract(t *testing.T) {
	cachetest.Run(t, func(*testing.T) cache.Cache {
		return cache.NewGuarded(cache.NewMemoryCache(), cache.GuardConfig{})
	})
}

func TestGuarded_RetriesTransientFailure(t *testing.T) {
	inner := &countingCache{Cache: cache.NewMemoryCache(), failures: 1}
	_ = inner.Set(context.Background(), "menucache.primary.k1", []byte("x"), cache.Forever)
	g := cache.NewGuarded(inner, cache.GuardConfig{MaxAttempts: 2})

	got, ok, err := g.Get(context.Background(), "menucache.primary.k1")
	if err != nil || !ok || string(got) != "x" {
		t.Fatalf("Get() = %q, %v, %v; want hit after retry", got, ok, err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", inner.calls.Load())
	}
}

func TestGuarded_FailuresAreUnavailable(t *testing.T) {
	down := errors.New("connection refused")
	g := cache.NewGuarded(failingCache{err: down}, cache.GuardConfig{MaxAttempts: 1})

	_, _, err := g.Get(context.Background(), "menucache.primary.k1")
	if !errors.Is(err, cache.ErrUnavailable) || !errors.Is(err, down) {
		t.Errorf("Get() error = %v, want ErrUnavailable wrapping %v", err, down)
	}

	_, err = g.DeletePrefix(context.Background(), "menucache.")
	if !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("DeletePrefix() error = %v, want ErrUnavailable", err)
	}
}

func TestGuarded_Timeout(t *testing.T) {
	g := cache.NewGuarded(slowCache{cache.NewMemoryCache()}, cache.GuardConfig{
		Timeout:     10 * time.Millisecond,
		MaxAttempts: 1,
	})

	_, _, err := g.Get(context.Background(), "menucache.primary.k1")
	if !errors.Is(err, cache.ErrUnavailable) || !errors.Is(err, resilience.ErrTimeout) {
		t.Errorf("Get() error = %v, want ErrUnavailable wrapping ErrTimeout", err)
	}
}

func TestGuarded_CircuitOpens(t *testing.T) {
	var transitions []resilience.State
	g := cache.NewGuarded(failingCache{err: errors.New("down")}, cache.GuardConfig{
		MaxAttempts:  1,
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		OnStateChange: func(_, to resilience.State) {
			transitions = append(transitions, to)
		},
	})
	ctx := context.Background()

	_, _, _ = g.Get(ctx, "menucache.primary.k1")
	_, _, _ = g.Get(ctx, "menucache.primary.k1")

	if g.Breaker().State() != resilience.StateOpen {
		t.Fatalf("breaker state = %v, want open", g.Breaker().State())
	}
	_, _, err := g.Get(ctx, "menucache.primary.k1")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Get() with open circuit = %v, want ErrCircuitOpen", err)
	}
	if len(transitions) != 1 || transitions[0] != resilience.StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}
