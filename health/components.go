package health

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

// CacheChecker round-trips a probe entry through a markup store.
type CacheChecker struct {
	name  string
	store cache.Cache
	key   string
}

// NewCacheChecker creates a checker writing probeKey. The key should sit
// outside the menu namespace so purges and probes never interfere.
func NewCacheChecker(name string, store cache.Cache, probeKey string) *CacheChecker {
	return &CacheChecker{name: name, store: store, key: probeKey}
}

// Name returns the checker name.
func (c *CacheChecker) Name() string { return c.name }

// Check writes, reads back and deletes the probe.
func (c *CacheChecker) Check(ctx context.Context) Result {
	want := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))

	if err := c.store.Set(ctx, c.key, want, time.Minute); err != nil {
		return Unhealthy("cache write failed", err)
	}
	got, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return Unhealthy("cache read failed", err)
	}
	if !ok || !bytes.Equal(got, want) {
		return Unhealthy("cache probe not readable", ErrProbeMismatch)
	}
	if err := c.store.Delete(ctx, c.key); err != nil {
		return Degraded("cache probe not deleted").WithDetails(map[string]any{"error": err.Error()})
	}
	return Healthy("cache round trip ok")
}

// BreakerChecker reports the state of a circuit breaker guarding a store.
// An open breaker means renders bypass the cache, which is degraded
// service rather than an outage.
type BreakerChecker struct {
	name string
	cb   *resilience.CircuitBreaker
}

// NewBreakerChecker creates a breaker checker.
func NewBreakerChecker(name string, cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, cb: cb}
}

// Name returns the checker name.
func (b *BreakerChecker) Name() string { return b.name }

// Check maps closed to healthy and open or half-open to degraded.
func (b *BreakerChecker) Check(context.Context) Result {
	state := b.cb.State()
	details := map[string]any{"state": state.String(), "failures": b.cb.Failures()}
	if state == resilience.StateClosed {
		return Healthy("circuit closed").WithDetails(details)
	}
	return Degraded("circuit " + state.String()).WithDetails(details)
}

// SettingsChecker loads the excluded-menu set.
type SettingsChecker struct {
	name  string
	store settings.Store
}

// NewSettingsChecker creates a settings checker.
func NewSettingsChecker(name string, store settings.Store) *SettingsChecker {
	return &SettingsChecker{name: name, store: store}
}

// Name returns the checker name.
func (s *SettingsChecker) Name() string { return s.name }

// Check loads the excluded set and reports its size.
func (s *SettingsChecker) Check(ctx context.Context) Result {
	set, err := s.store.LoadExcluded(ctx)
	if err != nil {
		return Unhealthy("settings unavailable", err)
	}
	return Healthy("settings readable").WithDetails(map[string]any{"excluded_menus": set.Len()})
}
