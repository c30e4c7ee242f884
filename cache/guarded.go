package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/resilience"
)

// Guarded wraps a remote store so that its failures are bounded in time and
// reported as ErrUnavailable. Misses are not failures and pass through.
type Guarded struct {
	inner Cache
	exec  *resilience.Executor
}

// GuardConfig configures NewGuarded.
type GuardConfig struct {
	// Timeout caps each store call. Default: 250ms.
	Timeout time.Duration

	// MaxAttempts bounds retries of a failed call. Default: 2.
	MaxAttempts int

	// MaxFailures opens the circuit after this many consecutive failed calls. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open. Default: 10s.
	ResetTimeout time.Duration

	// OnStateChange observes circuit transitions (e.g. for logging).
	OnStateChange func(from, to resilience.State)
}

// NewGuarded wraps inner with a circuit breaker, retry and timeout.
func NewGuarded(inner Cache, cfg GuardConfig) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}

	exec := resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:   cfg.MaxFailures,
			ResetTimeout:  cfg.ResetTimeout,
			OnStateChange: cfg.OnStateChange,
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 20 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
			Jitter:       true,
		})),
		resilience.WithTimeout(cfg.Timeout),
	)

	return NewGuardedWithExecutor(inner, exec)
}

// NewGuardedWithExecutor wraps inner with a caller-built executor.
func NewGuardedWithExecutor(inner Cache, exec *resilience.Executor) *Guarded {
	return &Guarded{inner: inner, exec: exec}
}

// Breaker exposes the circuit breaker for health reporting. May be nil.
func (g *Guarded) Breaker() *resilience.CircuitBreaker {
	return g.exec.CircuitBreaker()
}

// Get retrieves a value; store failures become ErrUnavailable.
func (g *Guarded) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type result struct {
		val   []byte
		found bool
	}
	// A timed-out attempt may still finish in the background.
	var res atomic.Pointer[result]
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		v, ok, err := g.inner.Get(ctx, key)
		if err != nil {
			return err
		}
		res.Store(&result{val: v, found: ok})
		return nil
	})
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	r := res.Load()
	if r == nil {
		return nil, false, nil
	}
	return r.val, r.found, nil
}

// Set stores a value; store failures become ErrUnavailable.
func (g *Guarded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value, ttl)
	})
	if err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Delete removes a value; store failures become ErrUnavailable.
func (g *Guarded) Delete(ctx context.Context, key string) error {
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Delete(ctx, key)
	})
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// DeletePrefix removes matching keys; store failures become ErrUnavailable.
func (g *Guarded) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return 0, err
	}
	var n atomic.Int64
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		removed, err := g.inner.DeletePrefix(ctx, prefix)
		n.Add(int64(removed))
		return err
	})
	if err != nil {
		return int(n.Load()), unavailable("delete prefix", err)
	}
	return int(n.Load()), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

var _ Cache = (*Guarded)(nil)
