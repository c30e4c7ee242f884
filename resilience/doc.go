// Package resilience provides the failure-handling patterns used around the
// remote cache store and the admin endpoints.
//
// The remote store (NATS KV) sits on the render path, so a slow or failing
// store must degrade to a cache miss quickly instead of stalling menu
// rendering. The patterns here bound that cost:
//
//   - Circuit Breaker: stops calling a store that keeps failing and lets a
//     single probe through after a cool-down.
//
//   - Retry: retries transient failures with exponential backoff.
//
//   - Timeout: caps the time spent on one store call.
//
//   - Rate Limiter: token bucket throttling admin-ajax requests.
//
// # Usage
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: 10 * time.Second,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(250*time.Millisecond),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return store.Delete(ctx, key)
//	})
package resilience
