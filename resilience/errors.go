package resilience

import "errors"

var (
	// ErrCircuitOpen rejects a call while the breaker is open. Callers on
	// the render path treat it as a cache miss.
	ErrCircuitOpen = errors.New("resilience: circuit open")

	// ErrRateLimitExceeded rejects a call once the token bucket is empty.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrTimeout is returned when one attempt outlives its deadline.
	ErrTimeout = errors.New("resilience: attempt timed out")
)
