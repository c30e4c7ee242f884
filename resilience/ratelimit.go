package resilience

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Rate refills this many tokens per second. Default: 1.
	Rate float64

	// Burst is the bucket size. Default: 5.
	Burst int
}

// RateLimiter is a token bucket shared by every caller of one endpoint.
// It starts full.
type RateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		now:     time.Now,
	}
}

// Allow takes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.AllowN(rl.now(), 1)
}

// Tokens returns the tokens available now.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.TokensAt(rl.now())
}

// RetryAfter is how long until the next token is available. It is zero
// while Allow would succeed.
func (rl *RateLimiter) RetryAfter() time.Duration {
	missing := 1 - rl.Tokens()
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(rl.limiter.Limit()) * float64(time.Second))
}
