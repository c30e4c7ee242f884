package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Forever is the TTL sentinel for entries that never expire on their own.
// They live until explicitly deleted.
const Forever time.Duration = -1

// Sentinel errors for cache operations.
var (
	ErrNilCache    = errors.New("cache: cache is nil")
	ErrInvalidKey  = errors.New("cache: key is invalid")
	ErrKeyTooLong  = errors.New("cache: key exceeds max length")
	ErrUnavailable = errors.New("cache: store unavailable")
)

// Cache is the interface over a TTL-capable key-value store holding rendered markup.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods should honor cancellation/deadlines where applicable.
//   - Errors: a miss is (nil, false, nil), never an error. Errors mean the
//     store itself failed.
//   - Writes are upserts; last writer wins.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false, nil) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. ttl=Forever disables expiry, ttl=0 stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and reports how
	// many were removed. Keys outside the prefix are never touched.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ValidatePrefix checks that a bulk-delete prefix is non-empty.
// An empty prefix would match every key in a shared store.
func ValidatePrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return ErrInvalidKey
	}
	return ValidateKey(prefix)
}

// ExpiresAt converts a TTL into an absolute deadline.
// The zero time means the entry never expires.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
