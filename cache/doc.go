// Package cache provides the key-value store abstraction behind the menu cache.
//
// A Cache holds rendered markup under string keys with TTL semantics:
// Forever never expires, a positive TTL expires after that duration, and a
// zero TTL stores nothing. Misses and deletes of absent keys are not errors.
//
// Implementations in this package:
//   - MemoryCache: in-process map with lazy expiry.
//   - Tiered: an L1 cache in front of an authoritative L2.
//   - Guarded: wraps a remote store with a circuit breaker, retry and timeout.
//
// Subpackages ristretto and natskv provide production L1 and L2 stores, and
// cachetest holds the behavioral contract every implementation must pass.
package cache
