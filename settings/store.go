package settings

import (
	"context"
	"errors"
	"sync"
)

// OptionNoCacheMenus is the option name holding the excluded set.
const OptionNoCacheMenus = "dc_menu_caching_nocache_menus"

// ErrStoreUnavailable indicates the backing store could not be read or written.
var ErrStoreUnavailable = errors.New("settings: store unavailable")

// Store persists the excluded set.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - A missing option loads as the empty set, not an error.
// - SaveExcluded replaces the whole set.
type Store interface {
	LoadExcluded(ctx context.Context) (ExcludedSet, error)
	SaveExcluded(ctx context.Context, set ExcludedSet) error
}

// MemoryStore keeps the excluded set in process.
type MemoryStore struct {
	mu  sync.RWMutex
	set ExcludedSet
}

// NewMemoryStore creates a store seeded with ids.
func NewMemoryStore(ids ...string) *MemoryStore {
	return &MemoryStore{set: NewExcludedSet(ids...)}
}

// LoadExcluded returns the current set.
func (s *MemoryStore) LoadExcluded(ctx context.Context) (ExcludedSet, error) {
	if err := ctx.Err(); err != nil {
		return ExcludedSet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set, nil
}

// SaveExcluded replaces the set.
func (s *MemoryStore) SaveExcluded(ctx context.Context, set ExcludedSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
