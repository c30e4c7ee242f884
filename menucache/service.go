package menucache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

// Options configures NewService.
type Options struct {
	// Store holds the markup. Required.
	Store cache.Cache

	// Settings persists the excluded set. Default: an empty MemoryStore.
	Settings settings.Store

	Keyer     KeyerConfig
	TTL       Policy
	Exclusion ExclusionConfig

	// Middleware carries tracing, metrics and logging. Optional.
	Middleware *observe.Middleware

	// Peers relays invalidations to replicas that keep an in-process tier
	// in front of a shared store. Optional.
	Peers Peers
}

// Service wires the key builder, exclusion policy, interceptor and
// invalidation controller around one store, and owns the excluded set.
//
// The current ExclusionPolicy is an immutable value behind an atomic
// pointer: readers never lock, and Reload or SaveExcluded swap in a
// replacement.
type Service struct {
	keyer        *DefaultKeyer
	settings     settings.Store
	interceptor  *Interceptor
	invalidation *InvalidationController
	logger       observe.Logger

	policy   atomic.Pointer[ExclusionPolicy]
	loadedAt atomic.Int64 // unix nanos of the last successful load

	saveMu sync.Mutex
}

// NewService builds a service and loads the excluded set once.
func NewService(ctx context.Context, opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, ErrNilStore
	}
	if opts.Settings == nil {
		opts.Settings = settings.NewMemoryStore()
	}
	if opts.Middleware == nil {
		opts.Middleware = observe.NopMiddleware()
	}

	if opts.Keyer.NoCacheArg == "" {
		opts.Keyer.NoCacheArg = opts.Exclusion.NoCacheArg
	}
	keyer, err := NewKeyer(opts.Keyer)
	if err != nil {
		return nil, err
	}

	s := &Service{
		keyer:    keyer,
		settings: opts.Settings,
		logger:   opts.Middleware.Logger(),
	}
	s.policy.Store(NewExclusionPolicy(keyer, opts.TTL, opts.Exclusion))

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}

	s.interceptor = NewInterceptor(opts.Store, s, opts.Middleware).WithNamespace(keyer.Namespace())
	s.invalidation = NewInvalidationController(opts.Store, keyer, opts.Middleware).WithPeers(opts.Peers)
	return s, nil
}

// Policy returns the current exclusion policy.
func (s *Service) Policy() *ExclusionPolicy {
	return s.policy.Load()
}

// Keyer returns the key builder.
func (s *Service) Keyer() *DefaultKeyer { return s.keyer }

// Interceptor returns the render hooks.
func (s *Service) Interceptor() *Interceptor { return s.interceptor }

// Invalidation returns the invalidation controller.
func (s *Service) Invalidation() *InvalidationController { return s.invalidation }

// Reload reads the excluded set from the settings store and swaps in a new
// policy. On error the current policy stays in place.
func (s *Service) Reload(ctx context.Context) error {
	set, err := s.settings.LoadExcluded(ctx)
	if err != nil {
		return fmt.Errorf("menucache: reload excluded menus: %w", err)
	}
	s.swap(set)
	return nil
}

// ReloadIfStale reloads when the last successful load is older than maxAge.
// A failed reload is logged and the stale policy kept, so the render path
// never fails on settings trouble.
func (s *Service) ReloadIfStale(ctx context.Context, maxAge time.Duration) {
	if time.Since(time.Unix(0, s.loadedAt.Load())) < maxAge {
		return
	}
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn(ctx, "keeping stale exclusion policy", observe.F("error", err))
	}
}

// SaveExcluded persists ids as the new excluded set and applies it.
// Concurrent saves are serialized; the last one wins.
func (s *Service) SaveExcluded(ctx context.Context, ids []string) (settings.ExcludedSet, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	set := settings.NewExcludedSet(ids...)
	for _, id := range set.IDs() {
		if !ValidMenuID(id) {
			return settings.ExcludedSet{}, fmt.Errorf("%w: %q", ErrInvalidMenu, id)
		}
	}

	if err := s.settings.SaveExcluded(ctx, set); err != nil {
		return settings.ExcludedSet{}, fmt.Errorf("menucache: save excluded menus: %w", err)
	}
	s.swap(set)
	s.logger.Info(ctx, "excluded menus saved", observe.F("count", set.Len()))
	return set, nil
}

func (s *Service) swap(set settings.ExcludedSet) {
	for {
		cur := s.policy.Load()
		if s.policy.CompareAndSwap(cur, cur.WithExcluded(set)) {
			break
		}
	}
	s.loadedAt.Store(time.Now().UnixNano())
}

// PreRender delegates to the interceptor.
func (s *Service) PreRender(ctx context.Context, req Request) (string, bool) {
	return s.interceptor.PreRender(ctx, req)
}

// PostRender delegates to the interceptor.
func (s *Service) PostRender(ctx context.Context, req Request, markup string) string {
	return s.interceptor.PostRender(ctx, req, markup)
}

// Render delegates to the interceptor.
func (s *Service) Render(ctx context.Context, req Request, fn RenderFunc) (string, error) {
	return s.interceptor.Render(ctx, req, fn)
}

// InvalidateMenu delegates to the invalidation controller.
func (s *Service) InvalidateMenu(ctx context.Context, menu string) (int, error) {
	return s.invalidation.InvalidateMenu(ctx, menu)
}

// PurgeAll delegates to the invalidation controller.
func (s *Service) PurgeAll(ctx context.Context) (int, error) {
	return s.invalidation.PurgeAll(ctx)
}
