package menucache

import (
	"context"
	"fmt"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
)

// Peers relays an invalidated key prefix to the other replicas, which drop
// their in-process copies. The shared tier is already clean when Evict runs.
type Peers interface {
	Evict(ctx context.Context, prefix string) error
}

// InvalidationController drops cached markup when menus change or an
// operator purges. It runs synchronously: when a call returns nil, the
// entries are gone from the local store. Other replicas are told through
// Peers, when set.
type InvalidationController struct {
	store cache.Cache
	keyer Keyer
	mw    *observe.Middleware
	peers Peers
}

// NewInvalidationController creates a controller. A nil middleware records nothing.
func NewInvalidationController(store cache.Cache, keyer Keyer, mw *observe.Middleware) *InvalidationController {
	if mw == nil {
		mw = observe.NopMiddleware()
	}
	return &InvalidationController{store: store, keyer: keyer, mw: mw}
}

// WithPeers returns a copy of c that relays every successful invalidation
// to p. A nil p relays nothing.
func (c *InvalidationController) WithPeers(p Peers) *InvalidationController {
	cp := *c
	cp.peers = p
	return &cp
}

// InvalidateMenu removes every cached variant of menu and reports how many
// entries were removed. Nothing to remove is success.
func (c *InvalidationController) InvalidateMenu(ctx context.Context, menu string) (int, error) {
	if !ValidMenuID(menu) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMenu, menu)
	}
	meta := observe.MenuMeta{Menu: menu, Op: observe.OpInvalidate}
	n, err := c.run(ctx, meta, c.keyer.MenuPrefix(menu))
	if err != nil {
		return n, fmt.Errorf("%w: menu %s: %w", ErrInvalidationFailed, menu, err)
	}
	return n, nil
}

// PurgeAll removes every entry under the key namespace. Entries outside it
// are untouched.
func (c *InvalidationController) PurgeAll(ctx context.Context) (int, error) {
	meta := observe.MenuMeta{Op: observe.OpPurge}
	n, err := c.run(ctx, meta, c.keyer.NamespacePrefix())
	if err != nil {
		return n, fmt.Errorf("%w: purge all: %w", ErrInvalidationFailed, err)
	}
	return n, nil
}

func (c *InvalidationController) run(ctx context.Context, meta observe.MenuMeta, prefix string) (int, error) {
	ctx, span := c.mw.Tracer().StartSpan(ctx, meta)
	n, err := c.store.DeletePrefix(ctx, prefix)
	c.mw.Tracer().EndSpan(span, err)
	c.mw.Metrics().RecordInvalidation(ctx, meta, n, err)

	log := c.mw.Logger().WithMenu(meta)
	if err != nil {
		log.Error(ctx, "cache invalidation failed", observe.F("prefix", prefix), observe.F("error", err))
		return n, err
	}
	log.Info(ctx, "cache invalidated", observe.F("prefix", prefix), observe.F("removed", n))

	// Replicas that miss the relay keep their copy until the local TTL.
	if c.peers != nil {
		if perr := c.peers.Evict(ctx, prefix); perr != nil {
			log.Warn(ctx, "peer eviction failed", observe.F("prefix", prefix), observe.F("error", perr))
		}
	}
	return n, nil
}
