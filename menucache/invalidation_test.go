package menucache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
)

func seed(t *testing.T, ic *menucache.Interceptor, reqs ...menucache.Request) {
	t.Helper()
	for _, req := range reqs {
		ic.PostRender(context.Background(), req, "<ul>"+req.Menu+"</ul>")
	}
}

func TestInvalidateMenu(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctrl := menucache.NewInvalidationController(store, newKeyer(t), nil)
	ctx := context.Background()

	footer := menucache.Request{Menu: "footer"}
	seed(t, ic, primary(2), primary(3), footer)

	n, err := ctrl.InvalidateMenu(ctx, "primary")
	if err != nil || n != 2 {
		t.Fatalf("InvalidateMenu() = %d, %v; want 2, nil", n, err)
	}
	if _, hit := ic.PreRender(ctx, primary(2)); hit {
		t.Error("primary depth 2 should be gone")
	}
	if _, hit := ic.PreRender(ctx, primary(3)); hit {
		t.Error("primary depth 3 should be gone")
	}
	if _, hit := ic.PreRender(ctx, footer); !hit {
		t.Error("footer should survive")
	}

	n, err = ctrl.InvalidateMenu(ctx, "primary")
	if err != nil || n != 0 {
		t.Errorf("second InvalidateMenu() = %d, %v; want 0, nil", n, err)
	}
}

func TestInvalidateMenu_PrefixIsExact(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctrl := menucache.NewInvalidationController(store, newKeyer(t), nil)
	ctx := context.Background()

	seed(t, ic, menucache.Request{Menu: "1"}, menucache.Request{Menu: "12"})

	if n, err := ctrl.InvalidateMenu(ctx, "1"); err != nil || n != 1 {
		t.Fatalf("InvalidateMenu(1) = %d, %v; want 1, nil", n, err)
	}
	if _, hit := ic.PreRender(ctx, menucache.Request{Menu: "12"}); !hit {
		t.Error("menu 12 should survive invalidation of menu 1")
	}
}

func TestPurgeAll_LeavesForeignKeys(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctrl := menucache.NewInvalidationController(store, newKeyer(t), nil)
	ctx := context.Background()

	seed(t, ic, primary(2), menucache.Request{Menu: "footer"})
	_ = store.Set(ctx, "sessions.abc", []byte("keep"), cache.Forever)
	_ = store.Set(ctx, "menucache2.primary.x", []byte("keep"), cache.Forever)

	n, err := ctrl.PurgeAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("PurgeAll() = %d, %v; want 2, nil", n, err)
	}
	if store.Len() != 2 {
		t.Errorf("store len = %d, want 2 foreign keys left", store.Len())
	}
	if _, ok, _ := store.Get(ctx, "sessions.abc"); !ok {
		t.Error("foreign key removed")
	}

	n, err = ctrl.PurgeAll(ctx)
	if err != nil || n != 0 {
		t.Errorf("PurgeAll() on empty namespace = %d, %v", n, err)
	}
}

func TestInvalidation_FailuresSurface(t *testing.T) {
	store := newBrokenStore()
	store.failDelete = true
	ctrl := menucache.NewInvalidationController(store, newKeyer(t), nil)
	ctx := context.Background()

	if _, err := ctrl.InvalidateMenu(ctx, "primary"); !errors.Is(err, menucache.ErrInvalidationFailed) || !errors.Is(err, errBackend) {
		t.Errorf("InvalidateMenu() error = %v, want ErrInvalidationFailed wrapping backend error", err)
	}
	if _, err := ctrl.PurgeAll(ctx); !errors.Is(err, menucache.ErrInvalidationFailed) {
		t.Errorf("PurgeAll() error = %v, want ErrInvalidationFailed", err)
	}
}

func TestInvalidateMenu_InvalidID(t *testing.T) {
	ctrl := menucache.NewInvalidationController(cache.NewMemoryCache(), newKeyer(t), nil)

	for _, menu := range []string{"", "menu.*", "a b"} {
		if _, err := ctrl.InvalidateMenu(context.Background(), menu); !errors.Is(err, menucache.ErrInvalidMenu) {
			t.Errorf("InvalidateMenu(%q) error = %v, want ErrInvalidMenu", menu, err)
		}
	}
}

// relay evicts from the in-process tiers of other replicas.
type relay []cache.Cache

func (r relay) Evict(ctx context.Context, prefix string) error {
	for _, l1 := range r {
		if _, err := l1.DeletePrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

type deadRelay struct{}

func (deadRelay) Evict(context.Context, string) error { return errBackend }

func TestInvalidation_ReplicasDropLocalTier(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemoryCache()
	l1a, l1b := cache.NewMemoryCache(), cache.NewMemoryCache()

	replica := func(l1 cache.Cache, peers menucache.Peers) *menucache.Service {
		t.Helper()
		svc, err := menucache.NewService(ctx, menucache.Options{
			Store: cache.NewTiered(l1, shared, time.Minute),
			Peers: peers,
		})
		if err != nil {
			t.Fatalf("NewService() error = %v", err)
		}
		return svc
	}
	a := replica(l1a, relay{l1b})
	b := replica(l1b, relay{l1a})
	req := menucache.Request{Menu: "primary"}

	a.PostRender(ctx, req, "<ul>old</ul>")
	if _, hit := b.PreRender(ctx, req); !hit {
		t.Fatal("replica b missed the shared entry")
	}
	if l1b.Len() != 1 {
		t.Fatalf("replica b local len = %d, want backfilled entry", l1b.Len())
	}

	if n, err := a.InvalidateMenu(ctx, "primary"); err != nil || n != 1 {
		t.Fatalf("InvalidateMenu() = %d, %v; want 1, nil", n, err)
	}
	if markup, hit := b.PreRender(ctx, req); hit {
		t.Errorf("replica b served %q after invalidation on a", markup)
	}

	b.PostRender(ctx, req, "<ul>new</ul>")
	if _, hit := a.PreRender(ctx, req); !hit {
		t.Fatal("replica a missed the shared entry")
	}
	if _, err := b.PurgeAll(ctx); err != nil {
		t.Fatalf("PurgeAll() error = %v", err)
	}
	if markup, hit := a.PreRender(ctx, req); hit {
		t.Errorf("replica a served %q after purge on b", markup)
	}
}

func TestInvalidation_RelayFailureIsNotFatal(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctrl := menucache.NewInvalidationController(store, newKeyer(t), nil).WithPeers(deadRelay{})
	seed(t, ic, primary(2))

	n, err := ctrl.InvalidateMenu(context.Background(), "primary")
	if err != nil || n != 1 {
		t.Errorf("InvalidateMenu() = %d, %v; want 1, nil", n, err)
	}
}
