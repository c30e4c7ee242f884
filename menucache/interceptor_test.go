package menucache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

var errBackend = errors.New("backend down")

// brokenStore fails reads, writes or deletes on demand and otherwise
// delegates to a MemoryCache.
type brokenStore struct {
	*cache.MemoryCache
	failGet, failSet, failDelete bool
}

func newBrokenStore() *brokenStore {
	return &brokenStore{MemoryCache: cache.NewMemoryCache()}
}

func (b *brokenStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.failGet {
		return nil, false, errBackend
	}
	return b.MemoryCache.Get(ctx, key)
}

func (b *brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if b.failSet {
		return errBackend
	}
	return b.MemoryCache.Set(ctx, key, value, ttl)
}

func (b *brokenStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if b.failDelete {
		return 0, errBackend
	}
	return b.MemoryCache.DeletePrefix(ctx, prefix)
}

// lookupRecorder captures lookup results and write errors.
type lookupRecorder struct {
	mu      sync.Mutex
	lookups []string
	writes  []error
	renders int
}

func (r *lookupRecorder) RecordLookup(_ context.Context, _ observe.MenuMeta, result, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, result)
}

func (r *lookupRecorder) RecordWrite(_ context.Context, _ observe.MenuMeta, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, err)
}

func (r *lookupRecorder) RecordRender(context.Context, observe.MenuMeta, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
}

func (r *lookupRecorder) RecordInvalidation(context.Context, observe.MenuMeta, int, error) {}

func newInterceptor(t *testing.T, store cache.Cache, cfg menucache.ExclusionConfig) *menucache.Interceptor {
	t.Helper()
	p := menucache.NewExclusionPolicy(newKeyer(t), menucache.DefaultPolicy(), cfg)
	return menucache.NewInterceptor(store, menucache.StaticPolicy(p), nil)
}

func primary(depth int) menucache.Request {
	return menucache.Request{Menu: "primary", Args: menucache.Args{"theme_location": "header", "depth": depth}}
}

func TestInterceptor_PrimaryMenuScenario(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()

	if _, hit := ic.PreRender(ctx, primary(2)); hit {
		t.Fatal("first PreRender should miss")
	}
	if got := ic.PostRender(ctx, primary(2), "<ul>A</ul>"); got != "<ul>A</ul>" {
		t.Fatalf("PostRender() = %q, want markup unchanged", got)
	}

	markup, hit := ic.PreRender(ctx, primary(2))
	if !hit || markup != "<ul>A</ul>" {
		t.Errorf("PreRender(depth 2) = %q, %v; want <ul>A</ul>, true", markup, hit)
	}
	if _, hit := ic.PreRender(ctx, primary(3)); hit {
		t.Error("PreRender(depth 3) should miss")
	}
}

func TestInterceptor_HookShapesAgree(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()

	// The post-render hook sees args after the host merged its defaults.
	merged := menucache.Request{Menu: "primary", Args: menucache.Args{
		"theme_location": "header",
		"depth":          "2",
		"container":      "div",
		"menu_class":     "menu",
		"echo":           false,
	}}
	ic.PostRender(ctx, merged, "<ul>A</ul>")

	if markup, hit := ic.PreRender(ctx, primary(2)); !hit || markup != "<ul>A</ul>" {
		t.Errorf("PreRender() = %q, %v; want stored markup", markup, hit)
	}
}

func TestInterceptor_ExcludedMenuNeverStored(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{Excluded: settings.NewExcludedSet("footer")})
	ctx := context.Background()
	req := menucache.Request{Menu: "footer"}

	ic.PostRender(ctx, req, "<ul>F</ul>")
	if _, hit := ic.PreRender(ctx, req); hit {
		t.Error("excluded menu should never hit")
	}
	if store.Len() != 0 {
		t.Errorf("store len = %d, want 0", store.Len())
	}
}

func TestInterceptor_StoreFailuresDoNotBreakRendering(t *testing.T) {
	store := newBrokenStore()
	store.failGet, store.failSet = true, true
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()

	if markup, hit := ic.PreRender(ctx, primary(2)); hit || markup != "" {
		t.Errorf("PreRender() = %q, %v; want miss", markup, hit)
	}
	if got := ic.PostRender(ctx, primary(2), "<ul>A</ul>"); got != "<ul>A</ul>" {
		t.Errorf("PostRender() = %q", got)
	}

	got, err := ic.Render(ctx, primary(2), func(context.Context) (string, error) {
		return "<ul>fresh</ul>", nil
	})
	if err != nil || got != "<ul>fresh</ul>" {
		t.Errorf("Render() = %q, %v", got, err)
	}
}

func TestInterceptor_Render(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()

	var calls int
	fn := func(context.Context) (string, error) {
		calls++
		return "<ul>A</ul>", nil
	}

	for i := 0; i < 3; i++ {
		got, err := ic.Render(ctx, primary(2), fn)
		if err != nil || got != "<ul>A</ul>" {
			t.Fatalf("Render() = %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("render calls = %d, want 1", calls)
	}
}

func TestInterceptor_RenderErrorsAreNotCached(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()
	errRender := errors.New("template exploded")

	_, err := ic.Render(ctx, primary(2), func(context.Context) (string, error) {
		return "<partial", errRender
	})
	if !errors.Is(err, errRender) {
		t.Fatalf("Render() error = %v, want %v", err, errRender)
	}
	if store.Len() != 0 {
		t.Errorf("store len = %d after failed render", store.Len())
	}

	got, err := ic.Render(ctx, primary(2), func(context.Context) (string, error) {
		return "<ul>ok</ul>", nil
	})
	if err != nil || got != "<ul>ok</ul>" {
		t.Errorf("Render() after failure = %q, %v", got, err)
	}
}

func TestInterceptor_RenderUncacheableAlwaysRenders(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()
	req := menucache.Request{Menu: "primary", Args: menucache.Args{"nocache": true}}

	var calls int
	for i := 0; i < 2; i++ {
		_, _ = ic.Render(ctx, req, func(context.Context) (string, error) {
			calls++
			return "<ul>live</ul>", nil
		})
	}
	if calls != 2 {
		t.Errorf("render calls = %d, want 2", calls)
	}
	if store.Len() != 0 {
		t.Errorf("store len = %d, want 0", store.Len())
	}
}

func TestInterceptor_RenderCoalescesConcurrentMisses(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{})
	ctx := context.Background()

	const n = 8
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "<ul>A</ul>", nil
	}

	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = ic.Render(ctx, primary(2), fn)
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, got := range results {
		if got != "<ul>A</ul>" {
			t.Errorf("result[%d] = %q", i, got)
		}
	}
	if c := calls.Load(); c >= n {
		t.Errorf("render calls = %d, want concurrent misses coalesced", c)
	}
}

func TestInterceptor_Metrics(t *testing.T) {
	store := newBrokenStore()
	rec := &lookupRecorder{}
	mw := observe.NewMiddleware(nil, rec, nil)
	p := menucache.NewExclusionPolicy(newKeyer(t), menucache.DefaultPolicy(), menucache.ExclusionConfig{})
	ic := menucache.NewInterceptor(store, menucache.StaticPolicy(p), mw)
	ctx := context.Background()

	ic.PreRender(ctx, primary(2))
	ic.PostRender(ctx, primary(2), "<ul>A</ul>")
	ic.PreRender(ctx, primary(2))
	ic.PreRender(ctx, menucache.Request{Menu: "primary", Personalized: true})
	store.failGet = true
	ic.PreRender(ctx, primary(2))

	want := []string{observe.LookupMiss, observe.LookupHit, observe.LookupSkip, observe.LookupError}
	if len(rec.lookups) != len(want) {
		t.Fatalf("lookups = %v, want %v", rec.lookups, want)
	}
	for i := range want {
		if rec.lookups[i] != want[i] {
			t.Errorf("lookups[%d] = %q, want %q", i, rec.lookups[i], want[i])
		}
	}
	if len(rec.writes) != 1 || rec.writes[0] != nil {
		t.Errorf("writes = %v, want one successful write", rec.writes)
	}
}

func TestInterceptor_VariantsStaySeparate(t *testing.T) {
	store := cache.NewMemoryCache()
	ic := newInterceptor(t, store, menucache.ExclusionConfig{AllowPersonalized: true})
	ctx := context.Background()

	guest := menucache.Request{Menu: "account", Variant: "guest", Personalized: true}
	member := menucache.Request{Menu: "account", Variant: "member", Personalized: true}

	ic.PostRender(ctx, guest, "<ul>Log in</ul>")
	ic.PostRender(ctx, member, "<ul>Log out</ul>")

	if got, _ := ic.PreRender(ctx, guest); got != "<ul>Log in</ul>" {
		t.Errorf("guest markup = %q", got)
	}
	if got, _ := ic.PreRender(ctx, member); got != "<ul>Log out</ul>" {
		t.Errorf("member markup = %q", got)
	}
}
