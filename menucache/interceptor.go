package menucache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
)

// RenderFunc produces fresh menu markup.
type RenderFunc = observe.RenderFunc

// PolicySource hands out the current exclusion policy. Implementations may
// swap policies between calls; each hook call uses one snapshot.
type PolicySource interface {
	Policy() *ExclusionPolicy
}

type staticPolicy struct{ p *ExclusionPolicy }

func (s staticPolicy) Policy() *ExclusionPolicy { return s.p }

// StaticPolicy returns a PolicySource that always yields p.
func StaticPolicy(p *ExclusionPolicy) PolicySource {
	return staticPolicy{p: p}
}

// Interceptor is the read-through/write-through pair around the menu renderer.
//
// Store failures never reach the render path: read errors degrade to a
// miss and write errors are logged and dropped.
type Interceptor struct {
	store     cache.Cache
	policies  PolicySource
	mw        *observe.Middleware
	namespace string
	group     singleflight.Group
}

// NewInterceptor creates an interceptor. A nil middleware records nothing.
func NewInterceptor(store cache.Cache, policies PolicySource, mw *observe.Middleware) *Interceptor {
	if mw == nil {
		mw = observe.NopMiddleware()
	}
	return &Interceptor{store: store, policies: policies, mw: mw}
}

// WithNamespace tags telemetry with the key namespace.
func (i *Interceptor) WithNamespace(ns string) *Interceptor {
	i.namespace = ns
	return i
}

// PreRender returns stored markup and true when req is cacheable and a
// copy exists. Otherwise it returns "", false and rendering proceeds.
func (i *Interceptor) PreRender(ctx context.Context, req Request) (string, bool) {
	_, markup, hit := i.lookup(ctx, i.policies.Policy(), req)
	return markup, hit
}

// PostRender stores markup when req is cacheable and returns markup unchanged.
func (i *Interceptor) PostRender(ctx context.Context, req Request, markup string) string {
	p := i.policies.Policy()
	d := p.Decide(req)
	if d.Cacheable {
		i.write(ctx, req, d.Key, markup, p)
	}
	return markup
}

// Render serves req from the cache or calls fn and stores its output.
// Concurrent misses on the same key share one call to fn. Errors from fn
// are returned and nothing is stored.
func (i *Interceptor) Render(ctx context.Context, req Request, fn RenderFunc) (string, error) {
	p := i.policies.Policy()
	d, markup, hit := i.lookup(ctx, p, req)
	if hit {
		return markup, nil
	}

	render := i.mw.Wrap(i.meta(req, observe.OpRender), fn)
	if !d.Cacheable {
		return render(ctx)
	}

	v, err, _ := i.group.Do(d.Key, func() (any, error) {
		markup, err := render(ctx)
		if err != nil {
			return "", err
		}
		i.write(ctx, req, d.Key, markup, p)
		return markup, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (i *Interceptor) lookup(ctx context.Context, p *ExclusionPolicy, req Request) (Decision, string, bool) {
	meta := i.meta(req, observe.OpLookup)
	metrics := i.mw.Metrics()

	d := p.Decide(req)
	if !d.Cacheable {
		metrics.RecordLookup(ctx, meta, observe.LookupSkip, string(d.Reason))
		i.mw.Logger().WithMenu(meta).Debug(ctx, "menu not cacheable", observe.F("reason", string(d.Reason)))
		return d, "", false
	}

	val, ok, err := i.store.Get(ctx, d.Key)
	switch {
	case err != nil:
		metrics.RecordLookup(ctx, meta, observe.LookupError, "")
		i.mw.Logger().WithMenu(meta).Warn(ctx, "cache read failed, rendering",
			observe.F("key", d.Key), observe.F("error", err))
		return d, "", false
	case !ok:
		metrics.RecordLookup(ctx, meta, observe.LookupMiss, "")
		return d, "", false
	}

	metrics.RecordLookup(ctx, meta, observe.LookupHit, "")
	return d, string(val), true
}

func (i *Interceptor) write(ctx context.Context, req Request, key, markup string, p *ExclusionPolicy) {
	meta := i.meta(req, observe.OpWrite)
	err := i.store.Set(ctx, key, []byte(markup), p.TTL())
	i.mw.Metrics().RecordWrite(ctx, meta, err)
	if err != nil {
		i.mw.Logger().WithMenu(meta).Warn(ctx, "cache write failed",
			observe.F("key", key), observe.F("error", err))
	}
}

func (i *Interceptor) meta(req Request, op string) observe.MenuMeta {
	return observe.MenuMeta{
		Menu:      req.Menu,
		Namespace: i.namespace,
		Variant:   req.Variant,
		Op:        op,
	}
}
