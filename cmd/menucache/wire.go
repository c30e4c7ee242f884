package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/theo-gk/wordpress-menu-caching/auth"
	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/cache/natskv"
	"github.com/theo-gk/wordpress-menu-caching/cache/ristretto"
	"github.com/theo-gk/wordpress-menu-caching/config"
	"github.com/theo-gk/wordpress-menu-caching/events"
	"github.com/theo-gk/wordpress-menu-caching/health"
	"github.com/theo-gk/wordpress-menu-caching/hooks"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/plugin"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

// runtime is a fully wired service plus everything that must be closed.
type runtime struct {
	cfg      *config.Config
	obs      *observe.Observer
	logger   observe.Logger
	store    cache.Cache
	breaker  *resilience.CircuitBreaker
	settings settings.Store
	svc      *menucache.Service
	plugin   *plugin.Plugin
	nc       *nats.Conn

	// evictions relays invalidations to the local tier of other replicas.
	// Nil unless an in-process tier sits in front of the shared bucket.
	evictions *events.Evictions

	// instance identifies this process in probes and logs.
	instance string

	closers []func(context.Context) error
}

func build(ctx context.Context, cfg *config.Config) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, instance: uuid.NewString()}
	defer func() {
		if err != nil {
			rt.Close(context.WithoutCancel(ctx))
		}
	}()

	if err := rt.buildObserver(ctx); err != nil {
		return nil, err
	}
	if err := rt.buildStore(ctx); err != nil {
		return nil, err
	}
	if err := rt.buildSettings(ctx); err != nil {
		return nil, err
	}

	mw, err := observe.MiddlewareFromObserver(rt.obs)
	if err != nil {
		return nil, err
	}
	rt.svc, err = menucache.NewService(ctx, menucache.Options{
		Store:      rt.store,
		Settings:   rt.settings,
		Keyer:      keyerConfig(cfg),
		TTL:        ttlPolicy(cfg),
		Exclusion:  exclusionConfig(cfg, settings.ExcludedSet{}),
		Middleware: mw,
		Peers:      rt.peers(),
	})
	if err != nil {
		return nil, fmt.Errorf("menu cache: %w", err)
	}

	rt.plugin = plugin.New(rt.svc, hooks.NewRegistry(), plugin.WithVersion(version), plugin.WithLogger(rt.logger))
	if err := rt.plugin.Bootstrap(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) buildObserver(ctx context.Context) error {
	o := rt.cfg.Observe
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: o.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingExporter != "none",
			Exporter:  o.TracingExporter,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsExporter != "none",
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{Enabled: true, Level: o.LogLevel},
	})
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	rt.obs = obs
	rt.logger = obs.Logger()
	rt.closers = append(rt.closers, obs.Shutdown)
	return nil
}

// buildStore assembles ristretto (L1) in front of a guarded NATS KV bucket
// (L2). Either tier may be switched off; with neither, markup lives in a
// process-local map.
func (rt *runtime) buildStore(ctx context.Context) error {
	var l1, l2 cache.Cache

	if rt.cfg.Cache.L1MaxCost > 0 {
		rc, err := ristretto.New(rt.cfg.Cache.L1MaxCost)
		if err != nil {
			return fmt.Errorf("ristretto: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { rc.Close(); return nil })
		l1 = rc
	}

	if rt.cfg.NATS.Bucket != "" {
		nc, err := rt.connectNATS()
		if err != nil {
			return err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("jetstream: %w", err)
		}
		kv, err := natskv.Open(ctx, js, rt.cfg.NATS.Bucket, rt.cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("nats kv %s: %w", rt.cfg.NATS.Bucket, err)
		}
		b := rt.cfg.Breaker
		guarded := cache.NewGuarded(kv, cache.GuardConfig{
			Timeout:      b.Timeout,
			MaxAttempts:  b.MaxAttempts,
			MaxFailures:  b.MaxFailures,
			ResetTimeout: b.ResetTimeout,
			OnStateChange: func(from, to resilience.State) {
				rt.logger.Warn(ctx, "remote cache circuit changed",
					observe.F("from", from.String()), observe.F("to", to.String()))
			},
		})
		rt.breaker = guarded.Breaker()
		l2 = guarded
	}

	switch {
	case l1 != nil && l2 != nil:
		rt.store = cache.NewTiered(l1, l2, rt.cfg.Cache.L1TTL)
		rt.evictions = events.NewEvictions(rt.nc, l1, events.EvictionConfig{
			Subject:        rt.cfg.NATS.EvictSubject,
			Origin:         rt.instance,
			HandlerTimeout: rt.cfg.NATS.HandlerTimeout,
		}, rt.logger)
		if err := rt.evictions.Start(ctx); err != nil {
			return err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return rt.evictions.Stop() })
	case l2 != nil:
		rt.store = l2
	case l1 != nil:
		rt.store = l1
	default:
		rt.store = cache.NewMemoryCache()
	}
	return nil
}

// peers keeps a nil relay a nil interface.
func (rt *runtime) peers() menucache.Peers {
	if rt.evictions == nil {
		return nil
	}
	return rt.evictions
}

func (rt *runtime) connectNATS() (*nats.Conn, error) {
	if rt.nc != nil {
		return rt.nc, nil
	}
	nc, err := nats.Connect(rt.cfg.NATS.URL, nats.Name("menucache"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	rt.nc = nc
	rt.closers = append(rt.closers, func(context.Context) error { return nc.Drain() })
	return nc, nil
}

func (rt *runtime) buildSettings(ctx context.Context) error {
	if rt.cfg.Settings.Backend != "postgres" {
		rt.settings = settings.NewMemoryStore(rt.cfg.Settings.Excluded...)
		return nil
	}

	pg := rt.cfg.Postgres
	if pg.Migrate {
		if err := settings.Migrate(ctx, pg.DSN); err != nil {
			return err
		}
	}
	pool, err := settings.NewPool(ctx, pg.DSN, pg.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })
	rt.settings = settings.NewPostgresStore(pool)
	return nil
}

// authenticator returns nil when no admin credential is configured.
func (rt *runtime) authenticator() auth.Authenticator {
	var auths []auth.Authenticator
	a := rt.cfg.Admin
	if a.JWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(a.JWTSecret),
			Issuer:   a.JWTIssuer,
			Audience: a.JWTAudience,
		}))
	}
	if len(a.APIKeys) > 0 {
		keys := make([]auth.APIKey, 0, len(a.APIKeys))
		for _, k := range a.APIKeys {
			principal := k.Principal
			if principal == "" {
				principal = k.ID
			}
			keys = append(keys, auth.APIKey{
				ID:        k.ID,
				Hash:      auth.HashAPIKey(k.Key),
				Principal: principal,
				Roles:     k.Roles,
			})
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator("", keys...))
	}
	switch len(auths) {
	case 0:
		return nil
	case 1:
		return auths[0]
	default:
		return auth.Chain(auths)
	}
}

func (rt *runtime) healthAggregator() *health.Aggregator {
	agg := health.NewAggregator(2 * time.Second)
	// Replicas share the remote bucket, so every instance probes its own key.
	probe := "_probe." + rt.svc.Keyer().Namespace() + "." + rt.instance
	agg.Register(health.NewCacheChecker("cache", rt.store, probe))
	agg.Register(health.NewSettingsChecker("settings", rt.settings))
	if rt.breaker != nil {
		agg.Register(health.NewBreakerChecker("remote_cache", rt.breaker))
	}
	return agg
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close(ctx context.Context) {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](ctx))
	}
	rt.closers = nil
	if err := errors.Join(errs...); err != nil && rt.logger != nil {
		rt.logger.Warn(ctx, "shutdown incomplete", observe.F("error", err))
	}
}

func keyerConfig(cfg *config.Config) menucache.KeyerConfig {
	return menucache.KeyerConfig{
		Namespace:  cfg.Cache.Namespace,
		IgnoreArgs: cfg.Cache.IgnoreArgs,
		NoCacheArg: cfg.Cache.NoCacheArg,
	}
}

func ttlPolicy(cfg *config.Config) menucache.Policy {
	return menucache.Policy{TTL: cfg.Cache.TTL, Disabled: cfg.Cache.Disabled}
}

func exclusionConfig(cfg *config.Config, excluded settings.ExcludedSet) menucache.ExclusionConfig {
	return menucache.ExclusionConfig{
		Excluded:          excluded,
		NoCacheArg:        cfg.Cache.NoCacheArg,
		AllowPersonalized: cfg.Cache.AllowPersonalized,
	}
}
