package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/theo-gk/wordpress-menu-caching/events"
	"github.com/theo-gk/wordpress-menu-caching/httpapi"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the hook, admin and health endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address (overrides server.addr)",
				Sources: cli.EnvVars("MENUCACHE_LISTEN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, cmd, func(rt *runtime) error {
				if addr := cmd.String("addr"); addr != "" {
					rt.cfg.Server.Addr = addr
				}
				return serve(ctx, rt)
			})
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	cfg := rt.cfg

	opts := httpapi.Options{
		Plugin:        rt.plugin,
		Service:       rt.svc,
		Health:        rt.healthAggregator(),
		Logger:        rt.logger,
		ReloadMaxAge:  cfg.Settings.ReloadMaxAge,
		BodyLimit:     cfg.Server.BodyLimit,
		Timeout:       cfg.Server.Timeout,
		InsecureHooks: cfg.Server.InsecureHooks,
		AdminLimiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  cfg.Admin.RateLimit,
			Burst: cfg.Admin.RateBurst,
		}),
	}
	if a := rt.authenticator(); a != nil {
		opts.Authenticator = a
	} else {
		rt.logger.Warn(ctx, "no credentials configured; /admin-ajax is disabled")
		if !opts.InsecureHooks {
			rt.logger.Warn(ctx, "no credentials configured; every /hooks request will be rejected")
		}
	}
	if opts.InsecureHooks {
		rt.logger.Warn(ctx, "server.insecure_hooks is set; /hooks accepts unauthenticated requests")
	}
	if cfg.Observe.MetricsExporter == "prometheus" {
		opts.Metrics = promhttp.Handler()
	}

	if cfg.NATS.Events {
		nc, err := rt.connectNATS()
		if err != nil {
			return err
		}
		sub := events.NewSubscriber(rt.plugin.Registry(), events.Config{
			MenuUpdated:      cfg.NATS.MenuUpdated,
			SiteCacheCleared: cfg.NATS.SiteCacheCleared,
			Queue:            cfg.NATS.Queue,
			HandlerTimeout:   cfg.NATS.HandlerTimeout,
		}, rt.logger)
		if err := sub.Start(ctx, nc); err != nil {
			return err
		}
		defer func() { _ = sub.Stop() }()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(opts),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info(ctx, "menucache listening", observe.F("addr", cfg.Server.Addr), observe.F("version", version), observe.F("instance", rt.instance))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	rt.logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
