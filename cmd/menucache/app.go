package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/theo-gk/wordpress-menu-caching/config"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/plugin"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = plugin.DefaultVersion

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "menucache",
		Usage:   "navigation menu markup cache",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Value:   config.DefaultConfigFile,
				Sources: cli.EnvVars("MENUCACHE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			purgeCommand(),
			invalidateCommand(),
			excludeCommand(),
			keyCommand(),
		},
	}
}

func loadConfig(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	return config.LoadFrom(ctx, cmd.String("config"))
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

// withRuntime loads configuration, wires the service and runs fn.
func withRuntime(ctx context.Context, cmd *cli.Command, fn func(*runtime) error) error {
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	rt, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))
	return fn(rt)
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "delete every cached menu",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, cmd, func(rt *runtime) error {
				n, err := rt.svc.PurgeAll(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out(cmd), "purged %s entries\n", humanize.Comma(int64(n)))
				return nil
			})
		},
	}
}

func invalidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "invalidate",
		Usage:     "delete every cached variant of the given menus",
		ArgsUsage: "MENU...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			menus := cmd.Args().Slice()
			if len(menus) == 0 {
				return fmt.Errorf("invalidate: at least one menu id is required")
			}
			return withRuntime(ctx, cmd, func(rt *runtime) error {
				for _, menu := range menus {
					n, err := rt.svc.InvalidateMenu(ctx, menu)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(out(cmd), "%s: removed %s entries\n", menu, humanize.Comma(int64(n)))
				}
				return nil
			})
		},
	}
}

func excludeCommand() *cli.Command {
	return &cli.Command{
		Name:      "exclude",
		Usage:     "show or replace the menus that are never cached",
		ArgsUsage: "[MENU...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "cache every menu again"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ids := cmd.Args().Slice()
			return withRuntime(ctx, cmd, func(rt *runtime) error {
				set := rt.svc.Policy().Excluded()
				if len(ids) > 0 || cmd.Bool("clear") {
					var err error
					if set, err = rt.svc.SaveExcluded(ctx, ids); err != nil {
						return err
					}
				}
				if set.Len() == 0 {
					_, _ = fmt.Fprintln(out(cmd), "no excluded menus")
					return nil
				}
				_, _ = fmt.Fprintln(out(cmd), strings.Join(set.IDs(), "\n"))
				return nil
			})
		},
	}
}

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "print the cache key and decision for a render request",
		ArgsUsage: "MENU",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "arg", Aliases: []string{"a"}, Usage: "render argument as name=value"},
			&cli.StringFlag{Name: "variant", Usage: "per-visitor rendering context"},
			&cli.BoolFlag{Name: "personalized", Usage: "mark the output as visitor-specific"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("key: exactly one menu id is required")
			}
			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}
			args, err := parseArgs(cmd.StringSlice("arg"))
			if err != nil {
				return err
			}

			keyer, err := menucache.NewKeyer(keyerConfig(cfg))
			if err != nil {
				return err
			}
			policy := menucache.NewExclusionPolicy(keyer, ttlPolicy(cfg), exclusionConfig(cfg, settings.NewExcludedSet(cfg.Settings.Excluded...)))
			d := policy.Decide(menucache.Request{
				Menu:         cmd.Args().First(),
				Args:         args,
				Variant:      cmd.String("variant"),
				Personalized: cmd.Bool("personalized"),
			})
			if !d.Cacheable {
				_, _ = fmt.Fprintf(out(cmd), "not cacheable: %s\n", d.Reason)
				return nil
			}
			_, _ = fmt.Fprintln(out(cmd), d.Key)
			return nil
		},
	}
}

// parseArgs turns name=value pairs into render args. Values stay strings;
// Normalize coerces depth.
func parseArgs(pairs []string) (menucache.Args, error) {
	args := make(menucache.Args, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("key: --arg %q is not name=value", p)
		}
		args[name] = value
	}
	return args, nil
}
