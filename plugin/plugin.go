package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/theo-gk/wordpress-menu-caching/hooks"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
)

// Name identifies the plugin to the host.
const Name = "dc-menu-caching"

// DefaultVersion is reported when no build version is set.
const DefaultVersion = "1.0.0"

// Host hooks the plugin binds to.
const (
	HookPreRender         = "pre_wp_nav_menu"
	HookPostRender        = "wp_nav_menu"
	HookMenuUpdated       = "wp_update_nav_menu"
	HookSiteCacheCleared  = "after_rocket_clean_domain"
	ActionPurgeAll        = "dc_menu_caching_purge_all"
	ActionSaveNoCacheMenu = "dc_save_nocache_menus"

	// AjaxPrefix is prepended to admin action names to form their hook.
	AjaxPrefix = "wp_ajax_"
)

var (
	// ErrBadArgs indicates a hook was dispatched with arguments of the wrong shape.
	ErrBadArgs = errors.New("plugin: unexpected hook arguments")

	// ErrUnknownAction indicates an admin action with no registered handler.
	ErrUnknownAction = errors.New("plugin: unknown action")
)

// Plugin binds the cache's entry points to host hook names.
type Plugin struct {
	name    string
	version string
	svc     *menucache.Service
	reg     *hooks.Registry
	logger  observe.Logger
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithVersion overrides DefaultVersion.
func WithVersion(v string) Option {
	return func(p *Plugin) {
		if v != "" {
			p.version = v
		}
	}
}

// WithLogger sets the logger used for hook failures.
func WithLogger(l observe.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a plugin over svc. Call Bootstrap to register its hooks.
func New(svc *menucache.Service, reg *hooks.Registry, opts ...Option) *Plugin {
	p := &Plugin{
		name:    Name,
		version: DefaultVersion,
		svc:     svc,
		reg:     reg,
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return p.name }

// Version returns the plugin version.
func (p *Plugin) Version() string { return p.version }

// Registry returns the hook table.
func (p *Plugin) Registry() *hooks.Registry { return p.reg }

// Bootstrap registers every handler. Both render hooks run last so other
// extensions' filters see uncached behavior and the stored markup is final.
func (p *Plugin) Bootstrap() error {
	regs := []error{
		p.reg.AddFilter(HookPreRender, "show_cached_menu_html", hooks.PriorityLast, p.showCached),
		p.reg.AddFilter(HookPostRender, "save_menu_html", hooks.PriorityLast, p.saveMarkup),
		p.reg.AddAction(HookMenuUpdated, "purge_updated_menu", hooks.PriorityLast, p.purgeUpdated),
		p.reg.AddAction(HookSiteCacheCleared, "purge_all_menus", hooks.DefaultPriority, p.purgeAll),
		p.reg.AddAction(AjaxPrefix+ActionPurgeAll, "purge_all_menus_button", hooks.DefaultPriority, p.purgeAll),
		p.reg.AddAction(AjaxPrefix+ActionSaveNoCacheMenu, "save_nocache_menus", hooks.DefaultPriority, p.saveNoCache),
	}
	if err := errors.Join(regs...); err != nil {
		return fmt.Errorf("plugin: bootstrap: %w", err)
	}
	return nil
}

// RenderMenu replays the host's render flow: the pre-render filter may
// short-circuit with markup; otherwise fn renders and the post-render
// filter sees the result. Filter failures are logged and never cost the
// caller its markup.
func (p *Plugin) RenderMenu(ctx context.Context, req menucache.Request, fn menucache.RenderFunc) (string, error) {
	pre, err := p.reg.ApplyFilters(ctx, HookPreRender, nil, req)
	if err != nil {
		p.logger.Warn(ctx, "pre-render filters failed", observe.F("menu", req.Menu), observe.F("error", err))
	} else if markup, ok := pre.(string); ok {
		return markup, nil
	}

	markup, err := fn(ctx)
	if err != nil {
		return "", err
	}

	out, err := p.reg.ApplyFilters(ctx, HookPostRender, markup, req)
	if err != nil {
		p.logger.Warn(ctx, "post-render filters failed", observe.F("menu", req.Menu), observe.F("error", err))
		return markup, nil
	}
	if s, ok := out.(string); ok {
		return s, nil
	}
	return markup, nil
}

// Dispatch runs the admin action named action, as posted to admin-ajax.
func (p *Plugin) Dispatch(ctx context.Context, action string, args ...any) error {
	hook := AjaxPrefix + strings.TrimSpace(action)
	if !p.reg.Has(hook) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return p.reg.DoAction(ctx, hook, args...)
}

func (p *Plugin) showCached(ctx context.Context, value any, args ...any) (any, error) {
	if value != nil {
		return value, nil
	}
	req, err := requestArg(args)
	if err != nil {
		return value, err
	}
	if markup, hit := p.svc.PreRender(ctx, req); hit {
		return markup, nil
	}
	return nil, nil
}

func (p *Plugin) saveMarkup(ctx context.Context, value any, args ...any) (any, error) {
	markup, ok := value.(string)
	if !ok {
		return value, nil
	}
	req, err := requestArg(args)
	if err != nil {
		return value, err
	}
	return p.svc.PostRender(ctx, req, markup), nil
}

func (p *Plugin) purgeUpdated(ctx context.Context, args ...any) error {
	menu, err := menuArg(args)
	if err != nil {
		return err
	}
	_, err = p.svc.InvalidateMenu(ctx, menu)
	return err
}

func (p *Plugin) purgeAll(ctx context.Context, _ ...any) error {
	_, err := p.svc.PurgeAll(ctx)
	return err
}

func (p *Plugin) saveNoCache(ctx context.Context, args ...any) error {
	var ids []string
	if len(args) > 0 {
		switch v := args[0].(type) {
		case []string:
			ids = v
		case nil:
		default:
			return fmt.Errorf("%w: menus of type %T", ErrBadArgs, args[0])
		}
	}
	_, err := p.svc.SaveExcluded(ctx, ids)
	return err
}

func requestArg(args []any) (menucache.Request, error) {
	if len(args) > 0 {
		switch v := args[0].(type) {
		case menucache.Request:
			return v, nil
		case *menucache.Request:
			if v != nil {
				return *v, nil
			}
		}
	}
	return menucache.Request{}, fmt.Errorf("%w: want a menu request", ErrBadArgs)
}

func menuArg(args []any) (string, error) {
	if len(args) > 0 {
		switch v := args[0].(type) {
		case string:
			return v, nil
		case int:
			return fmt.Sprint(v), nil
		case int64:
			return fmt.Sprint(v), nil
		}
	}
	return "", fmt.Errorf("%w: want a menu id", ErrBadArgs)
}
