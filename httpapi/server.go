package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/theo-gk/wordpress-menu-caching/auth"
	"github.com/theo-gk/wordpress-menu-caching/health"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/plugin"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
)

// Defaults applied by New.
const (
	DefaultBodyLimit = 1 << 20
	DefaultTimeout   = 10 * time.Second
)

// Options configures a Server. Plugin and Service are required.
type Options struct {
	Plugin  *plugin.Plugin
	Service *menucache.Service

	// Authenticator guards /admin-ajax and /hooks. Nil leaves /admin-ajax
	// unmounted and rejects every hook request.
	Authenticator auth.Authenticator

	// InsecureHooks serves /hooks without credentials. Only for a host on
	// the same loopback or private network.
	InsecureHooks bool

	// Capabilities maps roles to capabilities. Nil means auth.DefaultRoles.
	Capabilities *auth.Capabilities

	// AdminLimiter throttles /admin-ajax. Nil disables throttling.
	AdminLimiter *resilience.RateLimiter

	// Health is mounted at /healthz, /readyz and /health when set.
	Health *health.Aggregator

	// Metrics is served at GET /metrics when set.
	Metrics http.Handler

	Logger observe.Logger

	// ReloadMaxAge reloads the exclusion policy before a hook request when
	// the loaded one is older. Zero never reloads per request.
	ReloadMaxAge time.Duration

	BodyLimit int64
	Timeout   time.Duration
}

// Server routes host requests to a plugin.
type Server struct {
	plugin  *plugin.Plugin
	svc     *menucache.Service
	logger  observe.Logger
	maxAge  time.Duration
	limit   int64
	handler http.Handler
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Capabilities == nil {
		opts.Capabilities = auth.NewCapabilities(nil)
	}

	s := &Server{
		plugin: opts.Plugin,
		svc:    opts.Service,
		logger: opts.Logger,
		maxAge: opts.ReloadMaxAge,
		limit:  opts.BodyLimit,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(opts.Timeout))

	r.Route("/hooks", func(r chi.Router) {
		if !opts.InsecureHooks {
			authn := opts.Authenticator
			if authn == nil {
				authn = auth.Chain(nil)
			}
			deny := func(w http.ResponseWriter, _ *http.Request, status int, _ error) {
				writeError(w, status, http.StatusText(status))
			}
			r.Use(auth.RequireCapability(authn, opts.Capabilities, auth.CapRenderHooks, deny))
		}
		r.Use(s.reloadPolicy)
		r.Post("/pre-render", s.handlePreRender)
		r.Post("/render", s.handleRender)
		r.Post("/menu-updated", s.handleMenuUpdated)
		r.Post("/site-cache-cleared", s.handleSiteCacheCleared)
	})

	if opts.Authenticator != nil {
		deny := func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			writeAjax(w, status, err)
		}
		r.With(
			rateLimit(opts.AdminLimiter),
			auth.RequireCapability(opts.Authenticator, opts.Capabilities, auth.CapManageOptions, deny),
		).Post("/admin-ajax", s.handleAdminAjax)
	}

	if opts.Health != nil {
		health.Mount(r, opts.Health)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	s.handler = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) reloadPolicy(next http.Handler) http.Handler {
	if s.maxAge <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.svc.ReloadIfStale(r.Context(), s.maxAge)
		next.ServeHTTP(w, r)
	})
}
