package menucache

import (
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

// Policy configures how long stored markup lives.
type Policy struct {
	// TTL is the lifetime of stored markup. Zero or negative means forever:
	// entries live until invalidated.
	TTL time.Duration

	// Disabled turns caching off entirely.
	Disabled bool
}

// DefaultPolicy caches forever and relies on explicit invalidation.
func DefaultPolicy() Policy {
	return Policy{TTL: cache.Forever}
}

// NoCachePolicy disables caching.
func NoCachePolicy() Policy {
	return Policy{Disabled: true}
}

// ShouldCache reports whether caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return !p.Disabled
}

// EffectiveTTL returns the store TTL, mapping zero to cache.Forever.
func (p Policy) EffectiveTTL() time.Duration {
	if p.TTL <= 0 {
		return cache.Forever
	}
	return p.TTL
}

// Reason names the rule that made a request uncacheable.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonDisabled       Reason = "disabled"
	ReasonInvalidMenu    Reason = "invalid_menu"
	ReasonExcluded       Reason = "excluded"
	ReasonPersonalized   Reason = "personalized"
	ReasonUnserializable Reason = "unserializable"
	ReasonNoCacheArg     Reason = "nocache_arg"
	ReasonSkipRule       Reason = "skip_rule"
)

// Decision is the outcome of ExclusionPolicy.Decide. Key is set only when
// the request is cacheable.
type Decision struct {
	Cacheable bool
	Reason    Reason
	Key       string
}

// SkipRule vetoes caching for a request. It sees normalized args.
// Returns true if caching should be skipped.
type SkipRule func(req Request, args Args) bool

// DefaultNoCacheArg is the render arg that bypasses the cache when truthy.
const DefaultNoCacheArg = "nocache"

// ExclusionConfig configures NewExclusionPolicy.
type ExclusionConfig struct {
	// Excluded menus are never read from or written to the cache.
	Excluded settings.ExcludedSet

	// NoCacheArg names the per-call escape hatch. Default: DefaultNoCacheArg.
	NoCacheArg string

	// AllowPersonalized caches requests marked Personalized, trusting
	// Variant to separate visitors.
	AllowPersonalized bool

	// SkipRule is consulted last. Optional.
	SkipRule SkipRule
}

// ExclusionPolicy decides cacheability: default allow, with a deny-set and
// per-request escape hatches. It is immutable; derive a new one with
// WithExcluded.
type ExclusionPolicy struct {
	keyer Keyer
	ttl   Policy
	cfg   ExclusionConfig
}

// NewExclusionPolicy creates a policy keyed by keyer.
func NewExclusionPolicy(keyer Keyer, ttl Policy, cfg ExclusionConfig) *ExclusionPolicy {
	if cfg.NoCacheArg == "" {
		cfg.NoCacheArg = DefaultNoCacheArg
	}
	return &ExclusionPolicy{keyer: keyer, ttl: ttl, cfg: cfg}
}

// WithExcluded returns a copy of p with a different deny-set.
func (p *ExclusionPolicy) WithExcluded(set settings.ExcludedSet) *ExclusionPolicy {
	cp := *p
	cp.cfg.Excluded = set
	return &cp
}

// Excluded returns the deny-set.
func (p *ExclusionPolicy) Excluded() settings.ExcludedSet {
	return p.cfg.Excluded
}

// TTL returns the store TTL for writes.
func (p *ExclusionPolicy) TTL() time.Duration {
	return p.ttl.EffectiveTTL()
}

// Decide runs every exclusion rule and, for cacheable requests, derives
// the key. The pre- and post-render hooks both call Decide, so they agree
// on cacheability and key for the same request.
func (p *ExclusionPolicy) Decide(req Request) Decision {
	if !p.ttl.ShouldCache() {
		return Decision{Reason: ReasonDisabled}
	}
	if !ValidMenuID(req.Menu) {
		return Decision{Reason: ReasonInvalidMenu}
	}
	if p.cfg.Excluded.Contains(req.Menu) {
		return Decision{Reason: ReasonExcluded}
	}
	if req.Personalized && !p.cfg.AllowPersonalized {
		return Decision{Reason: ReasonPersonalized}
	}

	args, err := Normalize(req.Args)
	if err != nil {
		return Decision{Reason: ReasonUnserializable}
	}
	if truthy(args[p.cfg.NoCacheArg]) {
		return Decision{Reason: ReasonNoCacheArg}
	}
	if p.cfg.SkipRule != nil && p.cfg.SkipRule(req, args) {
		return Decision{Reason: ReasonSkipRule}
	}

	delete(args, p.cfg.NoCacheArg)
	key, err := p.keyer.Key(Request{Menu: req.Menu, Args: args, Variant: req.Variant})
	if err != nil {
		return Decision{Reason: ReasonUnserializable}
	}
	return Decision{Cacheable: true, Key: key}
}

// IsCacheable reports whether req may be read from or written to the cache.
func (p *ExclusionPolicy) IsCacheable(req Request) bool {
	return p.Decide(req).Cacheable
}
