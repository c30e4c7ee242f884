// Package config loads menucache runtime configuration.
// Precedence: defaults < YAML file < environment variables. Secret-bearing
// values are then resolved through package secret.
package config

import "time"

// Config holds all runtime configuration for the menu cache service.
type Config struct {
	Server   Server   `yaml:"server"`
	Cache    Cache    `yaml:"cache"`
	Settings Settings `yaml:"settings"`
	Postgres Postgres `yaml:"postgres"`
	NATS     NATS     `yaml:"nats"`
	Breaker  Breaker  `yaml:"breaker"`
	Admin    Admin    `yaml:"admin"`
	Observe  Observe  `yaml:"observe"`

	// Secrets configures secret providers by name, e.g.
	//
	//	secrets:
	//	  file: {dir: /run/secrets}
	//	  env:  {}
	Secrets map[string]map[string]any `yaml:"secrets"`
}

// Server holds HTTP server configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Timeout         time.Duration `yaml:"timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	BodyLimit       int64         `yaml:"body_limit"`

	// InsecureHooks serves /hooks without credentials. Off by default.
	InsecureHooks bool `yaml:"insecure_hooks"`
}

// Cache configures keys, exclusion and the store tiers.
type Cache struct {
	Namespace         string        `yaml:"namespace"`
	TTL               time.Duration `yaml:"ttl"` // 0 = until invalidated
	Disabled          bool          `yaml:"disabled"`
	NoCacheArg        string        `yaml:"nocache_arg"`
	AllowPersonalized bool          `yaml:"allow_personalized"`
	IgnoreArgs        []string      `yaml:"ignore_args"`

	// L1MaxCost bounds the in-process ristretto tier in bytes. 0 disables it.
	L1MaxCost int64 `yaml:"l1_max_cost"`
	// L1TTL caps how long the in-process tier may serve an entry.
	L1TTL time.Duration `yaml:"l1_ttl"`
}

// Settings selects where the excluded-menu set lives.
type Settings struct {
	Backend      string        `yaml:"backend"` // memory|postgres
	ReloadMaxAge time.Duration `yaml:"reload_max_age"`
	Excluded     []string      `yaml:"excluded"` // seeds the memory backend
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

// NATS configures the remote markup tier and the event subscriber.
type NATS struct {
	URL              string        `yaml:"url"`
	Bucket           string        `yaml:"bucket"` // "" disables the KV tier
	Events           bool          `yaml:"events"`
	Queue            string        `yaml:"queue"`
	MenuUpdated      string        `yaml:"menu_updated_subject"`
	SiteCacheCleared string        `yaml:"site_cache_cleared_subject"`
	EvictSubject     string        `yaml:"evict_subject"` // fan-out for local tier eviction
	HandlerTimeout   time.Duration `yaml:"handler_timeout"`
}

// Breaker guards the remote tier.
type Breaker struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// Admin configures authentication for admin-ajax.
type Admin struct {
	JWTSecret   string   `yaml:"jwt_secret"`
	JWTIssuer   string   `yaml:"jwt_issuer"`
	JWTAudience string   `yaml:"jwt_audience"`
	APIKeys     []APIKey `yaml:"api_keys"`
	RateLimit   float64  `yaml:"rate_limit"` // requests per second
	RateBurst   int      `yaml:"rate_burst"`
}

// APIKey is one admin API key. Key is the plaintext (usually a secretref);
// it is hashed before use.
type APIKey struct {
	ID        string   `yaml:"id"`
	Key       string   `yaml:"key"`
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// Observe configures logging, metrics and tracing.
type Observe struct {
	ServiceName     string  `yaml:"service_name"`
	LogLevel        string  `yaml:"log_level"`
	MetricsExporter string  `yaml:"metrics_exporter"` // none|otlp|prometheus|stdout
	TracingExporter string  `yaml:"tracing_exporter"` // none|otlp|stdout
	SamplePct       float64 `yaml:"sample_pct"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Timeout:         10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			BodyLimit:       1 << 20,
		},
		Cache: Cache{
			Namespace:  "menucache",
			NoCacheArg: "nocache",
			L1MaxCost:  64 << 20,
			L1TTL:      time.Minute,
		},
		Settings: Settings{
			Backend:      "memory",
			ReloadMaxAge: 30 * time.Second,
		},
		Postgres: Postgres{
			MaxConns: 4,
		},
		NATS: NATS{
			Queue:          "menucache",
			HandlerTimeout: 10 * time.Second,
		},
		Breaker: Breaker{
			Timeout:      250 * time.Millisecond,
			MaxAttempts:  2,
			MaxFailures:  5,
			ResetTimeout: 10 * time.Second,
		},
		Admin: Admin{
			RateLimit: 2,
			RateBurst: 10,
		},
		Observe: Observe{
			ServiceName:     "menucache",
			LogLevel:        "info",
			MetricsExporter: "none",
			TracingExporter: "none",
			SamplePct:       0.1,
		},
	}
}
