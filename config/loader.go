package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theo-gk/wordpress-menu-caching/secret"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "menucache.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MENUCACHE_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Load returns a Config from DefaultConfigFile.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, DefaultConfigFile)
}

// LoadFrom returns a Config using the hierarchy defaults < YAML < ENV, with
// secrets resolved. The YAML file is optional.
func LoadFrom(ctx context.Context, yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := resolveSecrets(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config secrets: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "ADDR")
	setDuration(&cfg.Server.Timeout, "SERVER_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	setInt64(&cfg.Server.BodyLimit, "BODY_LIMIT")
	setBool(&cfg.Server.InsecureHooks, "INSECURE_HOOKS")

	setString(&cfg.Cache.Namespace, "NAMESPACE")
	setDuration(&cfg.Cache.TTL, "TTL")
	setBool(&cfg.Cache.Disabled, "DISABLED")
	setString(&cfg.Cache.NoCacheArg, "NOCACHE_ARG")
	setBool(&cfg.Cache.AllowPersonalized, "ALLOW_PERSONALIZED")
	setList(&cfg.Cache.IgnoreArgs, "IGNORE_ARGS")
	setInt64(&cfg.Cache.L1MaxCost, "L1_MAX_COST")
	setDuration(&cfg.Cache.L1TTL, "L1_TTL")

	setString(&cfg.Settings.Backend, "SETTINGS_BACKEND")
	setDuration(&cfg.Settings.ReloadMaxAge, "RELOAD_MAX_AGE")
	setList(&cfg.Settings.Excluded, "EXCLUDED")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PG_MAX_CONNS")
	setBool(&cfg.Postgres.Migrate, "PG_MIGRATE")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Bucket, "NATS_BUCKET")
	setBool(&cfg.NATS.Events, "NATS_EVENTS")
	setString(&cfg.NATS.Queue, "NATS_QUEUE")
	setString(&cfg.NATS.EvictSubject, "NATS_EVICT_SUBJECT")

	setInt(&cfg.Breaker.MaxFailures, "BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.ResetTimeout, "BREAKER_RESET_TIMEOUT")

	setString(&cfg.Admin.JWTSecret, "JWT_SECRET")
	setString(&cfg.Admin.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.Admin.JWTAudience, "JWT_AUDIENCE")
	setFloat64(&cfg.Admin.RateLimit, "ADMIN_RATE_LIMIT")
	setInt(&cfg.Admin.RateBurst, "ADMIN_RATE_BURST")

	setString(&cfg.Observe.LogLevel, "LOG_LEVEL")
	setString(&cfg.Observe.MetricsExporter, "METRICS_EXPORTER")
	setString(&cfg.Observe.TracingExporter, "TRACING_EXPORTER")
}

// resolveSecrets expands ${VAR} and secretref: values in the fields that
// may carry credentials.
func resolveSecrets(ctx context.Context, cfg *Config) error {
	specs := cfg.Secrets
	if specs == nil {
		specs = map[string]map[string]any{"env": nil, "file": nil}
	}
	providers, err := secret.DefaultRegistry.Build(specs)
	if err != nil {
		return err
	}
	r := secret.NewResolver(true, providers...)
	defer func() { _ = r.Close() }()

	fields := map[string]*string{
		"postgres.dsn":       &cfg.Postgres.DSN,
		"nats.url":           &cfg.NATS.URL,
		"admin.jwt_secret":   &cfg.Admin.JWTSecret,
		"admin.jwt_issuer":   &cfg.Admin.JWTIssuer,
		"admin.jwt_audience": &cfg.Admin.JWTAudience,
	}
	for i := range cfg.Admin.APIKeys {
		fields[fmt.Sprintf("admin.api_keys[%d].key", i)] = &cfg.Admin.APIKeys[i].Key
	}
	return r.ResolveFields(ctx, fields)
}

var (
	settingsBackends = []string{"memory", "postgres"}
	metricsExporters = []string{"none", "otlp", "prometheus", "stdout"}
	tracingExporters = []string{"none", "otlp", "stdout"}
	logLevels        = []string{"debug", "info", "warn", "error"}
)

// validate checks that required fields are set and consistent.
func validate(cfg *Config) error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, msg))
		}
	}

	check(cfg.Server.Addr != "", "server.addr is required")
	check(cfg.Server.BodyLimit > 0, "server.body_limit must be > 0")
	check(cfg.Cache.Namespace != "" && !strings.ContainsAny(cfg.Cache.Namespace, ". *>"),
		"cache.namespace must be non-empty without '.', ' ', '*' or '>'")
	check(cfg.Cache.L1MaxCost >= 0, "cache.l1_max_cost must be >= 0")

	check(slices.Contains(settingsBackends, cfg.Settings.Backend), "settings.backend must be memory or postgres")
	if cfg.Settings.Backend == "postgres" {
		check(cfg.Postgres.DSN != "", "postgres.dsn is required for the postgres backend")
		check(cfg.Postgres.MaxConns >= 1, "postgres.max_conns must be >= 1")
	}

	if cfg.NATS.Bucket != "" || cfg.NATS.Events {
		check(cfg.NATS.URL != "", "nats.url is required for nats.bucket or nats.events")
	}
	check(cfg.Breaker.MaxFailures >= 1, "breaker.max_failures must be >= 1")

	for i, k := range cfg.Admin.APIKeys {
		check(k.ID != "" && k.Key != "", fmt.Sprintf("admin.api_keys[%d] needs id and key", i))
	}
	check(cfg.Admin.RateLimit > 0, "admin.rate_limit must be > 0")
	check(cfg.Admin.RateBurst >= 1, "admin.rate_burst must be >= 1")

	check(slices.Contains(logLevels, cfg.Observe.LogLevel), "observe.log_level must be debug, info, warn or error")
	check(slices.Contains(metricsExporters, cfg.Observe.MetricsExporter), "observe.metrics_exporter is unknown")
	check(slices.Contains(tracingExporters, cfg.Observe.TracingExporter), "observe.tracing_exporter is unknown")
	check(cfg.Observe.SamplePct >= 0 && cfg.Observe.SamplePct <= 1, "observe.sample_pct must be within [0, 1]")

	return errors.Join(errs...)
}

// AdminEnabled reports whether any admin credential is configured.
func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != "" || len(c.Admin.APIKeys) > 0
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
