package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menucache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Cache.Namespace != "menucache" || cfg.Settings.Backend != "memory" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.AdminEnabled() {
		t.Error("admin enabled without credentials")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadFrom_YAMLThenEnv(t *testing.T) {
	path := writeYAML(t, `
server:
  addr: ":9090"
cache:
  namespace: site_a
  ttl: 1h
  ignore_args: [nonce]
settings:
  backend: memory
  excluded: ["12", footer]
admin:
  api_keys:
    - id: ops
      key: plain-key
      roles: [administrator]
`)
	t.Setenv("MENUCACHE_ADDR", ":7070")
	t.Setenv("MENUCACHE_EXCLUDED", "14, 15 ,")

	cfg, err := LoadFrom(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.Server.InsecureHooks {
		t.Error("insecure hooks enabled by default")
	}
	if cfg.Cache.Namespace != "site_a" || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if got := strings.Join(cfg.Settings.Excluded, ","); got != "14,15" {
		t.Errorf("excluded = %q", got)
	}
	if !cfg.AdminEnabled() || cfg.Admin.APIKeys[0].Key != "plain-key" {
		t.Errorf("admin = %+v", cfg.Admin)
	}
}

func TestLoadFrom_ResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dsn"), []byte("postgres://app:pw@db/wp\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_MENUCACHE_JWT", "signing-key")
	t.Setenv("TEST_MENUCACHE_NATS_HOST", "nats.internal")

	path := writeYAML(t, `
secrets:
  file: {dir: `+dir+`}
  env: {prefix: TEST_}
settings:
  backend: postgres
postgres:
  dsn: secretref:file:dsn
nats:
  url: nats://${TEST_MENUCACHE_NATS_HOST}:4222
  bucket: menus
admin:
  jwt_secret: secretref:env:MENUCACHE_JWT
`)
	cfg, err := LoadFrom(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Postgres.DSN != "postgres://app:pw@db/wp" {
		t.Errorf("dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.NATS.URL != "nats://nats.internal:4222" {
		t.Errorf("nats url = %q", cfg.NATS.URL)
	}
	if cfg.Admin.JWTSecret != "signing-key" {
		t.Errorf("jwt secret = %q", cfg.Admin.JWTSecret)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"bad yaml", "server: [", nil},
		{"missing secret", "admin:\n  jwt_secret: secretref:env:MENUCACHE_TEST_ABSENT_SECRET\n", nil},
		{"postgres without dsn", "settings:\n  backend: postgres\n", ErrInvalid},
		{"unknown backend", "settings:\n  backend: redis\n", ErrInvalid},
		{"dotted namespace", "cache:\n  namespace: a.b\n", ErrInvalid},
		{"bucket without url", "nats:\n  bucket: menus\n", ErrInvalid},
		{"api key without secret", "admin:\n  api_keys:\n    - id: ops\n", ErrInvalid},
		{"bad exporter", "observe:\n  metrics_exporter: statsd\n", ErrInvalid},
		{"bad sample", "observe:\n  sample_pct: 2\n", ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), writeYAML(t, tt.yaml))
			if err == nil {
				t.Fatal("LoadFrom() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadFrom() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnv_IgnoresUnparsable(t *testing.T) {
	t.Setenv("MENUCACHE_TTL", "soon")
	t.Setenv("MENUCACHE_BREAKER_MAX_FAILURES", "7")

	cfg := Defaults()
	loadEnv(&cfg)
	if cfg.Cache.TTL != 0 {
		t.Errorf("ttl = %v, want unchanged", cfg.Cache.TTL)
	}
	if cfg.Breaker.MaxFailures != 7 {
		t.Errorf("max failures = %d", cfg.Breaker.MaxFailures)
	}
}
