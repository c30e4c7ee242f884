package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theo-gk/wordpress-menu-caching/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menucache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(context.Background(), append([]string{"menucache"}, args...))
	return buf.String(), err
}

const testConfig = `
cache:
  namespace: site
  l1_max_cost: 1048576
settings:
  excluded: ["14"]
observe:
  log_level: error
`

func TestKeyCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	a, err := run(t, "--config", path, "key", "--arg", "theme_location=primary", "--arg", "depth=2", "12")
	if err != nil {
		t.Fatalf("key error = %v", err)
	}
	b, err := run(t, "--config", path, "key", "-a", "depth=2.0", "-a", "theme_location=primary", "12")
	if err != nil {
		t.Fatalf("key error = %v", err)
	}
	if a != b {
		t.Errorf("equivalent args keyed differently: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "site.12.") {
		t.Errorf("key = %q, want site.12. prefix", a)
	}

	got, err := run(t, "--config", path, "key", "14")
	if err != nil || !strings.Contains(got, "not cacheable: excluded") {
		t.Errorf("key 14 = %q, %v", got, err)
	}

	if _, err := run(t, "--config", path, "key", "--arg", "nonsense", "12"); err == nil {
		t.Error("malformed --arg accepted")
	}
	if _, err := run(t, "--config", path, "key"); err == nil {
		t.Error("missing menu accepted")
	}
}

func TestExcludeCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	got, err := run(t, "--config", path, "exclude")
	if err != nil || strings.TrimSpace(got) != "14" {
		t.Errorf("exclude = %q, %v", got, err)
	}
	got, err = run(t, "--config", path, "exclude", "footer", "12")
	if err != nil || strings.TrimSpace(got) != "12\nfooter" {
		t.Errorf("exclude footer 12 = %q, %v", got, err)
	}
	got, err = run(t, "--config", path, "exclude", "--clear")
	if err != nil || strings.TrimSpace(got) != "no excluded menus" {
		t.Errorf("exclude --clear = %q, %v", got, err)
	}
	if _, err := run(t, "--config", path, "exclude", "a b"); err == nil {
		t.Error("invalid menu id accepted")
	}
}

func TestPurgeAndInvalidate(t *testing.T) {
	path := writeConfig(t, testConfig)

	got, err := run(t, "--config", path, "purge")
	if err != nil || !strings.Contains(got, "purged 0 entries") {
		t.Errorf("purge = %q, %v", got, err)
	}
	got, err = run(t, "--config", path, "invalidate", "12", "footer")
	if err != nil || !strings.Contains(got, "12: removed 0 entries") || !strings.Contains(got, "footer: removed 0 entries") {
		t.Errorf("invalidate = %q, %v", got, err)
	}
	if _, err := run(t, "--config", path, "invalidate"); err == nil {
		t.Error("invalidate without menus succeeded")
	}
}

func TestBadConfig(t *testing.T) {
	path := writeConfig(t, "settings:\n  backend: redis\n")
	if _, err := run(t, "--config", path, "purge"); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestRuntimeAuthenticator(t *testing.T) {
	path := writeConfig(t, testConfig+`
admin:
  jwt_secret: k
  api_keys:
    - id: ops
      key: s
      roles: [administrator]
`)
	cfg, err := config.LoadFrom(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer rt.Close(context.Background())

	if rt.authenticator() == nil {
		t.Fatal("authenticator() = nil with credentials configured")
	}
	if names := rt.healthAggregator().CheckerNames(); len(names) != 2 {
		t.Errorf("checkers = %v, want cache and settings", names)
	}
}
