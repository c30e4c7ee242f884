package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		out = append(out, entry)
	}
	return out
}

// TestLogger_IncludesMenuFields verifies menu fields are present in log output.
func TestLogger_IncludesMenuFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithMenu(MenuMeta{Menu: "primary", Namespace: "menucache", Op: OpWrite}).
		Info(context.Background(), "stored")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	entry := lines[0]

	want := map[string]string{
		"menu.id":        "primary",
		"menu.namespace": "menucache",
		"cache.op":       "write",
		"msg":            "stored",
		"level":          "info",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
	if _, ok := entry["menu.variant"]; ok {
		t.Error("empty variant should be omitted")
	}
	if _, ok := entry["timestamp"].(string); !ok {
		t.Error("timestamp missing")
	}
}

// TestLogger_WithMenuDoesNotLeak verifies derived loggers do not share attributes.
func TestLogger_WithMenuDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)

	_ = base.WithMenu(MenuMeta{Menu: "primary"})
	base.Info(context.Background(), "plain")

	entry := decodeLines(t, &buf)[0]
	if _, ok := entry["menu.id"]; ok {
		t.Error("base logger picked up menu.id from a derived logger")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			if got := len(decodeLines(t, &buf)); got != tt.want {
				t.Errorf("level %s wrote %d lines, want %d", tt.level, got, tt.want)
			}
		})
	}
}

// TestLogger_RedactsSensitiveFields verifies secret-bearing keys never reach the output.
func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth",
		F("token", "eyJhbGciOi"),
		F("api_key", "k-123"),
		F("dsn", "postgres://u:p@db/x"),
		F("menu", "primary"),
	)

	out := buf.String()
	for _, secret := range []string{"eyJhbGciOi", "k-123", "u:p@db"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaked %q: %s", secret, out)
		}
	}
	entry := decodeLines(t, &buf)[0]
	if entry["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entry["token"])
	}
	if entry["menu"] != "primary" {
		t.Errorf("menu = %v, want primary", entry["menu"])
	}
}

func TestLogger_ErrorValuesAreStrings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Warn(context.Background(), "store read failed", F("error", errors.New("connection refused")))

	entry := decodeLines(t, &buf)[0]
	if entry["error"] != "connection refused" {
		t.Errorf("error = %v, want connection refused", entry["error"])
	}
}

func TestParseLogLevel_RoundTrip(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(name).String(); got != name {
			t.Errorf("ParseLogLevel(%q).String() = %q", name, got)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "ignored")
	if l.WithMenu(MenuMeta{Menu: "x"}) == nil {
		t.Fatal("WithMenu should return non-nil logger")
	}
}
