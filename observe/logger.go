package observe

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/apex/log"
)

// ParseLogLevel maps a level name to an apex level. Unknown names map to info.
func ParseLogLevel(s string) log.Level {
	level, err := log.ParseLevel(s)
	if err != nil || level == log.FatalLevel {
		return log.InfoLevel
	}
	return level
}

// NewLogger returns a JSON-lines logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON-lines logger writing to w. Each line
// carries timestamp, level and msg next to the flattened fields.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &apexLogger{entry: log.NewEntry(&log.Logger{
		Handler: &lineHandler{w: w},
		Level:   ParseLogLevel(level),
	})}
}

type apexLogger struct {
	entry *log.Entry
}

// WithMenu returns a logger that stamps every line with the menu context.
// Empty members are left out.
func (l *apexLogger) WithMenu(meta MenuMeta) Logger {
	fields := log.Fields{}
	for key, value := range map[string]string{
		"menu.id":        meta.Menu,
		"menu.namespace": meta.Namespace,
		"menu.variant":   meta.Variant,
		"cache.op":       meta.Op,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return &apexLogger{entry: l.entry.WithFields(fields)}
}

func (l *apexLogger) Debug(_ context.Context, msg string, fields ...Field) {
	l.with(fields).Debug(msg)
}

func (l *apexLogger) Info(_ context.Context, msg string, fields ...Field) {
	l.with(fields).Info(msg)
}

func (l *apexLogger) Warn(_ context.Context, msg string, fields ...Field) {
	l.with(fields).Warn(msg)
}

func (l *apexLogger) Error(_ context.Context, msg string, fields ...Field) {
	l.with(fields).Error(msg)
}

func (l *apexLogger) with(fields []Field) *log.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	f := make(log.Fields, len(fields))
	for _, field := range fields {
		f[field.Key] = field.Value
	}
	return l.entry.WithFields(f)
}

// lineHandler renders apex entries as flat JSON objects, one per line.
type lineHandler struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *lineHandler) HandleLog(e *log.Entry) error {
	line := make(map[string]any, len(e.Fields)+3)
	for key, value := range e.Fields {
		line[key] = scrub(key, value)
	}
	line["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	line["level"] = e.Level.String()
	line["msg"] = e.Message

	data, err := json.Marshal(line)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(data, '\n'))
	return err
}

func scrub(key string, value any) any {
	if _, ok := redactedKeys[key]; ok {
		return "[REDACTED]"
	}
	if err, ok := value.(error); ok && err != nil {
		return err.Error()
	}
	return value
}

var redactedKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = struct{}{}
	}
	return m
}()

var _ Logger = (*apexLogger)(nil)
