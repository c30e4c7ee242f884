package observe

import (
	"errors"

	"github.com/theo-gk/wordpress-menu-caching/observe/exporters"
)

var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")
	ErrNilObserver            = errors.New("observe: observer is nil")

	// ErrEndpointNotConfigured is returned for the otlp exporters when no
	// OTEL_EXPORTER_OTLP_* endpoint variable is set.
	ErrEndpointNotConfigured = exporters.ErrEndpointNotConfigured
)

const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

// Accepted Config values. The empty string is accepted everywhere and
// behaves like "none" (or "info" for the log level).
var (
	ValidTracingExporters = []string{"otlp", "stdout", "none", ""}
	ValidMetricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}
	ValidLogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// RedactedFields are log keys whose values are replaced with [REDACTED].
// Matching is exact and applies to menu-scoped fields as well.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
	"dsn",
	"jwt_secret",
	"nats_url",
}
