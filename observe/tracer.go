package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Cache operation names used in span names, log fields and metric attributes.
const (
	OpRender     = "render"
	OpLookup     = "lookup"
	OpWrite      = "write"
	OpInvalidate = "invalidate"
	OpPurge      = "purge"
)

// MenuMeta identifies one cache operation on one menu for telemetry.
type MenuMeta struct {
	Menu      string // stable menu id, empty for namespace-wide operations
	Namespace string // cache key namespace
	Variant   string // per-context variant, if any
	Op        string // one of the Op* constants
}

// SpanName returns the deterministic span name for this operation.
// Format: menucache.<op>
func (m MenuMeta) SpanName() string {
	op := m.Op
	if op == "" {
		op = OpRender
	}
	return "menucache." + op
}

func (m MenuMeta) attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if m.Menu != "" {
		attrs = append(attrs, attribute.String("menu.id", m.Menu))
	}
	if m.Namespace != "" {
		attrs = append(attrs, attribute.String("menu.namespace", m.Namespace))
	}
	if m.Variant != "" {
		attrs = append(attrs, attribute.String("menu.variant", m.Variant))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with menu-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a cache operation.
	StartSpan(ctx context.Context, meta MenuMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta MenuMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("menu.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("menu.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NoopTracer returns a tracer whose spans record nothing.
func NoopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
