package observe

import (
	"context"
	"time"
)

// RenderFunc produces menu markup.
type RenderFunc func(ctx context.Context) (string, error)

// Middleware bundles the tracer, metrics and logger used around cache
// operations, and wraps render calls with all three.
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe RenderFunc.
//   - Errors: errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: markup is passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics CacheMetrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics CacheMetrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware's metrics.
func (m *Middleware) Metrics() CacheMetrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap wraps a render with a span, a duration metric and a log line.
func (m *Middleware) Wrap(meta MenuMeta, fn RenderFunc) RenderFunc {
	if meta.Op == "" {
		meta.Op = OpRender
	}
	return func(ctx context.Context) (string, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		markup, err := fn(ctx)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordRender(ctx, meta, duration, err)

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		log := m.logger.WithMenu(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Error(ctx, "menu render failed", fields...)
		} else {
			fields = append(fields, Field{Key: "bytes", Value: len(markup)})
			log.Debug(ctx, "menu rendered", fields...)
		}

		return markup, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs *Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewCacheMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
