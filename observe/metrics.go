package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes recorded by CacheMetrics.RecordLookup.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupSkip  = "skip"
	LookupError = "error"
)

// CacheMetrics records menu cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type CacheMetrics interface {
	// RecordLookup counts a pre-render lookup with its outcome.
	// reason is the exclusion rule that fired for skips, empty otherwise.
	RecordLookup(ctx context.Context, meta MenuMeta, result, reason string)

	// RecordWrite counts a post-render store write.
	RecordWrite(ctx context.Context, meta MenuMeta, err error)

	// RecordRender records the duration of an underlying render.
	RecordRender(ctx context.Context, meta MenuMeta, duration time.Duration, err error)

	// RecordInvalidation counts an invalidation and the entries it removed.
	RecordInvalidation(ctx context.Context, meta MenuMeta, removed int, err error)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	writes       metric.Int64Counter
	renderHist   metric.Float64Histogram
	invalidation metric.Int64Counter
	removed      metric.Int64Counter
}

// NewCacheMetrics registers the cache instruments on meter.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	lookups, err := meter.Int64Counter(
		"menucache.lookups",
		metric.WithDescription("Pre-render cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter(
		"menucache.writes",
		metric.WithDescription("Post-render cache writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	renderHist, err := meter.Float64Histogram(
		"menucache.render.duration_ms",
		metric.WithDescription("Menu render duration on cache miss in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invalidation, err := meter.Int64Counter(
		"menucache.invalidations",
		metric.WithDescription("Invalidation requests"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	removed, err := meter.Int64Counter(
		"menucache.invalidated_entries",
		metric.WithDescription("Cache entries removed by invalidation"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		writes:       writes,
		renderHist:   renderHist,
		invalidation: invalidation,
		removed:      removed,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta MenuMeta, result, reason string) {
	attrs := append(meta.attributes(), attribute.String("result", result))
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordWrite(ctx context.Context, meta MenuMeta, err error) {
	attrs := append(meta.attributes(), attribute.Bool("error", err != nil))
	m.writes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordRender(ctx context.Context, meta MenuMeta, duration time.Duration, err error) {
	attrs := append(meta.attributes(), attribute.Bool("error", err != nil))
	m.renderHist.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordInvalidation(ctx context.Context, meta MenuMeta, removed int, err error) {
	op := meta.Op
	if op == "" {
		op = OpInvalidate
	}
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.Bool("error", err != nil),
	}
	opt := metric.WithAttributes(attrs...)
	m.invalidation.Add(ctx, 1, opt)
	if removed > 0 {
		m.removed.Add(ctx, int64(removed), opt)
	}
}

// NoopMetrics returns metrics that record nothing.
func NoopMetrics() CacheMetrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, MenuMeta, string, string)       {}
func (noopMetrics) RecordWrite(context.Context, MenuMeta, error)                 {}
func (noopMetrics) RecordRender(context.Context, MenuMeta, time.Duration, error) {}
func (noopMetrics) RecordInvalidation(context.Context, MenuMeta, int, error)     {}
