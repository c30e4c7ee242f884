// Package observe provides observability primitives for menu cache operations.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// tracing and cache metrics. Consumers wire an Observer into the render
// interceptor and the HTTP surface.
package observe
