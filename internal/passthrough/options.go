package passthrough

import (
	"log/slog"
	"time"

	"github.com/jamesprial/mcp-passthrough/internal/metrics"
	"github.com/jamesprial/mcp-passthrough/internal/tracing"
)

// Option configures a Context at construction time.
type Option func(*Context)

// WithLogger injects a structured logger. If omitted, slog.Default() is
// used, matching the teacher's "nil logger falls back to default" idiom.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches a Prometheus recorder. Nil (the default) disables
// instrumentation without special-casing call sites.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Context) { c.metrics = r }
}

// WithTracer attaches an OTel tracer. Nil (the default) disables tracing.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Context) { c.tracer = t }
}

// WithOnError registers the observer invoked for non-fatal errors
// encountered by the context or its transports (spec.md §4.5, "onerror").
func WithOnError(fn func(error)) Option {
	return func(c *Context) { c.onError = fn }
}

// WithOnClose registers the observer invoked exactly once when the context
// closes (spec.md §4.5, "onclose").
func WithOnClose(fn func()) Option {
	return func(c *Context) { c.onClose = fn }
}

// WithClock overrides the time source used for _meta.timestamp annotation.
// Production callers never need this; tests use it for deterministic
// comparisons.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}
