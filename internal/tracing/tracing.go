// Package tracing sets up OpenTelemetry tracing for the passthrough: one
// span per hook-chain traversal, exported over OTLP/HTTP.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OTel tracer together with the provider that owns its
// exporter, so callers get a single Shutdown to cascade on close.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Config controls exporter endpoint, service name, and sampling.
type Config struct {
	ServiceName    string
	OTLPEndpoint   string
	SampleFraction float64
}

// New builds a Tracer exporting spans to cfg.OTLPEndpoint over OTLP/HTTP.
// The returned Tracer's Shutdown must be called on process exit to flush
// pending spans.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("tracing: build otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	fraction := cfg.SampleFraction
	if fraction <= 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(fraction))),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer("github.com/jamesprial/mcp-passthrough"),
		provider: provider,
	}, nil
}

// NoOp returns a Tracer backed by OTel's no-op implementation, used when
// tracing is disabled in configuration.
func NoOp() *Tracer {
	return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("noop")}
}

// StartPipeline starts a span covering one request/response/notification
// pipeline traversal.
func (t *Tracer) StartPipeline(ctx context.Context, method string, direction string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "passthrough.pipeline",
		trace.WithAttributes(
			attribute.String("mcp.method", method),
			attribute.String("mcp.direction", direction),
		),
	)
}

// StartHook starts a span covering a single hook's handler invocation,
// nested under the pipeline span already present in ctx.
func (t *Tracer) StartHook(ctx context.Context, hookName string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "passthrough.hook",
		trace.WithAttributes(attribute.String("mcp.hook", hookName)),
	)
}

// Shutdown flushes and stops the underlying tracer provider, if any.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
