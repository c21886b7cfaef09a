package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with StartSpan/RecordError helpers;
// no package in this repository constructs one or opens spans through it
// (internal/session and internal/jobs emit no spans). Grounded on 99souls-ariadne's
// OpenTelemetryTracer (NewTracerProvider + resource attribution, no
// external exporter wired by default — callers layer one on via
// Provider()).
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer constructs a TracerProvider scoped to serviceName/environment
// and registers it as the global provider, matching the teacher's
// otel.SetTracerProvider(tp) call.
func NewTracer(serviceName, environment string) *Tracer {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewWithAttributes(
			"https://opentelemetry.io/schemas/1.24.0",
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", environment),
		)),
	)
	otel.SetTracerProvider(tp)
	return &Tracer{provider: tp, tracer: otel.Tracer(serviceName)}
}

// Provider returns the underlying TracerProvider so callers can register
// span processors/exporters or shut it down.
func (t *Tracer) Provider() *sdktrace.TracerProvider { return t.provider }

// StartSpan opens a span named name with the given string attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(kvs...))
}

// RecordError attaches err to the span active on ctx, if any.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
	}
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
