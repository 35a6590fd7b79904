// Package telemetry offers minimal OpenTelemetry helpers — span creation
// and error recording — without the teacher's full OTLP exporter/collector
// configuration surface (mopentelemetry.Telemetry.InitializeTelemetry),
// which SPEC_FULL.md scopes out: this system has no metrics/collector
// backend to ship spans to, so the package builds no TracerProvider of its
// own. New takes a tracer from whatever provider is globally registered,
// and spans carry a trace ID through context without a running collector.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds the process-wide tracer used to instrument operations.
type Telemetry struct {
	ServiceName string
	Tracer      trace.Tracer
}

// New builds a Telemetry bound to serviceName, using whatever
// TracerProvider is globally registered (a no-op one if nothing else set
// it — in which case spans are created but discarded, which is the
// intended behavior outside of a traced deployment).
func New(serviceName string) *Telemetry {
	return &Telemetry{
		ServiceName: serviceName,
		Tracer:      otel.Tracer(serviceName),
	}
}

// StartSpan starts a span named name, returning the derived context and
// the span so callers can End() it and record errors on it.
func (t *Telemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, name)
}

// HandleSpanError records err on span and marks it as failed.
func HandleSpanError(span trace.Span, message string, err error) {
	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}

// TraceIDFromContext returns the hex trace id of the span carried on ctx,
// or "" if ctx carries no active span.
func TraceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().HasTraceID() {
		return ""
	}

	return span.SpanContext().TraceID().String()
}
