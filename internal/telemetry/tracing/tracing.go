// Package tracing wraps go.opentelemetry.io/otel's Tracer with the
// scheduling core's span-per-component naming, using the real OTel SDK
// directly rather than a hand-rolled tracer abstraction.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/edgevec/schedcore"

// Tracer starts spans under a fixed instrumentation scope.
type Tracer struct {
	tracer trace.Tracer
}

// New constructs a Tracer backed by the global OTel TracerProvider,
// or provider if given explicitly (tests construct their own SDK
// TracerProvider to capture spans without a collector).
func New(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(instrumentationName)}
}

// StartEpoch starts the one root span an epoch runs under.
func (t *Tracer) StartEpoch(ctx context.Context, epochID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "schedcore.epoch", trace.WithAttributes(
		attribute.String("epoch_id", epochID),
	))
}

// StartComponent starts a child span for one component's work within an
// epoch (candidate generation, policy selection, grant issuance).
func (t *Tracer) StartComponent(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "schedcore."+name)
}

// TraceSpanIDs extracts the current trace/span IDs from ctx for log
// correlation, returning empty strings if ctx carries no active span.
func TraceSpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
