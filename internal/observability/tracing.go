package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for zircon spans.
const TracerName = "github.com/canonica-labs/zircon"

// Span attribute keys.
const (
	AttrRunID       = attribute.Key("zircon.run_id")
	AttrContext     = attribute.Key("zircon.context")
	AttrSeeder      = attribute.Key("zircon.seeder")
	AttrSeederCount = attribute.Key("zircon.seeder.count")
	AttrOutcome     = attribute.Key("zircon.outcome")
	AttrErrorCount  = attribute.Key("zircon.error.count")
)

// Tracer returns the tracer from tp, or from the global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(TracerName)
}

// StartSpan starts a span on tracer with the given attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks the span as failed.
// A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Outcome is the subset of a result a span needs to describe it.
type Outcome interface {
	IsSuccess() bool
	Errors() []string
}

// TagResult tags span with the outcome of a result value.
func TagResult(span trace.Span, o Outcome) {
	if o.IsSuccess() {
		span.SetAttributes(AttrOutcome.String("success"))
		return
	}
	errs := o.Errors()
	span.SetAttributes(
		AttrOutcome.String("failure"),
		AttrErrorCount.Int(len(errs)),
	)
}
