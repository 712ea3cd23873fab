// Package pipeline wraps request handlers with cross-cutting behaviors such
// as timing, validation and tracing.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/errors"
	"github.com/canonica-labs/zircon/internal/observability"
)

// Handler handles one request.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Behavior wraps a handler. It may call next zero or one times.
type Behavior[Req, Resp any] func(ctx context.Context, req Req, next Handler[Req, Resp]) (Resp, error)

// Chain composes behaviors around h. The first behavior is outermost.
func Chain[Req, Resp any](h Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) Handler[Req, Resp] {
	for i := len(behaviors) - 1; i >= 0; i-- {
		b, next := behaviors[i], h
		h = func(ctx context.Context, req Req) (Resp, error) {
			return b(ctx, req, next)
		}
	}
	return h
}

// Timing logs how long the request took, at warn level above threshold.
// A zero threshold never warns.
func Timing[Req, Resp any](logger *zap.Logger, name string, threshold time.Duration) Behavior[Req, Resp] {
	logger = observability.OrNop(logger)
	return func(ctx context.Context, req Req, next Handler[Req, Resp]) (Resp, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start)

		fields := []zap.Field{zap.String("request", name), zap.Duration("elapsed", elapsed)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if threshold > 0 && elapsed > threshold {
			logger.Warn("Slow request", append(fields, zap.Duration("threshold", threshold))...)
		} else {
			logger.Debug("Request handled", fields...)
		}
		return resp, err
	}
}

// Validation rejects requests for which validate reports problems.
// The handler is not called and the error is an *errors.ErrValidationFailed.
func Validation[Req, Resp any](validate func(Req) []string) Behavior[Req, Resp] {
	return func(ctx context.Context, req Req, next Handler[Req, Resp]) (Resp, error) {
		if problems := validate(req); len(problems) > 0 {
			var zero Resp
			return zero, errors.NewValidationFailed(problems)
		}
		return next(ctx, req)
	}
}

// Tracing runs the handler inside a span named name.
func Tracing[Req, Resp any](tp trace.TracerProvider, name string) Behavior[Req, Resp] {
	tracer := observability.Tracer(tp)
	return func(ctx context.Context, req Req, next Handler[Req, Resp]) (Resp, error) {
		ctx, span := observability.StartSpan(ctx, tracer, name)
		defer span.End()

		resp, err := next(ctx, req)
		if err != nil {
			observability.RecordError(span, err)
			return resp, err
		}
		if o, ok := any(resp).(observability.Outcome); ok {
			observability.TagResult(span, o)
		}
		return resp, nil
	}
}
