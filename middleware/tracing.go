package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/uniflow/result"
)

// tracerName is the instrumentation scope name for uniflow tracing.
const tracerName = "github.com/xraph/uniflow"

// TracingMiddleware records one span per processed action. Build one
// with Tracing or TracingWithProvider.
type TracingMiddleware[S, A any] struct {
	tracer trace.Tracer
}

// Tracing returns middleware that records action processing as spans on
// the global TracerProvider. Without a configured provider the noop
// tracer is used and the middleware costs next to nothing.
//
// Successful actions produce a span back-dated to when processing began,
// with attributes uniflow.action and uniflow.result. Failed actions
// produce a span with status codes.Error and the error recorded.
func Tracing[S, A any]() *TracingMiddleware[S, A] {
	return TracingWithProvider[S, A](otel.GetTracerProvider())
}

// TracingWithProvider is Tracing with an explicit TracerProvider.
func TracingWithProvider[S, A any](tp trace.TracerProvider) *TracingMiddleware[S, A] {
	return &TracingMiddleware[S, A]{tracer: tp.Tracer(tracerName)}
}

// ID implements Middleware.
func (t *TracingMiddleware[S, A]) ID() string { return "tracing" }

// AfterAction implements AfterAction.
func (t *TracingMiddleware[S, A]) AfterAction(ctx context.Context, action A, _ S, res result.Result[S], elapsed time.Duration) error {
	end := time.Now()
	_, span := t.tracer.Start(ctx, spanName(action),
		trace.WithTimestamp(end.Add(-elapsed)),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("uniflow.action", ActionName(action)),
			attribute.String("uniflow.result", res.Kind().String()),
		),
	)
	if id := res.ID(); id != "" {
		span.SetAttributes(attribute.String("uniflow.task_id", id))
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(end))
	return nil
}

// HandleError implements ErrorHandling.
func (t *TracingMiddleware[S, A]) HandleError(ctx context.Context, err error, action A, _ S) error {
	_, span := t.tracer.Start(ctx, spanName(action),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("uniflow.action", ActionName(action))),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return nil
}

func spanName(action any) string {
	return "uniflow.action " + ActionName(action)
}
