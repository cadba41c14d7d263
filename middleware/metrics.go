package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/uniflow/result"
)

// meterName is the instrumentation scope name for uniflow metrics.
const meterName = "github.com/xraph/uniflow"

// MetricsMiddleware records per-action OpenTelemetry metrics. Build one
// with Metrics or MetricsWithMeter.
type MetricsMiddleware[S, A any] struct {
	duration  metric.Float64Histogram
	processed metric.Int64Counter
}

// Metrics returns middleware that records action metrics on the global
// MeterProvider. Without a configured provider noop instruments are used.
//
// Instruments:
//   - uniflow.action.duration (Float64Histogram): seconds from the start
//     of processing to the after stage, attributes: action, result
//   - uniflow.action.processed (Int64Counter): processed actions,
//     attributes: action, status ("ok" or "error")
func Metrics[S, A any]() *MetricsMiddleware[S, A] {
	return MetricsWithMeter[S, A](otel.Meter(meterName))
}

// MetricsWithMeter is Metrics with an explicit meter.
func MetricsWithMeter[S, A any](meter metric.Meter) *MetricsMiddleware[S, A] {
	// On error the API hands back noop instruments, so the middleware
	// degrades to a pass-through.
	duration, _ := meter.Float64Histogram(
		"uniflow.action.duration",
		metric.WithDescription("Duration of action processing in seconds"),
		metric.WithUnit("s"),
	)
	processed, _ := meter.Int64Counter(
		"uniflow.action.processed",
		metric.WithDescription("Total number of processed actions"),
		metric.WithUnit("{action}"),
	)
	return &MetricsMiddleware[S, A]{duration: duration, processed: processed}
}

// ID implements Middleware.
func (m *MetricsMiddleware[S, A]) ID() string { return "metrics" }

// AfterAction implements AfterAction.
func (m *MetricsMiddleware[S, A]) AfterAction(ctx context.Context, action A, _ S, res result.Result[S], elapsed time.Duration) error {
	name := ActionName(action)
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("action", name),
		attribute.String("result", res.Kind().String()),
	))
	m.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", name),
		attribute.String("status", "ok"),
	))
	return nil
}

// HandleError implements ErrorHandling.
func (m *MetricsMiddleware[S, A]) HandleError(ctx context.Context, _ error, action A, _ S) error {
	m.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", ActionName(action)),
		attribute.String("status", "error"),
	))
	return nil
}
