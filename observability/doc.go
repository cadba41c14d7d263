// Package observability exports uniflow activity to Prometheus and wires
// slog into OpenTelemetry.
//
// A Collector is both a middleware and a task observer. Register it on a
// processor with WithMiddleware and on a dispatcher with
// uniflow.WithTaskObserver to get action throughput, action latency and
// task lifecycle metrics from one place.
//
// For OpenTelemetry spans and metrics per action, see the middleware
// package: middleware.Tracing and middleware.Metrics.
package observability
