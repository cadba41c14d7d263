package observability

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a slog.Logger that emits records through the global
// OpenTelemetry LoggerProvider, correlated with the active span. Pass it
// to uniflow.WithLogger to ship dispatcher logs alongside traces.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}
