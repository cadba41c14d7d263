package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/uniflow/result"
)

// LoggingMiddleware logs every pipeline stage. Build one with Logging.
type LoggingMiddleware[S, A any] struct {
	logger *slog.Logger
}

var _ Full[struct{}, struct{}] = (*LoggingMiddleware[struct{}, struct{}])(nil)

// Logging returns middleware that logs action receipt at debug level,
// completion at info level and failures at error level.
func Logging[S, A any](logger *slog.Logger) *LoggingMiddleware[S, A] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware[S, A]{logger: logger}
}

// ID implements Middleware.
func (l *LoggingMiddleware[S, A]) ID() string { return "logging" }

// BeforeAction implements BeforeAction.
func (l *LoggingMiddleware[S, A]) BeforeAction(ctx context.Context, action A, _ S) error {
	l.logger.DebugContext(ctx, "action received",
		slog.String("action", ActionName(action)),
	)
	return nil
}

// AfterAction implements AfterAction.
func (l *LoggingMiddleware[S, A]) AfterAction(ctx context.Context, action A, _ S, res result.Result[S], elapsed time.Duration) error {
	l.logger.InfoContext(ctx, "action processed",
		slog.String("action", ActionName(action)),
		slog.String("result", res.String()),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// HandleError implements ErrorHandling.
func (l *LoggingMiddleware[S, A]) HandleError(ctx context.Context, err error, action A, _ S) error {
	l.logger.ErrorContext(ctx, "action failed",
		slog.String("action", ActionName(action)),
		slog.String("error", err.Error()),
	)
	return nil
}
