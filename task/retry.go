package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/uniflow/backoff"
)

// permanentError marks an error that Retry must not retry.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry gives up immediately. It returns nil
// for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry wraps op so that failed attempts are retried after the delay
// computed by strategy, up to maxAttempts attempts in total. maxAttempts
// <= 0 retries until the task is cancelled. A nil strategy uses
// backoff.Default. Cancellation and errors wrapped with Permanent stop
// the loop at once.
func Retry[S any](op Operation[S], strategy backoff.Strategy, maxAttempts int) Operation[S] {
	if strategy == nil {
		strategy = backoff.Default()
	}
	return func(ctx context.Context, st *State[S]) error {
		for attempt := 1; ; attempt++ {
			err := op(ctx, st)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return err
			}
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			if maxAttempts > 0 && attempt >= maxAttempts {
				return fmt.Errorf("task %s: giving up after %d attempts: %w", st.TaskID(), attempt, err)
			}
			if err := Sleep(ctx, strategy.Delay(attempt)); err != nil {
				return err
			}
		}
	}
}
