package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/uniflow/result"
)

// ErrRateLimited is returned by RateLimit when an action is rejected.
var ErrRateLimited = errors.New("middleware: rate limited")

// Middleware is the base interface all middleware implement.
type Middleware interface {
	// ID returns a stable identifier used in diagnostics.
	ID() string
}

// BeforeAction runs before the handler. Returning an error skips the
// handler and the remaining before hooks.
type BeforeAction[S, A any] interface {
	Middleware
	BeforeAction(ctx context.Context, action A, state S) error
}

// AfterAction runs after the handler with the (possibly transformed)
// result and the time elapsed since processing began.
type AfterAction[S, A any] interface {
	Middleware
	AfterAction(ctx context.Context, action A, state S, res result.Result[S], elapsed time.Duration) error
}

// ErrorHandling runs when the before or after stage failed.
type ErrorHandling[S, A any] interface {
	Middleware
	HandleError(ctx context.Context, err error, action A, state S) error
}

// Full implements every capability.
type Full[S, A any] interface {
	BeforeAction[S, A]
	AfterAction[S, A]
	ErrorHandling[S, A]
}

// Stage names a point in the pipeline.
type Stage string

// Pipeline stages.
const (
	StageBefore  Stage = "before"
	StageHandler Stage = "handler"
	StageAfter   Stage = "after"
	StageError   Stage = "error"
)

// HookError reports which middleware failed at which stage.
type HookError struct {
	Stage      Stage
	Middleware string
	Err        error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("middleware %s (%s): %v", e.Middleware, e.Stage, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// PanicError is the error produced when a hook or handler panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// ActionNamer lets actions choose the name used in logs, spans and
// metrics. Actions that do not implement it are named by their Go type.
type ActionNamer interface {
	ActionName() string
}

// ActionName returns the display name of an action.
func ActionName(action any) string {
	if n, ok := action.(ActionNamer); ok {
		return n.ActionName()
	}
	return fmt.Sprintf("%T", action)
}
