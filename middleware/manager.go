package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/xraph/uniflow/result"
)

// Manager holds middleware in registration order. Capability slices are
// built when middleware are added so each stage only visits middleware
// that implement it.
//
// A Manager is immutable: With returns a new Manager and leaves the
// receiver untouched, so one Manager can be shared by many processors.
type Manager[S, A any] struct {
	all    []Middleware
	before []BeforeAction[S, A]
	after  []AfterAction[S, A]
	errs   []ErrorHandling[S, A]
	logger *slog.Logger
}

// NewManager creates a Manager holding ms in order.
func NewManager[S, A any](logger *slog.Logger, ms ...Middleware) *Manager[S, A] {
	if logger == nil {
		logger = slog.Default()
	}
	return (&Manager[S, A]{logger: logger}).With(ms...)
}

// With returns a new Manager with ms appended. Nil entries are skipped.
func (m *Manager[S, A]) With(ms ...Middleware) *Manager[S, A] {
	next := &Manager[S, A]{
		all:    slices.Clone(m.all),
		before: slices.Clone(m.before),
		after:  slices.Clone(m.after),
		errs:   slices.Clone(m.errs),
		logger: m.logger,
	}
	for _, mw := range ms {
		if mw == nil {
			continue
		}
		next.all = append(next.all, mw)
		matched := false
		if h, ok := mw.(BeforeAction[S, A]); ok {
			next.before = append(next.before, h)
			matched = true
		}
		if h, ok := mw.(AfterAction[S, A]); ok {
			next.after = append(next.after, h)
			matched = true
		}
		if h, ok := mw.(ErrorHandling[S, A]); ok {
			next.errs = append(next.errs, h)
			matched = true
		}
		if !matched {
			// Usually a middleware built for other state or action types.
			next.logger.Warn("middleware implements no stage for this pipeline and will never run",
				slog.String("middleware", mw.ID()),
				slog.String("type", fmt.Sprintf("%T", mw)),
			)
		}
	}
	return next
}

// WithLogger returns a copy of m that logs through logger.
func (m *Manager[S, A]) WithLogger(logger *slog.Logger) *Manager[S, A] {
	next := m.With()
	next.logger = logger
	return next
}

// Middlewares returns every registered middleware in order.
func (m *Manager[S, A]) Middlewares() []Middleware { return slices.Clone(m.all) }

// Len returns the number of registered middleware.
func (m *Manager[S, A]) Len() int { return len(m.all) }

// RunBefore runs every BeforeAction hook in order and stops at the first
// failure.
func (m *Manager[S, A]) RunBefore(ctx context.Context, action A, state S) error {
	for _, h := range m.before {
		if err := guard(StageBefore, h.ID(), func() error {
			return h.BeforeAction(ctx, action, state)
		}); err != nil {
			return err
		}
	}
	return nil
}

// RunAfter runs every AfterAction hook in order and stops at the first
// failure.
func (m *Manager[S, A]) RunAfter(ctx context.Context, action A, state S, res result.Result[S], elapsed time.Duration) error {
	for _, h := range m.after {
		if err := guard(StageAfter, h.ID(), func() error {
			return h.AfterAction(ctx, action, state, res, elapsed)
		}); err != nil {
			return err
		}
	}
	return nil
}

// RunError runs every ErrorHandling hook in order. A failing hook does not
// stop the others; failures are logged and returned joined.
func (m *Manager[S, A]) RunError(ctx context.Context, cause error, action A, state S) error {
	var failures []error
	for _, h := range m.errs {
		if err := guard(StageError, h.ID(), func() error {
			return h.HandleError(ctx, cause, action, state)
		}); err != nil {
			m.logger.Warn("error middleware failed",
				slog.String("middleware", h.ID()),
				slog.String("action", ActionName(action)),
				slog.String("cause", cause.Error()),
				slog.String("error", err.Error()),
			)
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// guard runs fn, converting a panic into an error, and wraps any failure
// in a HookError.
func guard(stage Stage, mwID string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Stage: stage, Middleware: mwID, Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	if err := fn(); err != nil {
		return &HookError{Stage: stage, Middleware: mwID, Err: err}
	}
	return nil
}
