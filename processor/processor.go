package processor

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/xraph/uniflow/middleware"
	"github.com/xraph/uniflow/result"
)

// Handler applies action to state and returns the side effect to carry
// out. It is the only place state is mutated synchronously.
type Handler[S, A any] func(ctx context.Context, action A, state *S) result.Result[S]

// ErrorCallback receives pipeline failures together with mutable state.
type ErrorCallback[S any] func(err error, state *S)

// Processor runs actions through a middleware pipeline and a handler.
type Processor[S, A any] struct {
	handler Handler[S, A]
	mws     *middleware.Manager[S, A]
	onError ErrorCallback[S]
	logger  *slog.Logger
}

// New creates a Processor around handler with no middleware.
func New[S, A any](handler Handler[S, A]) *Processor[S, A] {
	logger := slog.Default()
	return &Processor[S, A]{
		handler: handler,
		mws:     middleware.NewManager[S, A](logger),
		logger:  logger,
	}
}

func (p *Processor[S, A]) clone() *Processor[S, A] {
	c := *p
	return &c
}

// WithMiddleware returns a Processor with ms appended after the
// middleware already registered.
func (p *Processor[S, A]) WithMiddleware(ms ...middleware.Middleware) *Processor[S, A] {
	c := p.clone()
	c.mws = p.mws.With(ms...)
	return c
}

// WithErrorHandler returns a Processor that calls fn with mutable state
// whenever the pipeline fails. It replaces any earlier callback.
func (p *Processor[S, A]) WithErrorHandler(fn ErrorCallback[S]) *Processor[S, A] {
	c := p.clone()
	c.onError = fn
	return c
}

// WithResultTransform returns a Processor whose handler results pass
// through fn before the after stage. Transforms compose: the most recently
// added one sees the output of the earlier ones.
func (p *Processor[S, A]) WithResultTransform(fn func(result.Result[S]) result.Result[S]) *Processor[S, A] {
	c := p.clone()
	inner := p.handler
	c.handler = func(ctx context.Context, action A, state *S) result.Result[S] {
		return fn(inner(ctx, action, state))
	}
	return c
}

// WithLogger returns a Processor that logs through logger.
func (p *Processor[S, A]) WithLogger(logger *slog.Logger) *Processor[S, A] {
	if logger == nil {
		logger = slog.Default()
	}
	c := p.clone()
	c.logger = logger
	c.mws = p.mws.WithLogger(logger)
	return c
}

// Middlewares returns the registered middleware in order.
func (p *Processor[S, A]) Middlewares() []middleware.Middleware {
	return p.mws.Middlewares()
}

// Process runs action through the pipeline against state.
//
// On success it returns the handler's (transformed) result. A Run or
// Cancel result without an id, or a Run without an operation, counts as
// a handler failure. On failure
// it runs the error hooks and the error callback, then returns a None
// result together with the original error. A failing before hook skips
// the handler entirely, so state is untouched.
func (p *Processor[S, A]) Process(ctx context.Context, action A, state *S) (result.Result[S], error) {
	start := time.Now()

	if err := p.mws.RunBefore(ctx, action, *state); err != nil {
		return p.fail(ctx, err, action, state)
	}

	res, err := p.handle(ctx, action, state)
	if err == nil {
		err = invalidResult(res)
	}
	if err != nil {
		return p.fail(ctx, err, action, state)
	}

	if err := p.mws.RunAfter(ctx, action, *state, res, time.Since(start)); err != nil {
		return p.fail(ctx, err, action, state)
	}
	return res, nil
}

// handle calls the handler, reporting a panic as a handler-stage error.
func (p *Processor[S, A]) handle(ctx context.Context, action A, state *S) (res result.Result[S], err error) {
	defer func() {
		if r := recover(); r != nil {
			res = result.None[S]()
			err = &middleware.HookError{
				Stage:      middleware.StageHandler,
				Middleware: "handler",
				Err:        &middleware.PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()
	return p.handler(ctx, action, state), nil
}

func (p *Processor[S, A]) fail(ctx context.Context, err error, action A, state *S) (result.Result[S], error) {
	// RunError logs each failing hook itself.
	_ = p.mws.RunError(ctx, err, action, *state)

	if p.onError != nil {
		p.callback(err, action, state)
	}
	return result.None[S](), err
}

func (p *Processor[S, A]) callback(err error, action A, state *S) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("error callback panicked",
				slog.String("action", middleware.ActionName(action)),
				slog.Any("panic", r),
			)
		}
	}()
	p.onError(err, state)
}

// invalidResult reports a result the dispatcher could not carry out as a
// handler-stage failure, before any after hook counts the action as done.
func invalidResult[S any](res result.Result[S]) error {
	if err := res.Validate(); err != nil {
		return &middleware.HookError{Stage: middleware.StageHandler, Middleware: "handler", Err: err}
	}
	return nil
}

// IsStage reports whether err was produced at the given pipeline stage.
func IsStage(err error, stage middleware.Stage) bool {
	var he *middleware.HookError
	return errors.As(err, &he) && he.Stage == stage
}
