package middleware

import (
	"context"
	"time"

	"github.com/xraph/uniflow/result"
)

// Before adapts fn into a middleware with only the BeforeAction capability.
func Before[S, A any](id string, fn func(ctx context.Context, action A, state S) error) BeforeAction[S, A] {
	return &beforeFunc[S, A]{id: id, fn: fn}
}

// After adapts fn into a middleware with only the AfterAction capability.
func After[S, A any](id string, fn func(ctx context.Context, action A, state S, res result.Result[S], elapsed time.Duration) error) AfterAction[S, A] {
	return &afterFunc[S, A]{id: id, fn: fn}
}

// OnError adapts fn into a middleware with only the ErrorHandling capability.
func OnError[S, A any](id string, fn func(ctx context.Context, err error, action A, state S) error) ErrorHandling[S, A] {
	return &errorFunc[S, A]{id: id, fn: fn}
}

type beforeFunc[S, A any] struct {
	id string
	fn func(context.Context, A, S) error
}

func (b *beforeFunc[S, A]) ID() string { return b.id }

func (b *beforeFunc[S, A]) BeforeAction(ctx context.Context, action A, state S) error {
	return b.fn(ctx, action, state)
}

type afterFunc[S, A any] struct {
	id string
	fn func(context.Context, A, S, result.Result[S], time.Duration) error
}

func (a *afterFunc[S, A]) ID() string { return a.id }

func (a *afterFunc[S, A]) AfterAction(ctx context.Context, action A, state S, res result.Result[S], elapsed time.Duration) error {
	return a.fn(ctx, action, state, res, elapsed)
}

type errorFunc[S, A any] struct {
	id string
	fn func(context.Context, error, A, S) error
}

func (e *errorFunc[S, A]) ID() string { return e.id }

func (e *errorFunc[S, A]) HandleError(ctx context.Context, err error, action A, state S) error {
	return e.fn(ctx, err, action, state)
}
