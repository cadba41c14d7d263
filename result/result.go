// Package result defines the tagged union returned by action processing.
//
// A Result describes at most one side effect for the dispatcher to carry
// out once the handler has returned:
//
//   - [None]: nothing to do
//   - [Run]: start an asynchronous task under a caller-chosen id
//   - [Cancel]: cancel the task registered under an id
//
// The zero value of Result is None.
package result

import (
	"fmt"

	"github.com/xraph/uniflow/task"
)

// Kind tags the variant held by a Result.
type Kind uint8

const (
	// KindNone means no side effect.
	KindNone Kind = iota
	// KindRun means a task should be started.
	KindRun
	// KindCancel means a task should be cancelled.
	KindCancel
)

// String returns "none", "run" or "cancel".
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRun:
		return "run"
	case KindCancel:
		return "cancel"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Result is the side effect produced by processing one action for a
// state of type S.
type Result[S any] struct {
	kind    Kind
	id      string
	op      task.Operation[S]
	onError task.ErrorHandler[S]
}

// None returns the no-op result.
func None[S any]() Result[S] { return Result[S]{} }

// Run returns a result that starts op under id. onError may be nil; when
// set it receives the operation's error together with mutable state.
func Run[S any](id string, op task.Operation[S], onError task.ErrorHandler[S]) Result[S] {
	return Result[S]{kind: KindRun, id: id, op: op, onError: onError}
}

// Cancel returns a result that cancels whatever runs under id.
func Cancel[S any](id string) Result[S] {
	return Result[S]{kind: KindCancel, id: id}
}

// Kind reports which variant r holds.
func (r Result[S]) Kind() Kind { return r.kind }

// IsNone reports whether r carries no side effect.
func (r Result[S]) IsNone() bool { return r.kind == KindNone }

// ID returns the task id of a Run or Cancel result, or "" for None.
func (r Result[S]) ID() string { return r.id }

// Operation returns the operation of a Run result, or nil.
func (r Result[S]) Operation() task.Operation[S] { return r.op }

// OnError returns the error callback of a Run result, or nil.
func (r Result[S]) OnError() task.ErrorHandler[S] { return r.onError }

// String renders r for logs, e.g. `run("load")`.
func (r Result[S]) String() string {
	if r.kind == KindNone {
		return "none"
	}
	return fmt.Sprintf("%s(%q)", r.kind, r.id)
}

// Validate reports whether r can be carried out. A Run result needs an id
// and an operation; a Cancel result needs an id.
func (r Result[S]) Validate() error {
	switch r.kind {
	case KindRun:
		if r.id == "" {
			return task.ErrEmptyID
		}
		if r.op == nil {
			return fmt.Errorf("%w: %q", task.ErrNilOperation, r.id)
		}
	case KindCancel:
		if r.id == "" {
			return task.ErrEmptyID
		}
	}
	return nil
}
