package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/xraph/uniflow/id"
)

var (
	// ErrEmptyID is returned when a task is started without an id.
	ErrEmptyID = errors.New("task: empty task id")
	// ErrNilOperation is returned when a task is started without an operation.
	ErrNilOperation = errors.New("task: nil operation")
	// ErrClosed is returned by Start once the registry was closed.
	ErrClosed = errors.New("task: registry closed")
	// ErrOwnerGone is returned by State.Update once the owner stopped
	// accepting work.
	ErrOwnerGone = errors.New("task: state owner is gone")
)

// Operation is an asynchronous unit of work. ctx is cancelled when the
// task is cancelled or superseded.
type Operation[S any] func(ctx context.Context, st *State[S]) error

// ErrorHandler receives the error of a failed operation together with
// mutable state. It runs on the owner's writer goroutine.
type ErrorHandler[S any] func(err error, state *S)

// Owner serializes access to the state operations work on.
type Owner[S any] interface {
	// Post queues fn to run on the owner's writer goroutine with mutable
	// access to the state. It reports false when the owner no longer
	// accepts work, in which case fn never runs.
	Post(fn func(state *S)) bool
}

// PanicError is the failure reported for an operation that panicked.
type PanicError struct {
	TaskID string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s: panic: %v", e.TaskID, e.Value)
}

// Handle identifies one run of an operation.
type Handle struct {
	taskID    string
	runID     id.ID
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	// guarded by the owning registry's mutex
	cancelled bool

	// written before done is closed
	err error
}

func newHandle(taskID string) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		taskID:    taskID,
		runID:     id.NewRunID(),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// TaskID returns the caller-chosen id the run is registered under.
func (h *Handle) TaskID() string { return h.taskID }

// RunID returns the unique id of this run.
func (h *Handle) RunID() id.ID { return h.runID }

// Done is closed once the run has settled: the operation returned and its
// completion was processed by the owner.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the operation's error after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the run settles or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State is handed to a running operation. It is the operation's only way
// to touch the owner's state.
type State[S any] struct {
	h     *Handle
	owner Owner[S]
}

// TaskID returns the id the operation runs under.
func (s *State[S]) TaskID() string { return s.h.taskID }

// RunID returns the unique id of this run.
func (s *State[S]) RunID() id.ID { return s.h.runID }

// Update applies fn to the owner's state on its writer goroutine and waits
// for it. If the run was cancelled before fn got its turn, fn is skipped
// and the context error is returned.
func (s *State[S]) Update(fn func(state *S)) error {
	if err := s.h.ctx.Err(); err != nil {
		return err
	}

	applied := make(chan error, 1)
	ok := s.owner.Post(func(state *S) {
		if err := s.h.ctx.Err(); err != nil {
			applied <- err
			return
		}
		fn(state)
		applied <- nil
	})
	if !ok {
		return ErrOwnerGone
	}

	select {
	case err := <-applied:
		return err
	case <-s.h.ctx.Done():
		return s.h.ctx.Err()
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first. It
// returns ctx.Err() when interrupted.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func invoke[S any](ctx context.Context, op Operation[S], st *State[S]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{TaskID: st.h.taskID, Value: r, Stack: debug.Stack()}
		}
	}()
	return op(ctx, st)
}
