package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Registry tracks running operations by task id.
//
// Start, Cancel and CancelAll are meant to be called from the owner's
// writer goroutine; completion bookkeeping is posted there too. The
// query methods are safe to call from any goroutine.
type Registry[S any] struct {
	owner  Owner[S]
	logger *slog.Logger

	mu        sync.Mutex
	tasks     map[string]*Handle
	observers observers
	closed    bool

	wg sync.WaitGroup
}

// NewRegistry creates a registry whose operations work on state owned by
// owner.
func NewRegistry[S any](owner Owner[S], logger *slog.Logger) *Registry[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[S]{
		owner:  owner,
		logger: logger,
		tasks:  make(map[string]*Handle),
	}
}

// Observe registers a lifecycle observer. Observers are notified in
// registration order.
func (r *Registry[S]) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers.add(o)
}

// Start begins op under taskID. Any run already registered under taskID
// is cancelled first. onError may be nil.
func (r *Registry[S]) Start(taskID string, op Operation[S], onError ErrorHandler[S]) (*Handle, error) {
	if taskID == "" {
		return nil, ErrEmptyID
	}
	if op == nil {
		return nil, fmt.Errorf("%w: %q", ErrNilOperation, taskID)
	}

	h := newHandle(taskID)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.cancel()
		return nil, fmt.Errorf("%w: %q", ErrClosed, taskID)
	}
	prev := r.tasks[taskID]
	if prev != nil {
		prev.cancelled = true
	}
	r.tasks[taskID] = h
	r.wg.Add(1)
	r.mu.Unlock()

	if prev != nil {
		prev.cancel()
		r.logger.Debug("task superseded",
			slog.String("task_id", taskID),
			slog.String("run_id", prev.runID.String()),
			slog.String("by_run_id", h.runID.String()),
		)
		r.emitCancelled(prev)
	}

	r.logger.Debug("task started",
		slog.String("task_id", taskID),
		slog.String("run_id", h.runID.String()),
	)
	r.emitStarted(h)

	go r.run(h, op, onError)
	return h, nil
}

// Cancel requests cancellation of the run registered under taskID and
// removes its record. It reports whether a run was registered.
func (r *Registry[S]) Cancel(taskID string) bool {
	r.mu.Lock()
	h := r.tasks[taskID]
	if h != nil {
		h.cancelled = true
		delete(r.tasks, taskID)
	}
	r.mu.Unlock()

	if h == nil {
		return false
	}
	h.cancel()
	r.logger.Debug("task cancelled",
		slog.String("task_id", taskID),
		slog.String("run_id", h.runID.String()),
	)
	r.emitCancelled(h)
	return true
}

// CancelAll cancels every registered run and returns how many there were.
func (r *Registry[S]) CancelAll() int {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.tasks))
	for taskID, h := range r.tasks {
		h.cancelled = true
		handles = append(handles, h)
		delete(r.tasks, taskID)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
		r.emitCancelled(h)
	}
	if len(handles) > 0 {
		r.logger.Debug("all tasks cancelled", slog.Int("count", len(handles)))
	}
	return len(handles)
}

// Close refuses every later Start and cancels the registered runs. It
// returns how many were cancelled. Once Close has returned, Wait covers
// every run the registry will ever have.
func (r *Registry[S]) Close() int {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.CancelAll()
}

// IsRunning reports whether a run is registered under taskID.
func (r *Registry[S]) IsRunning(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[taskID]
	return ok
}

// RunningCount returns the number of registered runs.
func (r *Registry[S]) RunningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Running returns the registered task ids in sorted order.
func (r *Registry[S]) Running() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tasks))
	for taskID := range r.tasks {
		ids = append(ids, taskID)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Wait blocks until every operation goroutine has returned or ctx is done.
// Settlement of the last runs may still be pending on the owner. Call it
// after Close, or from the goroutine that calls Start, so no run begins
// while it waits.
func (r *Registry[S]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry[S]) run(h *Handle, op Operation[S], onError ErrorHandler[S]) {
	defer r.wg.Done()

	err := invoke(h.ctx, op, &State[S]{h: h, owner: r.owner})

	if !r.owner.Post(func(state *S) { r.settle(h, err, onError, state) }) {
		r.settle(h, err, nil, nil)
	}
}

// settle runs on the owner's writer goroutine, or on the operation's
// goroutine when the owner is gone (state is nil then).
func (r *Registry[S]) settle(h *Handle, err error, onError ErrorHandler[S], state *S) {
	defer func() {
		h.cancel()
		h.err = err
		close(h.done)
	}()

	r.mu.Lock()
	cancelled := h.cancelled
	r.mu.Unlock()

	elapsed := time.Since(h.startedAt)

	switch {
	case cancelled:
		// Cancel already removed the record and notified observers.
		return
	case err != nil:
		r.logger.Debug("task failed",
			slog.String("task_id", h.taskID),
			slog.String("run_id", h.runID.String()),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		if onError != nil && state != nil {
			r.callErrorHandler(h, onError, err, state)
		}
		r.emitFailed(h, elapsed, err)
	default:
		r.logger.Debug("task completed",
			slog.String("task_id", h.taskID),
			slog.String("run_id", h.runID.String()),
			slog.Duration("elapsed", elapsed),
		)
		r.emitCompleted(h, elapsed)
	}

	r.mu.Lock()
	if r.tasks[h.taskID] == h {
		delete(r.tasks, h.taskID)
	}
	r.mu.Unlock()
}

func (r *Registry[S]) callErrorHandler(h *Handle, onError ErrorHandler[S], err error, state *S) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("task error handler panicked",
				slog.String("task_id", h.taskID),
				slog.String("run_id", h.runID.String()),
				slog.Any("panic", p),
			)
		}
	}()
	onError(err, state)
}

// ──────────────────────────────────────────────────
// Observer fan-out
// ──────────────────────────────────────────────────

func (r *Registry[S]) snapshot() observers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observers
}

func (r *Registry[S]) emitStarted(h *Handle) {
	e := Event{TaskID: h.taskID, RunID: h.runID}
	for _, o := range r.snapshot().started {
		if err := o.hook.OnTaskStarted(e); err != nil {
			r.logHookError("OnTaskStarted", o.name, err)
		}
	}
}

func (r *Registry[S]) emitCompleted(h *Handle, elapsed time.Duration) {
	e := Event{TaskID: h.taskID, RunID: h.runID, Elapsed: elapsed}
	for _, o := range r.snapshot().completed {
		if err := o.hook.OnTaskCompleted(e); err != nil {
			r.logHookError("OnTaskCompleted", o.name, err)
		}
	}
}

func (r *Registry[S]) emitFailed(h *Handle, elapsed time.Duration, taskErr error) {
	e := Event{TaskID: h.taskID, RunID: h.runID, Elapsed: elapsed, Err: taskErr}
	for _, o := range r.snapshot().failed {
		if err := o.hook.OnTaskFailed(e); err != nil {
			r.logHookError("OnTaskFailed", o.name, err)
		}
	}
}

func (r *Registry[S]) emitCancelled(h *Handle) {
	e := Event{TaskID: h.taskID, RunID: h.runID, Elapsed: time.Since(h.startedAt)}
	for _, o := range r.snapshot().cancelled {
		if err := o.hook.OnTaskCancelled(e); err != nil {
			r.logHookError("OnTaskCancelled", o.name, err)
		}
	}
}

// logHookError logs a failed observer hook. Hook errors never propagate.
func (r *Registry[S]) logHookError(hook, name string, err error) {
	r.logger.Warn("task observer hook error",
		slog.String("hook", hook),
		slog.String("observer", name),
		slog.String("error", err.Error()),
	)
}
