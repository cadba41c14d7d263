package uniflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/uniflow/id"
	"github.com/xraph/uniflow/middleware"
	"github.com/xraph/uniflow/processor"
	"github.com/xraph/uniflow/result"
	"github.com/xraph/uniflow/task"
)

// Dispatcher owns a state value and applies actions to it one at a time.
//
// Create one with New. Every state mutation, whether from a handler, a
// task completion or a task's State.Update, runs on the dispatcher's
// single writer goroutine in the order it was queued.
type Dispatcher[S, A any] struct {
	id     ID
	config Config
	logger *slog.Logger
	proc   *processor.Processor[S, A]
	tasks  *task.Registry[S]

	// state is written only by the writer goroutine. Writes swap in a
	// fully built value under stateMu so readers never see a partial
	// mutation.
	stateMu sync.RWMutex
	state   S

	mailbox chan func()
	quit    chan struct{}
	stopped chan struct{}

	// gate guards admission to the mailbox.
	gate        sync.Mutex
	sendsClosed bool
	postsClosed bool
	inflight    sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New creates a Dispatcher holding initial and starts its writer
// goroutine. Call Close to stop it.
func New[S, A any](initial S, proc *processor.Processor[S, A], opts ...Option) (*Dispatcher[S, A], error) {
	if proc == nil {
		return nil, ErrNilProcessor
	}
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher[S, A]{
		id:      id.NewDispatcherID(),
		config:  o.config,
		proc:    proc,
		state:   initial,
		mailbox: make(chan func(), o.config.MailboxSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	d.logger = o.logger.With(slog.String("dispatcher_id", d.id.String()))
	d.tasks = task.NewRegistry[S](owner[S, A]{d}, d.logger)
	for _, obs := range o.observers {
		d.tasks.Observe(obs)
	}

	go d.loop()

	d.logger.Debug("dispatcher started",
		slog.Int("mailbox_size", o.config.MailboxSize),
		slog.Int("middleware", len(proc.Middlewares())),
	)
	return d, nil
}

// ID returns the dispatcher's unique id.
func (d *Dispatcher[S, A]) ID() ID { return d.id }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher[S, A]) Config() Config { return d.config }

// Logger returns the dispatcher's logger.
func (d *Dispatcher[S, A]) Logger() *slog.Logger { return d.logger }

// State returns a copy of the current state.
func (d *Dispatcher[S, A]) State() S {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state
}

// Send queues action for processing and returns without waiting for it.
//
// Send blocks while the mailbox is full until ctx ends, except when
// called with a context handed out by this dispatcher's writer goroutine:
// then it fails fast with ErrMailboxFull.
func (d *Dispatcher[S, A]) Send(ctx context.Context, action A) (*Receipt, error) {
	r := newReceipt(d)
	// The action outlives the sender's deadline once it is accepted.
	procCtx := context.WithValue(context.WithoutCancel(ctx), writerKey{}, any(d))

	err := d.enqueue(ctx, false, func() { d.process(procCtx, action, r) })
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Dispatch sends action and waits for it to be processed. It returns the
// pipeline error, if any.
func (d *Dispatcher[S, A]) Dispatch(ctx context.Context, action A) error {
	r, err := d.Send(ctx, action)
	if err != nil {
		return err
	}
	return r.Wait(ctx)
}

// CancelTask cancels the task registered under taskID after every action
// sent before it has been processed. It reports whether a task was
// registered.
func (d *Dispatcher[S, A]) CancelTask(ctx context.Context, taskID string) (bool, error) {
	var found bool
	err := d.runOnWriter(ctx, func() { found = d.tasks.Cancel(taskID) })
	return found, err
}

// CancelAllTasks cancels every registered task after every action sent
// before it has been processed. It returns how many were cancelled.
func (d *Dispatcher[S, A]) CancelAllTasks(ctx context.Context) (int, error) {
	var n int
	err := d.runOnWriter(ctx, func() { n = d.tasks.CancelAll() })
	return n, err
}

// RunningTaskCount returns the number of registered tasks.
func (d *Dispatcher[S, A]) RunningTaskCount() int { return d.tasks.RunningCount() }

// IsTaskRunning reports whether a task is registered under taskID.
func (d *Dispatcher[S, A]) IsTaskRunning(taskID string) bool { return d.tasks.IsRunning(taskID) }

// RunningTasks returns the registered task ids in sorted order.
func (d *Dispatcher[S, A]) RunningTasks() []string { return d.tasks.Running() }

// owner hands the task registry write access to the state. It is kept
// off the Dispatcher so that callers, handlers included, cannot block the
// writer goroutine on its own mailbox.
type owner[S, A any] struct{ d *Dispatcher[S, A] }

var _ task.Owner[struct{}] = owner[struct{}, struct{}]{}

// Post queues fn behind everything already in the mailbox. It reports
// false once the dispatcher has shut down.
func (o owner[S, A]) Post(fn func(state *S)) bool {
	d := o.d
	err := d.post(context.Background(), func() {
		work := d.state
		fn(&work)
		d.commit(work)
	})
	return err == nil
}

// Close stops accepting actions, processes everything already queued,
// cancels every task and waits for task goroutines to return. If ctx has
// no deadline, Config.ShutdownTimeout bounds the wait. Close is
// idempotent; later calls return the first call's result.
func (d *Dispatcher[S, A]) Close(ctx context.Context) error {
	if onWriter(ctx, any(d)) {
		return ErrReentrantWait
	}
	d.closeOnce.Do(func() { d.closeErr = d.shutdown(ctx) })
	return d.closeErr
}

func (d *Dispatcher[S, A]) shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && d.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ShutdownTimeout)
		defer cancel()
	}

	d.gate.Lock()
	d.sendsClosed = true
	d.gate.Unlock()

	// Queued after every accepted send, so those are processed first.
	cancelled := make(chan int, 1)
	drained := false
	if err := d.post(ctx, func() { cancelled <- d.tasks.Close() }); err == nil {
		select {
		case n := <-cancelled:
			drained = true
			if n > 0 {
				d.logger.Debug("cancelled tasks on close", slog.Int("count", n))
			}
		case <-ctx.Done():
		}
	}

	var errs []error
	if !drained {
		// The writer is still busy with earlier actions. Close the registry
		// from here so those actions cannot start tasks the wait below
		// would miss.
		d.tasks.Close()
		errs = append(errs, fmt.Errorf("uniflow: drain mailbox: %w", ctx.Err()))
	}
	if err := d.tasks.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("uniflow: wait for tasks: %w", err))
	}

	d.gate.Lock()
	d.postsClosed = true
	d.gate.Unlock()
	if err := waitGroup(ctx, &d.inflight); err != nil {
		errs = append(errs, fmt.Errorf("uniflow: wait for senders: %w", err))
	}

	close(d.quit)
	select {
	case <-d.stopped:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("uniflow: wait for writer: %w", ctx.Err()))
	}

	if len(errs) > 0 {
		d.logger.Warn("dispatcher closed before shutdown finished", slog.String("error", errs[0].Error()))
		return errs[0]
	}
	d.logger.Debug("dispatcher closed")
	return nil
}

// ──────────────────────────────────────────────────
// Writer goroutine
// ──────────────────────────────────────────────────

func (d *Dispatcher[S, A]) loop() {
	defer close(d.stopped)
	for {
		select {
		case job := <-d.mailbox:
			job()
		case <-d.quit:
			// Admission is closed; run what is left and stop.
			for {
				select {
				case job := <-d.mailbox:
					job()
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher[S, A]) process(ctx context.Context, action A, r *Receipt) {
	work := d.state
	res, err := d.proc.Process(ctx, action, &work)
	d.commit(work)

	if err != nil {
		d.logger.Debug("action failed",
			slog.String("receipt_id", r.id.String()),
			slog.String("action", middleware.ActionName(action)),
			slog.String("error", err.Error()),
		)
		r.finish(result.KindNone, err)
		return
	}

	kind := res.Kind()
	switch kind {
	case result.KindRun:
		if _, err := d.tasks.Start(res.ID(), res.Operation(), res.OnError()); err != nil {
			if errors.Is(err, task.ErrClosed) {
				r.finish(result.KindNone, ErrClosed)
				return
			}
			d.logger.Error("task start failed",
				slog.String("action", middleware.ActionName(action)),
				slog.String("task_id", res.ID()),
				slog.String("error", err.Error()),
			)
			r.finish(result.KindNone, err)
			return
		}
	case result.KindCancel:
		d.tasks.Cancel(res.ID())
	}
	r.finish(kind, nil)
}

func (d *Dispatcher[S, A]) commit(work S) {
	d.stateMu.Lock()
	d.state = work
	d.stateMu.Unlock()
}

// runOnWriter runs fn on the writer goroutine and waits for it. Called from
// the writer itself it runs fn inline.
func (d *Dispatcher[S, A]) runOnWriter(ctx context.Context, fn func()) error {
	if onWriter(ctx, any(d)) {
		fn()
		return nil
	}
	done := make(chan struct{})
	if err := d.enqueue(ctx, false, func() {
		fn()
		close(done)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ──────────────────────────────────────────────────
// Mailbox admission
// ──────────────────────────────────────────────────

// enqueue admits a caller-originated job. internal marks jobs that must
// still be accepted after Close has begun.
func (d *Dispatcher[S, A]) enqueue(ctx context.Context, internal bool, job func()) error {
	d.gate.Lock()
	closed := d.postsClosed || (!internal && d.sendsClosed)
	if closed {
		d.gate.Unlock()
		return ErrClosed
	}
	d.inflight.Add(1)
	d.gate.Unlock()
	defer d.inflight.Done()

	select {
	case <-d.stopped:
		return ErrClosed
	default:
	}

	if onWriter(ctx, any(d)) {
		select {
		case d.mailbox <- job:
			return nil
		default:
			return ErrMailboxFull
		}
	}

	select {
	case d.mailbox <- job:
		return nil
	case <-d.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher[S, A]) post(ctx context.Context, job func()) error {
	return d.enqueue(ctx, true, job)
}

// ──────────────────────────────────────────────────
// Writer context marker
// ──────────────────────────────────────────────────

type writerKey struct{}

// onWriter reports whether ctx was handed out by owner's writer goroutine.
func onWriter(ctx context.Context, owner any) bool {
	if ctx == nil {
		return false
	}
	v := ctx.Value(writerKey{})
	return v != nil && v == owner
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newReceiptID() ID { return id.NewReceiptID() }
