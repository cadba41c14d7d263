package task_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/uniflow/task"
)

// ──────────────────────────────────────────────────
// Test owner
// ──────────────────────────────────────────────────

type counter struct {
	n      int
	errors []string
}

// lockOwner runs posted functions synchronously under a mutex, which is
// enough to serialize state access in tests.
type lockOwner struct {
	mu    sync.Mutex
	state counter
	gone  atomic.Bool
}

func (o *lockOwner) Post(fn func(*counter)) bool {
	if o.gone.Load() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
	return true
}

func (o *lockOwner) get() counter {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func newRegistry(t *testing.T) (*task.Registry[counter], *lockOwner) {
	t.Helper()
	o := &lockOwner{}
	return task.NewRegistry[counter](o, slog.Default()), o
}

func waitDone(t *testing.T, h *task.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s did not settle", h.TaskID())
	}
}

func increment(_ context.Context, st *task.State[counter]) error {
	return st.Update(func(s *counter) { s.n++ })
}

func recordError(err error, s *counter) { s.errors = append(s.errors, err.Error()) }

// blockUntilCancelled waits for cancellation, then tries to mutate state.
func blockUntilCancelled(ctx context.Context, st *task.State[counter]) error {
	<-ctx.Done()
	if err := st.Update(func(s *counter) { s.n = 99 }); err != nil {
		return err
	}
	return ctx.Err()
}

// ──────────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────────

func TestStart_CompletesAndRemovesRecord(t *testing.T) {
	r, o := newRegistry(t)

	h, err := r.Start("inc", increment, recordError)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h)

	if h.Err() != nil {
		t.Errorf("Err() = %v, want nil", h.Err())
	}
	if got := o.get().n; got != 1 {
		t.Errorf("n = %d, want 1", got)
	}
	if r.IsRunning("inc") {
		t.Error("record should be removed after completion")
	}
	if r.RunningCount() != 0 {
		t.Errorf("RunningCount() = %d, want 0", r.RunningCount())
	}
	if h.RunID().IsNil() {
		t.Error("expected a run ID")
	}
}

func TestStart_RejectsInvalidInput(t *testing.T) {
	r, _ := newRegistry(t)

	if _, err := r.Start("", increment, nil); !errors.Is(err, task.ErrEmptyID) {
		t.Errorf("empty id: got %v, want ErrEmptyID", err)
	}
	if _, err := r.Start("x", nil, nil); !errors.Is(err, task.ErrNilOperation) {
		t.Errorf("nil op: got %v, want ErrNilOperation", err)
	}
	if r.RunningCount() != 0 {
		t.Errorf("RunningCount() = %d, want 0", r.RunningCount())
	}
}

func TestStart_FailureInvokesOnError(t *testing.T) {
	r, o := newRegistry(t)
	boom := errors.New("boom")

	h, err := r.Start("fail", func(_ context.Context, st *task.State[counter]) error {
		if err := st.Update(func(s *counter) { s.n = 5 }); err != nil {
			return err
		}
		return boom
	}, recordError)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h)

	if !errors.Is(h.Err(), boom) {
		t.Errorf("Err() = %v, want boom", h.Err())
	}
	s := o.get()
	if s.n != 5 {
		t.Errorf("state mutated before failure should be kept, n = %d", s.n)
	}
	if !slices.Equal(s.errors, []string{"boom"}) {
		t.Errorf("errors = %v, want [boom]", s.errors)
	}
	if r.IsRunning("fail") {
		t.Error("record should be removed after failure")
	}
}

func TestStart_FailureWithoutOnErrorIsDropped(t *testing.T) {
	r, o := newRegistry(t)

	h, _ := r.Start("fail", func(context.Context, *task.State[counter]) error {
		return errors.New("ignored")
	}, nil)
	waitDone(t, h)

	if len(o.get().errors) != 0 {
		t.Error("no error callback was registered")
	}
	if r.IsRunning("fail") {
		t.Error("record should be removed")
	}
}

func TestStart_PanicBecomesFailure(t *testing.T) {
	r, o := newRegistry(t)

	h, _ := r.Start("panicky", func(context.Context, *task.State[counter]) error {
		panic("kaboom")
	}, recordError)
	waitDone(t, h)

	var pe *task.PanicError
	if !errors.As(h.Err(), &pe) {
		t.Fatalf("Err() = %v, want *PanicError", h.Err())
	}
	if pe.TaskID != "panicky" || pe.Value != "kaboom" {
		t.Errorf("unexpected panic error: %+v", pe)
	}
	if len(o.get().errors) != 1 {
		t.Errorf("onError calls = %d, want 1", len(o.get().errors))
	}
}

func TestStart_ReusedIDCancelsPreviousRun(t *testing.T) {
	r, o := newRegistry(t)

	first, _ := r.Start("x", blockUntilCancelled, recordError)
	release := make(chan struct{})
	second, _ := r.Start("x", func(ctx context.Context, st *task.State[counter]) error {
		<-release
		return st.Update(func(s *counter) { s.n++ })
	}, recordError)

	waitDone(t, first)
	if !errors.Is(first.Err(), context.Canceled) {
		t.Errorf("first Err() = %v, want context.Canceled", first.Err())
	}
	if !r.IsRunning("x") {
		t.Fatal("second run should still be registered")
	}
	if r.RunningCount() != 1 {
		t.Errorf("RunningCount() = %d, want 1", r.RunningCount())
	}

	close(release)
	waitDone(t, second)

	s := o.get()
	if s.n != 1 {
		t.Errorf("n = %d, want 1 (superseded run must not mutate)", s.n)
	}
	if len(s.errors) != 0 {
		t.Errorf("superseded run must not call onError, got %v", s.errors)
	}
	if r.IsRunning("x") {
		t.Error("record should be removed after second run completes")
	}
}

// ──────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────

func TestCancel_StopsRunWithoutOnError(t *testing.T) {
	r, o := newRegistry(t)

	h, _ := r.Start("load", func(ctx context.Context, st *task.State[counter]) error {
		if err := task.Sleep(ctx, 50*time.Millisecond); err != nil {
			return err
		}
		return st.Update(func(s *counter) { s.n = 42 })
	}, recordError)

	if !r.Cancel("load") {
		t.Fatal("Cancel should report a registered run")
	}
	if r.IsRunning("load") {
		t.Error("IsRunning should be false right after Cancel")
	}

	waitDone(t, h)
	s := o.get()
	if s.n != 0 {
		t.Errorf("n = %d, want 0", s.n)
	}
	if len(s.errors) != 0 {
		t.Errorf("cancelled run must not call onError, got %v", s.errors)
	}
}

func TestCancel_RejectsLaterUpdates(t *testing.T) {
	r, o := newRegistry(t)

	h, _ := r.Start("x", blockUntilCancelled, recordError)
	r.Cancel("x")
	waitDone(t, h)

	if !errors.Is(h.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", h.Err())
	}
	if o.get().n != 0 {
		t.Error("update after cancellation must be rejected")
	}
}

func TestCancel_Unknown(t *testing.T) {
	r, _ := newRegistry(t)
	if r.Cancel("nope") {
		t.Error("Cancel of unknown id should report false")
	}
}

func TestCancelAll(t *testing.T) {
	r, _ := newRegistry(t)

	var handles []*task.Handle
	for _, name := range []string{"a", "b", "c"} {
		h, _ := r.Start(name, blockUntilCancelled, nil)
		handles = append(handles, h)
	}
	if got := r.Running(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Running() = %v", got)
	}

	if n := r.CancelAll(); n != 3 {
		t.Errorf("CancelAll() = %d, want 3", n)
	}
	if r.RunningCount() != 0 {
		t.Errorf("RunningCount() = %d, want 0", r.RunningCount())
	}
	for _, h := range handles {
		waitDone(t, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestClose_RefusesLaterStarts(t *testing.T) {
	r, _ := newRegistry(t)

	h, _ := r.Start("a", blockUntilCancelled, recordError)
	if n := r.Close(); n != 1 {
		t.Errorf("Close() = %d, want 1", n)
	}
	waitDone(t, h)

	if _, err := r.Start("b", increment, nil); !errors.Is(err, task.ErrClosed) {
		t.Fatalf("Start after Close: err = %v, want ErrClosed", err)
	}
	if r.RunningCount() != 0 {
		t.Errorf("RunningCount() = %d, want 0", r.RunningCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Owner gone
// ──────────────────────────────────────────────────

func TestOwnerGone(t *testing.T) {
	r, o := newRegistry(t)
	o.gone.Store(true)

	h, _ := r.Start("late", increment, recordError)
	waitDone(t, h)

	if !errors.Is(h.Err(), task.ErrOwnerGone) {
		t.Errorf("Err() = %v, want ErrOwnerGone", h.Err())
	}
	if r.IsRunning("late") {
		t.Error("record should be removed even when the owner is gone")
	}
	if len(o.get().errors) != 0 {
		t.Error("onError needs state and must not run without an owner")
	}
}

func TestWait_TimesOut(t *testing.T) {
	r, _ := newRegistry(t)
	r.Start("stuck", func(context.Context, *task.State[counter]) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestSleep(t *testing.T) {
	if err := task.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := task.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on cancelled ctx = %v", err)
	}
	if err := task.Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep(0) on cancelled ctx = %v", err)
	}
}
