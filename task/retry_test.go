package task_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/uniflow/backoff"
	"github.com/xraph/uniflow/task"
)

func flaky(failures int32, calls *atomic.Int32) task.Operation[counter] {
	return func(_ context.Context, st *task.State[counter]) error {
		if calls.Add(1) <= failures {
			return errors.New("transient")
		}
		return st.Update(func(s *counter) { s.n++ })
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	r, o := newRegistry(t)
	var calls atomic.Int32

	h, _ := r.Start("flaky", task.Retry(flaky(2, &calls), backoff.Constant(time.Millisecond), 5), recordError)
	waitDone(t, h)

	if h.Err() != nil {
		t.Fatalf("Err() = %v, want nil", h.Err())
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if o.get().n != 1 {
		t.Errorf("n = %d, want 1", o.get().n)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	r, o := newRegistry(t)
	var calls atomic.Int32

	h, _ := r.Start("flaky", task.Retry(flaky(10, &calls), backoff.Constant(time.Millisecond), 3), recordError)
	waitDone(t, h)

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if h.Err() == nil || !strings.Contains(h.Err().Error(), "giving up after 3 attempts") {
		t.Errorf("Err() = %v", h.Err())
	}
	if len(o.get().errors) != 1 {
		t.Errorf("onError calls = %d, want 1", len(o.get().errors))
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	r, _ := newRegistry(t)
	var calls atomic.Int32
	fatal := errors.New("fatal")

	h, _ := r.Start("perm", task.Retry(func(context.Context, *task.State[counter]) error {
		calls.Add(1)
		return task.Permanent(fatal)
	}, nil, 0), nil)
	waitDone(t, h)

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if !errors.Is(h.Err(), fatal) {
		t.Errorf("Err() = %v, want fatal", h.Err())
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	r, _ := newRegistry(t)
	var calls atomic.Int32

	h, _ := r.Start("forever", task.Retry(flaky(1<<30, &calls), backoff.Constant(time.Hour), 0), nil)
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	r.Cancel("forever")
	waitDone(t, h)

	if !errors.Is(h.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", h.Err())
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPermanentNil(t *testing.T) {
	if task.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
