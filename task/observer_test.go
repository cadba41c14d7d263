package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/uniflow/task"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) Name() string { return "recording" }

func (o *recordingObserver) add(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, s)
}

func (o *recordingObserver) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func (o *recordingObserver) OnTaskStarted(e task.Event) error {
	o.add("started:" + e.TaskID)
	return nil
}

func (o *recordingObserver) OnTaskCompleted(e task.Event) error {
	o.add("completed:" + e.TaskID)
	return nil
}

func (o *recordingObserver) OnTaskFailed(e task.Event) error {
	o.add("failed:" + e.TaskID + ":" + e.Err.Error())
	return nil
}

func (o *recordingObserver) OnTaskCancelled(e task.Event) error {
	o.add("cancelled:" + e.TaskID)
	return nil
}

// failingObserver only implements one hook and always fails.
type failingObserver struct{}

func (failingObserver) Name() string { return "failing" }

func (failingObserver) OnTaskStarted(task.Event) error { return errors.New("observer boom") }

func TestObservers_Lifecycle(t *testing.T) {
	r, _ := newRegistry(t)
	rec := &recordingObserver{}
	r.Observe(failingObserver{})
	r.Observe(rec)

	ok, _ := r.Start("ok", increment, nil)
	waitDone(t, ok)

	bad, _ := r.Start("bad", func(context.Context, *task.State[counter]) error {
		return errors.New("nope")
	}, nil)
	waitDone(t, bad)

	gone, _ := r.Start("gone", blockUntilCancelled, nil)
	r.Cancel("gone")
	waitDone(t, gone)

	want := []string{
		"started:ok", "completed:ok",
		"started:bad", "failed:bad:nope",
		"started:gone", "cancelled:gone",
	}
	got := rec.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestObservers_SupersededRunReportsCancelled(t *testing.T) {
	r, _ := newRegistry(t)
	rec := &recordingObserver{}
	r.Observe(rec)

	first, _ := r.Start("x", blockUntilCancelled, nil)
	second, _ := r.Start("x", increment, nil)
	waitDone(t, first)
	waitDone(t, second)

	got := rec.list()
	want := map[string]int{"started:x": 2, "cancelled:x": 1, "completed:x": 1}
	counts := map[string]int{}
	for _, e := range got {
		counts[e]++
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("%s seen %d times, want %d (events %v)", k, counts[k], n, got)
		}
	}
}
