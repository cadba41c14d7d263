package task

import (
	"time"

	"github.com/xraph/uniflow/id"
)

// Observer is the base interface for task lifecycle observers.
type Observer interface {
	// Name identifies the observer in logs.
	Name() string
}

// Event describes one lifecycle transition of a run.
type Event struct {
	TaskID string
	RunID  id.ID
	// Elapsed is the time since the run started. Zero for StartedHook.
	Elapsed time.Duration
	// Err is the operation's error. Set for FailedHook only.
	Err error
}

// StartedHook is notified when a run begins.
type StartedHook interface {
	OnTaskStarted(e Event) error
}

// CompletedHook is notified when a run returns without error.
type CompletedHook interface {
	OnTaskCompleted(e Event) error
}

// FailedHook is notified when a run returns an error and was not cancelled.
type FailedHook interface {
	OnTaskFailed(e Event) error
}

// CancelledHook is notified when a run is cancelled or superseded.
type CancelledHook interface {
	OnTaskCancelled(e Event) error
}

type observerEntry[H any] struct {
	name string
	hook H
}

// observers caches each registered Observer under the hooks it implements.
type observers struct {
	started   []observerEntry[StartedHook]
	completed []observerEntry[CompletedHook]
	failed    []observerEntry[FailedHook]
	cancelled []observerEntry[CancelledHook]
}

func (o *observers) add(obs Observer) {
	name := obs.Name()
	if h, ok := obs.(StartedHook); ok {
		o.started = append(o.started, observerEntry[StartedHook]{name, h})
	}
	if h, ok := obs.(CompletedHook); ok {
		o.completed = append(o.completed, observerEntry[CompletedHook]{name, h})
	}
	if h, ok := obs.(FailedHook); ok {
		o.failed = append(o.failed, observerEntry[FailedHook]{name, h})
	}
	if h, ok := obs.(CancelledHook); ok {
		o.cancelled = append(o.cancelled, observerEntry[CancelledHook]{name, h})
	}
}
