package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/uniflow/middleware"
	"github.com/xraph/uniflow/result"
	"github.com/xraph/uniflow/task"
)

// Compile-time interface checks.
var (
	_ middleware.AfterAction[struct{}, struct{}]   = (*Collector[struct{}, struct{}])(nil)
	_ middleware.ErrorHandling[struct{}, struct{}] = (*Collector[struct{}, struct{}])(nil)
	_ task.StartedHook                             = (*Collector[struct{}, struct{}])(nil)
	_ task.CompletedHook                           = (*Collector[struct{}, struct{}])(nil)
	_ task.FailedHook                              = (*Collector[struct{}, struct{}])(nil)
	_ task.CancelledHook                           = (*Collector[struct{}, struct{}])(nil)
)

// Task outcomes used as the "outcome" label of tasks_finished_total.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Collector records Prometheus metrics for processed actions and task
// lifecycles.
//
// Metrics (prefixed with the namespace given to NewCollector):
//   - actions_total{action,status}: processed actions, status "ok" or "error"
//   - action_duration_seconds{action}: processing latency of successful actions
//   - tasks_started_total: task runs started
//   - tasks_finished_total{outcome}: task runs that completed, failed or were cancelled
//   - tasks_running: task runs currently registered
type Collector[S, A any] struct {
	Actions       *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	TasksStarted  prometheus.Counter
	TasksFinished *prometheus.CounterVec
	TasksRunning  prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer. Metrics already registered
// by an identical Collector are reused.
func NewCollector[S, A any](reg prometheus.Registerer, namespace string) (*Collector[S, A], error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector[S, A]{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of processed actions by outcome.",
		}, []string{"action", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Latency of successful action processing.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		TasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Total number of task runs started.",
		}),
		TasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of task runs finished by outcome.",
		}, []string{"outcome"}),
		TasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Number of task runs currently registered.",
		}),
	}

	var err error
	c.Actions, err = register(reg, c.Actions)
	if err != nil {
		return nil, err
	}
	c.Duration, err = register(reg, c.Duration)
	if err != nil {
		return nil, err
	}
	c.TasksStarted, err = register(reg, c.TasksStarted)
	if err != nil {
		return nil, err
	}
	c.TasksFinished, err = register(reg, c.TasksFinished)
	if err != nil {
		return nil, err
	}
	c.TasksRunning, err = register(reg, c.TasksRunning)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("observability: register metric: %w", err)
	}
	return c, nil
}

// ID implements middleware.Middleware.
func (c *Collector[S, A]) ID() string { return "prometheus" }

// Name implements task.Observer.
func (c *Collector[S, A]) Name() string { return "prometheus" }

// AfterAction implements middleware.AfterAction.
func (c *Collector[S, A]) AfterAction(_ context.Context, action A, _ S, _ result.Result[S], elapsed time.Duration) error {
	name := middleware.ActionName(action)
	c.Actions.WithLabelValues(name, "ok").Inc()
	c.Duration.WithLabelValues(name).Observe(elapsed.Seconds())
	return nil
}

// HandleError implements middleware.ErrorHandling.
func (c *Collector[S, A]) HandleError(_ context.Context, _ error, action A, _ S) error {
	c.Actions.WithLabelValues(middleware.ActionName(action), "error").Inc()
	return nil
}

// OnTaskStarted implements task.StartedHook.
func (c *Collector[S, A]) OnTaskStarted(task.Event) error {
	c.TasksStarted.Inc()
	c.TasksRunning.Inc()
	return nil
}

// OnTaskCompleted implements task.CompletedHook.
func (c *Collector[S, A]) OnTaskCompleted(task.Event) error {
	return c.finished(OutcomeCompleted)
}

// OnTaskFailed implements task.FailedHook.
func (c *Collector[S, A]) OnTaskFailed(task.Event) error {
	return c.finished(OutcomeFailed)
}

// OnTaskCancelled implements task.CancelledHook.
func (c *Collector[S, A]) OnTaskCancelled(task.Event) error {
	return c.finished(OutcomeCancelled)
}

func (c *Collector[S, A]) finished(outcome string) error {
	c.TasksFinished.WithLabelValues(outcome).Inc()
	c.TasksRunning.Dec()
	return nil
}
