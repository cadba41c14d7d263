package uniflow

import (
	"log/slog"
	"time"

	"github.com/xraph/uniflow/task"
)

// Option configures a Dispatcher.
type Option func(*options) error

type options struct {
	config    Config
	logger    *slog.Logger
	observers []task.Observer
}

func defaultOptions() options {
	return options{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		o.config = cfg
		return nil
	}
}

// WithMailboxSize sets the mailbox capacity.
func WithMailboxSize(n int) Option {
	return func(o *options) error {
		o.config.MailboxSize = n
		return nil
	}
}

// WithShutdownTimeout sets the default bound for Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.config.ShutdownTimeout = d
		return nil
	}
}

// WithLogger sets the structured logger for the dispatcher and its task
// registry.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		if l != nil {
			o.logger = l
		}
		return nil
	}
}

// WithTaskObserver registers an observer for task lifecycle events.
// Observers are notified in registration order.
func WithTaskObserver(obs task.Observer) Option {
	return func(o *options) error {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
		return nil
	}
}
