package uniflow

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for the Dispatcher.
type Config struct {
	// MailboxSize is the number of actions and task completions that can
	// wait for the writer goroutine before senders block.
	MailboxSize int `env:"UNIFLOW_MAILBOX_SIZE" envDefault:"256"`

	// ShutdownTimeout bounds Close when its context has no deadline.
	// Zero means wait indefinitely.
	ShutdownTimeout time.Duration `env:"UNIFLOW_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MailboxSize:     256,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFromEnv reads UNIFLOW_MAILBOX_SIZE and UNIFLOW_SHUTDOWN_TIMEOUT,
// falling back to the DefaultConfig values for unset variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("uniflow: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether cfg can be used to build a Dispatcher.
func (c Config) Validate() error {
	if c.MailboxSize < 1 {
		return fmt.Errorf("%w: mailbox size must be positive, got %d", ErrInvalidConfig, c.MailboxSize)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: negative shutdown timeout %s", ErrInvalidConfig, c.ShutdownTimeout)
	}
	return nil
}
