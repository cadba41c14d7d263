package uniflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/uniflow"
)

func TestDefaultConfig(t *testing.T) {
	cfg := uniflow.DefaultConfig()
	if cfg.MailboxSize != 256 {
		t.Errorf("MailboxSize = %d, want 256", cfg.MailboxSize)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := uniflow.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg != uniflow.DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, uniflow.DefaultConfig())
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("UNIFLOW_MAILBOX_SIZE", "8")
	t.Setenv("UNIFLOW_SHUTDOWN_TIMEOUT", "2s")

	cfg, err := uniflow.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.MailboxSize != 8 || cfg.ShutdownTimeout != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("UNIFLOW_MAILBOX_SIZE", "lots")
	if _, err := uniflow.ConfigFromEnv(); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("UNIFLOW_MAILBOX_SIZE", "-1")
	if _, err := uniflow.ConfigFromEnv(); !errors.Is(err, uniflow.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
