package config_test

import (
	"testing"
	"time"

	"github.com/botsentinel/botsentinel/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}

	if cfg.SweepInterval != time.Minute {
		t.Errorf("expected 1m sweep interval, got %s", cfg.SweepInterval)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("expected threshold 3, got %d", cfg.FailureThreshold)
	}
	if cfg.AlertCooldown != 30*time.Minute {
		t.Errorf("expected 30m cooldown, got %s", cfg.AlertCooldown)
	}
	if !cfg.DemoteWithoutStandby {
		t.Error("expected demote-without-standby by default")
	}
	if cfg.Storage != "postgres" {
		t.Errorf("expected postgres storage, got %q", cfg.Storage)
	}
	if cfg.TwilioConfigured() {
		t.Error("twilio should not be configured without credentials")
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("unexpected database defaults: %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("expected 10 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("FAILURE_THRESHOLD", "5")
	t.Setenv("HEALTH_STRATEGY", "probe_plus")
	t.Setenv("STORAGE", "memory")
	t.Setenv("DEMOTE_WITHOUT_STANDBY", "false")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("config should load: %v", err)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected 30s interval, got %s", cfg.SweepInterval)
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("expected threshold 5, got %d", cfg.FailureThreshold)
	}
	if string(cfg.Strategy) != "probe_plus" {
		t.Errorf("expected probe_plus, got %q", cfg.Strategy)
	}
	if cfg.Storage != "memory" {
		t.Errorf("expected memory storage, got %q", cfg.Storage)
	}
	if cfg.DemoteWithoutStandby {
		t.Error("expected demote-without-standby disabled")
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected db.internal host, got %q", cfg.Database.Host)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("unknown strategy", func(t *testing.T) {
		t.Setenv("HEALTH_STRATEGY", "bogus")
		if _, err := config.FromEnv(); err == nil {
			t.Error("expected error for unknown strategy")
		}
	})

	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("STORAGE", "cassette-tape")
		if _, err := config.FromEnv(); err == nil {
			t.Error("expected error for unknown storage")
		}
	})

	t.Run("zero threshold", func(t *testing.T) {
		t.Setenv("FAILURE_THRESHOLD", "0")
		if _, err := config.FromEnv(); err == nil {
			t.Error("expected error for zero threshold")
		}
	})
}
