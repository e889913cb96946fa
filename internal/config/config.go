// Package config loads monitor settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/database"
)

// Config is the full runtime configuration of the monitor.
type Config struct {
	// Sweep loop.
	SweepInterval    time.Duration
	SweepConcurrency int

	// Health decision.
	Strategy              check.Strategy
	CheckTimeout          time.Duration
	WebhookErrorRecency   time.Duration
	WebhookPendingCeiling int
	ProbeChatID           string

	// Confirmation protocol.
	ConfirmBaseDelay   time.Duration
	ConfirmJitter      float64
	ConfirmExtraRounds int

	// Failover.
	FailureThreshold     int
	AlertCooldown        time.Duration
	GracePeriod          time.Duration
	DemoteWithoutStandby bool
	MinActive            int

	// Exclusivity.
	LockEnabled  bool
	LockName     string
	LockFilePath string

	// Storage backend: "postgres" or "memory".
	Storage  string
	Database database.Config

	// Alert channels.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioTo         string
	PubSubProjectID  string
	PubSubTopicID    string

	// Status API.
	APIPort       string
	JWTSigningKey string
}

// FromEnv builds the configuration, applying defaults and validating the
// values that have no safe fallback.
func FromEnv() (Config, error) {
	cfg := Config{
		SweepInterval:         envDuration("SWEEP_INTERVAL", time.Minute),
		SweepConcurrency:      envInt("SWEEP_CONCURRENCY", 4),
		CheckTimeout:          envDuration("CHECK_TIMEOUT", 7*time.Second),
		WebhookErrorRecency:   envDuration("WEBHOOK_ERROR_RECENCY", 15*time.Minute),
		WebhookPendingCeiling: envInt("WEBHOOK_PENDING_CEILING", 0),
		ProbeChatID:           os.Getenv("PROBE_CHAT_ID"),
		ConfirmBaseDelay:      envDuration("CONFIRM_BASE_DELAY", 5*time.Second),
		ConfirmJitter:         envFloat("CONFIRM_JITTER", 0.5),
		ConfirmExtraRounds:    envInt("CONFIRM_EXTRA_ROUNDS", 0),
		FailureThreshold:      envInt("FAILURE_THRESHOLD", 3),
		AlertCooldown:         envDuration("ALERT_COOLDOWN", 30*time.Minute),
		GracePeriod:           envDuration("SWAP_GRACE_PERIOD", 0),
		DemoteWithoutStandby:  envBool("DEMOTE_WITHOUT_STANDBY", true),
		MinActive:             envInt("MIN_ACTIVE_BOTS", 2),
		LockEnabled:           envBool("LOCK_ENABLED", true),
		LockName:              getEnvOrDefault("LOCK_NAME", "botsentinel-sweep"),
		LockFilePath:          getEnvOrDefault("LOCK_FILE_PATH", "/tmp/botsentinel.lock"),
		Storage:               getEnvOrDefault("STORAGE", "postgres"),
		Database: database.Config{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            envInt("DB_PORT", 5432),
			User:            getEnvOrDefault("DB_USER", "botsentinel"),
			Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
			Database:        getEnvOrDefault("DB_NAME", "botsentinel"),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:            os.Getenv("TWILIO_WHATSAPP_FROM"),
		TwilioTo:              os.Getenv("ALERT_WHATSAPP_TO"),
		PubSubProjectID:       os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopicID:         getEnvOrDefault("PUBSUB_TOPIC_ID", "botsentinel-alerts"),
		APIPort:               getEnvOrDefault("APP_PORT", "8080"),
		JWTSigningKey:         os.Getenv("JWT_SIGNING_KEY"),
	}

	strategy, err := check.ParseStrategy(os.Getenv("HEALTH_STRATEGY"))
	if err != nil {
		return Config{}, err
	}
	cfg.Strategy = strategy

	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		return Config{}, fmt.Errorf("unknown STORAGE %q, want postgres or memory", cfg.Storage)
	}
	if cfg.FailureThreshold < 1 {
		return Config{}, fmt.Errorf("FAILURE_THRESHOLD must be at least 1, got %d", cfg.FailureThreshold)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

// TwilioConfigured reports whether all WhatsApp settings are present.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != "" && c.TwilioTo != ""
}

// PubSubConfigured reports whether the alert topic settings are present.
func (c Config) PubSubConfigured() bool {
	return c.PubSubProjectID != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func envBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
