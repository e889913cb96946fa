package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/telegram"
)

// ProbeConfig is resolved per sweep by the caller: Enabled and
// DeleteAfterSend come from the runtime flag store, ChatID from static
// configuration.
type ProbeConfig struct {
	// Enabled turns the active probe on. When off, the checker reports
	// indeterminate so that probe-agnostic strategies are unaffected.
	Enabled bool

	// ChatID is the monitoring chat the probe message is sent to.
	ChatID string

	// DeleteAfterSend removes the probe message after confirmed delivery to
	// keep the monitoring chat clean. Deletion failure does not fail the
	// probe: delivery was already proven.
	DeleteAfterSend bool
}

// ProbeChecker proves the bot is functionally alive with a real round trip:
// it sends a message to the monitoring chat and optionally deletes it again.
type ProbeChecker struct {
	tg     *telegram.Client
	logger zerolog.Logger
}

// NewProbeChecker creates an active-probe checker.
func NewProbeChecker(tg *telegram.Client, logger zerolog.Logger) *ProbeChecker {
	return &ProbeChecker{tg: tg, logger: logger}
}

// Check performs the round trip. OK only on confirmed delivery; FAIL only on
// an explicit negative response or transport error.
func (c *ProbeChecker) Check(ctx context.Context, token string, cfg ProbeConfig) Result {
	if !cfg.Enabled {
		return indeterminate("probe disabled")
	}
	if cfg.ChatID == "" {
		return indeterminate("no monitoring chat configured")
	}
	if token == "" {
		return fail("token not set", 0)
	}

	text := fmt.Sprintf("probe check %s", uuid.New().String()[:8])
	msg, err := c.tg.SendMessage(ctx, token, cfg.ChatID, text)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			return fail(fmt.Sprintf("probe rejected: %s", apiErr.Error()), apiErr.StatusCode)
		}
		return fail(fmt.Sprintf("probe failed: %v", err), 0)
	}

	if cfg.DeleteAfterSend {
		if err := c.tg.DeleteMessage(ctx, token, cfg.ChatID, msg.MessageID); err != nil {
			c.logger.Debug().Err(err).Int64("message_id", msg.MessageID).
				Msg("probe cleanup failed")
		}
	}
	return ok("probe message delivered", 200)
}
