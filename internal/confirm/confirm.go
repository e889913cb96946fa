// Package confirm implements the debounce protocol that separates transient
// blips from sustained failure. A failing decision pass is only accepted
// after at least one independently-timed re-check also fails; a single
// success is always trusted immediately.
package confirm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/check"
)

// Config tunes the confirmation protocol.
type Config struct {
	// BaseDelay is the wait before the first re-check. Default: 5 seconds.
	BaseDelay time.Duration

	// Jitter is the randomization factor applied to every delay, spreading
	// re-checks across bots that share a flaky dependency. Default: 0.5.
	Jitter float64

	// ExtraRounds is the number of additional confirmation rounds after the
	// mandatory re-check. Default: 0.
	ExtraRounds int
}

// DefaultConfig returns the default confirmation configuration.
func DefaultConfig() Config {
	return Config{
		BaseDelay: 5 * time.Second,
		Jitter:    0.5,
	}
}

// Outcome is the result of a confirmed decision sequence.
type Outcome struct {
	// Healthy is true when any pass succeeded.
	Healthy bool

	// Flaky is true when the sequence recovered after at least one failing
	// pass. Logged distinctly from a clean pass, since it marks flakiness
	// worth tracking.
	Flaky bool

	// Aborted is true when cancellation cut the sequence short before a
	// failing pass could be re-checked. The outcome is neither healthy nor
	// confirmed down and must not be counted.
	Aborted bool

	// Rounds is the total number of decision passes executed.
	Rounds int

	// Report is the report of the final pass. On a confirmed failure its OK
	// is forced false regardless of what the last pass said.
	Report *check.Report
}

// Confirmer runs decision passes with jittered inter-round delays. It is
// decoupled from what is being decided: the pass function encapsulates the
// checkers and the policy.
type Confirmer struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Confirmer.
func New(cfg Config, logger zerolog.Logger) *Confirmer {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 0.5
	}
	return &Confirmer{cfg: cfg, logger: logger}
}

// Run executes the protocol: one pass, then on failure a mandatory jittered
// re-check, then up to ExtraRounds more. Any success terminates the sequence
// immediately as healthy.
func (c *Confirmer) Run(ctx context.Context, pass func(context.Context) *check.Report) Outcome {
	report := pass(ctx)
	rounds := 1
	if report.OK {
		return Outcome{Healthy: true, Rounds: rounds, Report: report}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BaseDelay
	bo.RandomizationFactor = c.cfg.Jitter
	bo.MaxElapsedTime = 0
	bo.Reset()

	totalRounds := 2 + c.cfg.ExtraRounds
	for rounds < totalRounds {
		if !sleep(ctx, bo.NextBackOff()) {
			// Shutdown interrupted the sequence. A single failing
			// observation is not a confirmed failure.
			return Outcome{Aborted: true, Rounds: rounds, Report: report}
		}
		report = pass(ctx)
		rounds++
		if report.OK {
			c.logger.Info().
				Int64("bot_id", report.BotID).
				Str("bot", report.BotName).
				Int("rounds", rounds).
				Msg("recovered during confirmation")
			return Outcome{Healthy: true, Flaky: true, Rounds: rounds, Report: report}
		}
	}

	report.OK = false
	return Outcome{Healthy: false, Rounds: rounds, Report: report}
}

// sleep waits for d or until the context is done; returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
