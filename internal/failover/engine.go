// Package failover owns failure accounting and the ACTIVE/STANDBY swap state
// machine. It is the only component that changes bot lifecycle state.
package failover

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/confirm"
	"github.com/botsentinel/botsentinel/internal/flags"
	"github.com/botsentinel/botsentinel/internal/notify"
)

// Config tunes the failover engine.
type Config struct {
	// Threshold is the consecutive-failure count that triggers a swap.
	// Default: 3
	Threshold int

	// AlertCooldown is the minimum gap between repeated "down" alerts for
	// the same ongoing episode. Default: 30 minutes.
	AlertCooldown time.Duration

	// GracePeriod suppresses swaps (but not failure counting) for a window
	// after process start, so cold-start network conditions cannot cause
	// flapping.
	GracePeriod time.Duration

	// DemoteWithoutStandby controls the empty-pool policy at threshold:
	// true demotes the failed bot even when nothing can replace it (the
	// pool may go to zero actives); false holds it ACTIVE with the counter
	// frozen at the threshold.
	DemoteWithoutStandby bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:            3,
		AlertCooldown:        30 * time.Minute,
		DemoteWithoutStandby: true,
	}
}

// SwapResult describes the outcome of one swap attempt.
type SwapResult struct {
	// NoOp is true when the bot was no longer ACTIVE: a concurrent worker
	// already swapped it.
	NoOp bool `json:"noOp,omitempty"`

	// Held is true when no standby existed and policy kept the bot ACTIVE.
	Held bool `json:"held,omitempty"`

	// NoStandby is true when the pool had no replacement.
	NoStandby bool `json:"noStandby,omitempty"`

	Demoted  string `json:"demoted,omitempty"`
	Promoted string `json:"promoted,omitempty"`
	Active   int    `json:"active"`
	Standby  int    `json:"standby"`
}

// Metrics is a snapshot of engine counters for the status surface.
type Metrics struct {
	Swaps      int64 `json:"swaps"`
	AlertsSent int64 `json:"alertsSent"`
}

// Engine applies confirmed check outcomes to the bot pool: success resets,
// failure counts, threshold crossings swap.
type Engine struct {
	repo     bot.Repository
	notifier notify.Notifier
	flagSvc  *flags.Service
	cfg      Config
	logger   zerolog.Logger

	startedAt time.Time
	now       func() time.Time
	alerts    *alertTracker
	critical  *alertTracker

	// Per-bot locks serialize swap attempts between sweep workers and the
	// manual swap endpoint within this process. Cross-process safety comes
	// from the row-locked repository updates underneath.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	swaps      atomic.Int64
	alertsSent atomic.Int64
}

// New creates a failover engine. The grace period starts counting now.
func New(repo bot.Repository, notifier notify.Notifier, flagSvc *flags.Service, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = 30 * time.Minute
	}
	now := time.Now
	e := &Engine{
		repo:      repo,
		notifier:  notifier,
		flagSvc:   flagSvc,
		cfg:       cfg,
		logger:    logger,
		startedAt: now(),
		now:       now,
		locks:     make(map[int64]*sync.Mutex),
	}
	e.alerts = newAlertTracker(cfg.AlertCooldown, func() time.Time { return e.now() })
	e.critical = newAlertTracker(cfg.AlertCooldown, func() time.Time { return e.now() })
	return e
}

func (e *Engine) lockFor(botID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[botID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[botID] = l
	}
	return l
}

// HandleOutcome applies one confirmed outcome for one bot. It is the single
// entry point for the accounting rules: reset on success, increment on
// confirmed failure, swap at threshold.
func (e *Engine) HandleOutcome(ctx context.Context, botID int64, out confirm.Outcome) error {
	if out.Aborted {
		e.logger.Debug().Int64("bot_id", botID).
			Msg("confirmation aborted by shutdown, outcome discarded")
		return nil
	}
	if out.Healthy {
		return e.recordSuccess(ctx, botID, out)
	}
	return e.recordFailure(ctx, botID, out)
}

func (e *Engine) recordSuccess(ctx context.Context, botID int64, out confirm.Outcome) error {
	now := e.now().UTC()
	_, err := e.updateWithRetry(ctx, botID, func(b *bot.Bot) error {
		b.ApplyReport(out.Report)
		b.RecordSuccess(now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording success for bot %d: %w", botID, err)
	}
	e.alerts.clear(botID)
	e.critical.clear(botID)

	if out.Flaky {
		e.logger.Warn().Int64("bot_id", botID).Int("rounds", out.Rounds).
			Msg("bot recovered after confirmation rounds")
	}
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, botID int64, out confirm.Outcome) error {
	now := e.now().UTC()
	var (
		failures int
		state    bot.State
		name     string
		target   string
	)
	_, err := e.updateWithRetry(ctx, botID, func(b *bot.Bot) error {
		b.ApplyReport(out.Report)
		b.RecordFailure(out.Report.Reason, now)
		if b.Failures > e.cfg.Threshold {
			// Held-at-active bots (no standby, hold policy) freeze here
			// instead of counting forever.
			b.Failures = e.cfg.Threshold
		}
		failures = b.Failures
		state = b.State
		name = b.Name
		target = b.TargetURL
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording failure for bot %d: %w", botID, err)
	}

	e.logger.Warn().
		Int64("bot_id", botID).
		Str("bot", name).
		Int("failures", failures).
		Str("reason", out.Report.Reason).
		Msg("confirmed failure")

	if e.alerts.shouldAlert(botID, failures) {
		e.alert(ctx, fmt.Sprintf(
			"Bot failing!\n\nName: %s\nURL: %s\nConsecutive failures: %d\n\n%s",
			name, target, failures, out.Report.Reason))
	}

	if failures < e.cfg.Threshold || state != bot.StateActive {
		return nil
	}

	if elapsed := e.now().Sub(e.startedAt); elapsed < e.cfg.GracePeriod {
		e.logger.Info().
			Int64("bot_id", botID).
			Dur("grace_remaining", e.cfg.GracePeriod-elapsed).
			Msg("threshold reached during startup grace, swap deferred")
		return nil
	}

	_, err = e.Swap(ctx, botID, out.Report.Reason)
	return err
}

// updateWithRetry wraps the repository update with one retry, so a transient
// persistence conflict never permanently loses a failure or success signal;
// anything still failing is re-evaluated next sweep.
func (e *Engine) updateWithRetry(ctx context.Context, botID int64, mutate func(*bot.Bot) error) (bool, error) {
	committed, err := e.repo.UpdateAtomic(ctx, botID, mutate)
	if err == nil {
		return committed, nil
	}
	e.logger.Warn().Err(err).Int64("bot_id", botID).Msg("bot update conflicted, retrying once")
	return e.repo.UpdateAtomic(ctx, botID, mutate)
}

// Swap demotes the bot and promotes the oldest-updated standby. This is the
// single swap path: threshold crossings and operator-forced swaps both enter
// here, and both are safe against a concurrent attempt on the same bot (the
// loser observes the bot already demoted and no-ops).
func (e *Engine) Swap(ctx context.Context, botID int64, reason string) (*SwapResult, error) {
	lock := e.lockFor(botID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now().UTC()

	failed, err := e.repo.Get(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("loading bot %d: %w", botID, err)
	}
	if failed.State != bot.StateActive {
		e.logger.Info().Int64("bot_id", botID).Str("state", string(failed.State)).
			Msg("swap skipped, bot is not active")
		return &SwapResult{NoOp: true}, nil
	}

	standbys, err := e.repo.ListByState(ctx, bot.StateStandby)
	if err != nil {
		return nil, fmt.Errorf("listing standbys: %w", err)
	}

	if len(standbys) == 0 {
		// Held bots re-enter here every sweep; the tracker keeps the critical
		// alert to once per episode plus cooldown refreshes.
		if e.critical.shouldAlert(botID, 0) {
			e.alert(ctx, fmt.Sprintf("CRITICAL: bot %s is down and no standby is available!", failed.Name))
		}
		if !e.cfg.DemoteWithoutStandby {
			e.logger.Error().Int64("bot_id", botID).
				Msg("no standby available, holding failed bot active per policy")
			return &SwapResult{NoStandby: true, Held: true}, nil
		}
	}

	// Step 1: demote. A racing worker that demoted first makes this a no-op.
	committed, err := e.repo.UpdateAtomic(ctx, botID, func(b *bot.Bot) error {
		if b.State != bot.StateActive {
			return bot.ErrSkipUpdate
		}
		if reason != "" {
			b.LastReason = reason
		}
		b.MarkStandby(now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("demoting bot %d: %w", botID, err)
	}
	if !committed {
		return &SwapResult{NoOp: true}, nil
	}
	e.alerts.clear(botID)
	e.critical.clear(botID)

	result := &SwapResult{Demoted: failed.Name, NoStandby: len(standbys) == 0}

	// Step 2: promote the oldest-updated standby; the listing order is the
	// FIFO guarantee. Candidates that changed state underneath us are
	// skipped in favor of the next one.
	for _, candidate := range standbys {
		if candidate.ID == botID {
			continue
		}
		promoted, err := e.repo.UpdateAtomic(ctx, candidate.ID, func(b *bot.Bot) error {
			if b.State != bot.StateStandby {
				return bot.ErrSkipUpdate
			}
			b.MarkActive(now)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("promoting bot %d: %w", candidate.ID, err)
		}
		if promoted {
			result.Promoted = candidate.Name
			break
		}
	}

	stats, err := e.repo.Stats(ctx)
	if err == nil {
		result.Active = stats.Active
		result.Standby = stats.Standby
	}

	e.swaps.Add(1)
	e.logger.Info().
		Str("demoted", result.Demoted).
		Str("promoted", result.Promoted).
		Int("active", result.Active).
		Int("standby", result.Standby).
		Msg("failover executed")

	if result.Promoted != "" {
		e.alert(ctx, fmt.Sprintf(
			"Failover executed.\n\nDemoted: %s\nPromoted: %s\nActive: %d | Standby: %d",
			result.Demoted, result.Promoted, result.Active, result.Standby))
	}
	return result, nil
}

// EnsureActive promotes standbys until minActive bots are serving. Run once
// at startup so a fresh pool (or one drained by failures while the monitor
// was down) starts serving again.
func (e *Engine) EnsureActive(ctx context.Context, minActive int) error {
	active, err := e.repo.ListByState(ctx, bot.StateActive)
	if err != nil {
		return fmt.Errorf("listing active bots: %w", err)
	}
	if len(active) >= minActive {
		return nil
	}

	standbys, err := e.repo.ListByState(ctx, bot.StateStandby)
	if err != nil {
		return fmt.Errorf("listing standbys: %w", err)
	}

	now := e.now().UTC()
	needed := minActive - len(active)
	promoted := 0
	for _, candidate := range standbys {
		if promoted >= needed {
			break
		}
		committed, err := e.repo.UpdateAtomic(ctx, candidate.ID, func(b *bot.Bot) error {
			if b.State != bot.StateStandby {
				return bot.ErrSkipUpdate
			}
			b.MarkActive(now)
			return nil
		})
		if err != nil {
			return fmt.Errorf("promoting bot %d: %w", candidate.ID, err)
		}
		if committed {
			promoted++
			e.logger.Info().Str("bot", candidate.Name).Msg("standby promoted at startup")
		}
	}
	return nil
}

// alert sends an operator alert unless alerts are disabled by flag.
func (e *Engine) alert(ctx context.Context, message string) {
	if e.flagSvc != nil && !e.flagSvc.AlertsEnabled(ctx) {
		e.logger.Debug().Msg("alert suppressed by flag")
		return
	}
	if e.notifier.Notify(ctx, message) {
		e.alertsSent.Add(1)
	}
}

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		Swaps:      e.swaps.Load(),
		AlertsSent: e.alertsSent.Load(),
	}
}
