// Package scheduler runs the periodic sweep: every active bot goes through
// checkers, policy, confirmation, accounting and failover, concurrently and
// isolated from its siblings.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/confirm"
	"github.com/botsentinel/botsentinel/internal/failover"
	"github.com/botsentinel/botsentinel/internal/flags"
)

// Config tunes the sweep loop.
type Config struct {
	// Interval is the target cadence between sweep starts. Default: 60s.
	Interval time.Duration

	// Concurrency bounds the worker pool so one slow bot cannot stall the
	// sweep and a large pool cannot stampede the platform API. Default: 4.
	Concurrency int

	// ProbeChatID is the monitoring chat used by the active probe.
	ProbeChatID string

	// WebhookErrorRecency and WebhookPendingCeiling parameterize the webhook
	// checker. See check.WebhookPolicy.
	WebhookErrorRecency   time.Duration
	WebhookPendingCeiling int
}

// Metrics are the aggregate sweep counters exposed on the status surface.
type Metrics struct {
	TotalSweeps       int64         `json:"totalSweeps"`
	TotalChecks       int64         `json:"totalChecks"`
	TotalFailures     int64         `json:"totalFailures"`
	LastSweepAt       time.Time     `json:"lastSweepAt"`
	LastSweepDuration time.Duration `json:"lastSweepDuration"`
}

// Sweeper owns the sweep loop and the latest-report cache.
type Sweeper struct {
	repo      bot.Repository
	runner    *check.Runner
	confirmer *confirm.Confirmer
	engine    *failover.Engine
	flagSvc   *flags.Service
	cfg       Config
	logger    zerolog.Logger

	mu      sync.RWMutex
	metrics Metrics
	reports map[int64]*check.Report

	checksCounter   metric.Int64Counter
	failuresCounter metric.Int64Counter
	sweepDuration   metric.Float64Histogram
}

// New creates a sweeper.
func New(repo bot.Repository, runner *check.Runner, confirmer *confirm.Confirmer, engine *failover.Engine, flagSvc *flags.Service, cfg Config, logger zerolog.Logger, meter metric.Meter) (*Sweeper, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	s := &Sweeper{
		repo:      repo,
		runner:    runner,
		confirmer: confirmer,
		engine:    engine,
		flagSvc:   flagSvc,
		cfg:       cfg,
		logger:    logger,
		reports:   make(map[int64]*check.Report),
	}

	var err error
	if s.checksCounter, err = meter.Int64Counter("sentinel.checks.total",
		metric.WithDescription("Total bot check pipelines executed")); err != nil {
		return nil, err
	}
	if s.failuresCounter, err = meter.Int64Counter("sentinel.failures.total",
		metric.WithDescription("Total confirmed bot failures")); err != nil {
		return nil, err
	}
	if s.sweepDuration, err = meter.Float64Histogram("sentinel.sweep.duration",
		metric.WithDescription("Sweep duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return s, nil
}

// Run executes sweeps until the context is cancelled. Each iteration sleeps
// max(0, interval-elapsed) so the cadence stays roughly constant no matter
// how long the pass took. A sweep always drains completely before the next
// one starts, so two evaluations of the same bot can never overlap.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("concurrency", s.cfg.Concurrency).
		Str("strategy", string(s.runner.Strategy())).
		Msg("sweep loop started")

	for {
		start := time.Now()
		s.Sweep(ctx)

		elapsed := time.Since(start)
		pause := s.cfg.Interval - elapsed
		if pause < 0 {
			pause = 0
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("sweep loop stopped")
			return
		case <-timer.C:
		}
	}
}

// Sweep runs one full pass over the active bots with a bounded worker pool.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()

	bots, err := s.repo.ListByState(ctx, bot.StateActive)
	if err != nil {
		s.logger.Error().Err(err).Msg("loading active bots failed, skipping sweep")
		return
	}

	jobs := make(chan *bot.Bot, len(bots))
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				s.processBot(ctx, b)
			}
		}()
	}
	for _, b := range bots {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(start)
	s.mu.Lock()
	s.metrics.TotalSweeps++
	s.metrics.LastSweepAt = time.Now().UTC()
	s.metrics.LastSweepDuration = duration
	s.mu.Unlock()
	s.sweepDuration.Record(ctx, duration.Seconds())

	s.logger.Info().
		Int("bots", len(bots)).
		Dur("duration", duration).
		Msg("sweep completed")
}

// processBot runs one bot's pipeline. A panic or error in one pipeline never
// aborts the sweep for the others.
func (s *Sweeper) processBot(ctx context.Context, b *bot.Bot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Int64("bot_id", b.ID).Interface("panic", r).
				Msg("bot pipeline panicked")
		}
	}()

	logger := s.logger.With().Int64("bot_id", b.ID).Str("bot", b.Name).Logger()
	logger.Debug().Str("target", b.TargetURL).Msg("checking bot")

	opts := s.passOptions(ctx)
	target := b.Target()
	pass := func(ctx context.Context) *check.Report {
		return s.runner.Run(ctx, target, opts)
	}

	outcome := s.confirmer.Run(ctx, pass)
	s.storeReport(outcome.Report)

	confirmedDown := !outcome.Healthy && !outcome.Aborted
	s.mu.Lock()
	s.metrics.TotalChecks++
	if confirmedDown {
		s.metrics.TotalFailures++
	}
	s.mu.Unlock()
	s.checksCounter.Add(ctx, 1)
	if confirmedDown {
		s.failuresCounter.Add(ctx, 1)
	}

	if err := s.engine.HandleOutcome(ctx, b.ID, outcome); err != nil {
		logger.Error().Err(err).Msg("applying check outcome failed")
	}
}

// passOptions resolves the flag-dependent checker parameters once per pass.
func (s *Sweeper) passOptions(ctx context.Context) check.PassOptions {
	return check.PassOptions{
		Webhook: check.WebhookPolicy{
			RequireURLMatch: s.flagSvc.WebhookRequireMatch(ctx),
			ErrorRecency:    s.cfg.WebhookErrorRecency,
			PendingCeiling:  s.cfg.WebhookPendingCeiling,
		},
		Probe: check.ProbeConfig{
			Enabled:         s.flagSvc.IsProbeEnabled(ctx),
			ChatID:          s.cfg.ProbeChatID,
			DeleteAfterSend: s.flagSvc.ShouldDeleteProbeMessage(ctx),
		},
	}
}

func (s *Sweeper) storeReport(r *check.Report) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.BotID] = r
}

// LatestReport returns the most recent diagnostic report for a bot, or nil.
func (s *Sweeper) LatestReport(botID int64) *check.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[botID]
}

// Snapshot returns the current sweep metrics.
func (s *Sweeper) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}
