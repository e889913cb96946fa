package failover

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/confirm"
)

// countingNotifier records every delivered alert.
type countingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *countingNotifier) Notify(_ context.Context, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return true
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *countingNotifier) containing(substr string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	matches := 0
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			matches++
		}
	}
	return matches
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine(t *testing.T, repo bot.Repository, notifier *countingNotifier, cfg Config) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	e := New(repo, notifier, nil, cfg, zerolog.Nop())
	e.now = clock.now
	e.startedAt = clock.now()
	e.alerts = newAlertTracker(e.cfg.AlertCooldown, clock.now)
	e.critical = newAlertTracker(e.cfg.AlertCooldown, clock.now)
	return e, clock
}

func seedPool(t *testing.T, repo bot.Repository, actives, standbys int) []*bot.Bot {
	t.Helper()
	var bots []*bot.Bot
	base := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	for i := 0; i < actives; i++ {
		b := &bot.Bot{
			Name:      "active-" + string(rune('a'+i)),
			Token:     "tok",
			TargetURL: "https://active.example.com",
			State:     bot.StateActive,
			UpdatedAt: base,
		}
		require.NoError(t, repo.Create(context.Background(), b))
		bots = append(bots, b)
	}
	for i := 0; i < standbys; i++ {
		b := &bot.Bot{
			Name:      "standby-" + string(rune('a'+i)),
			Token:     "tok",
			TargetURL: "https://standby.example.com",
			State:     bot.StateStandby,
			UpdatedAt: base.Add(time.Duration(i+1) * time.Hour),
		}
		require.NoError(t, repo.Create(context.Background(), b))
		bots = append(bots, b)
	}
	return bots
}

func failingOutcome(botID int64, reason string) confirm.Outcome {
	return confirm.Outcome{
		Healthy: false,
		Rounds:  2,
		Report:  &check.Report{BotID: botID, OK: false, Reason: reason},
	}
}

func healthyOutcome(botID int64) confirm.Outcome {
	return confirm.Outcome{
		Healthy: true,
		Rounds:  1,
		Report:  &check.Report{BotID: botID, OK: true, Reason: "all checks passed"},
	}
}

func TestEngine_ThresholdTriggersSwap(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	notifier := &countingNotifier{}
	e, _ := newTestEngine(t, repo, notifier, Config{Threshold: 2, AlertCooldown: 30 * time.Minute, DemoteWithoutStandby: true})
	bots := seedPool(t, repo, 1, 1)
	active, standby := bots[0], bots[1]
	ctx := context.Background()

	// First failure: counted, no swap yet.
	require.NoError(t, e.HandleOutcome(ctx, active.ID, failingOutcome(active.ID, "HTTP 500")))
	got, _ := repo.Get(ctx, active.ID)
	assert.Equal(t, bot.StateActive, got.State)
	assert.Equal(t, 1, got.Failures)

	// Second failure reaches the threshold.
	require.NoError(t, e.HandleOutcome(ctx, active.ID, failingOutcome(active.ID, "HTTP 500")))

	demoted, _ := repo.Get(ctx, active.ID)
	assert.Equal(t, bot.StateStandby, demoted.State)
	assert.Equal(t, 0, demoted.Failures, "counter resets on demotion")

	promoted, _ := repo.Get(ctx, standby.ID)
	assert.Equal(t, bot.StateActive, promoted.State)
	assert.Equal(t, 0, promoted.Failures)

	assert.Equal(t, int64(1), e.Metrics().Swaps)
}

func TestEngine_SuccessResetsCounter(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	e, _ := newTestEngine(t, repo, &countingNotifier{}, Config{Threshold: 3})
	bots := seedPool(t, repo, 1, 0)
	ctx := context.Background()

	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, healthyOutcome(bots[0].ID)))

	got, _ := repo.Get(ctx, bots[0].ID)
	assert.Equal(t, 0, got.Failures)
	assert.Equal(t, bot.StateActive, got.State)
	assert.NotNil(t, got.LastOK)
}

func TestEngine_SwapPromotesOldestStandby(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	e, _ := newTestEngine(t, repo, &countingNotifier{}, Config{Threshold: 1, DemoteWithoutStandby: true})
	bots := seedPool(t, repo, 1, 3)
	ctx := context.Background()

	result, err := e.Swap(ctx, bots[0].ID, "test swap")
	require.NoError(t, err)

	// standby-a has the oldest UpdatedAt and must win.
	assert.Equal(t, "standby-a", result.Promoted)
	assert.Equal(t, "active-a", result.Demoted)

	promoted, _ := repo.GetByName(ctx, "standby-a")
	assert.Equal(t, bot.StateActive, promoted.State)
	untouched, _ := repo.GetByName(ctx, "standby-b")
	assert.Equal(t, bot.StateStandby, untouched.State)
}

func TestEngine_ConcurrentSwapSingleTransition(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	e, _ := newTestEngine(t, repo, &countingNotifier{}, Config{Threshold: 1, DemoteWithoutStandby: true})
	bots := seedPool(t, repo, 1, 2)
	ctx := context.Background()

	const attempts = 8
	results := make([]*SwapResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Swap(ctx, bots[0].ID, "race")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	transitions := 0
	for _, r := range results {
		if !r.NoOp {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions, "exactly one attempt may win")

	stats, _ := repo.Stats(ctx)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 2, stats.Standby)
}

func TestEngine_GracePeriodDefersSwap(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	e, clock := newTestEngine(t, repo, &countingNotifier{}, Config{
		Threshold:            1,
		GracePeriod:          10 * time.Minute,
		DemoteWithoutStandby: true,
	})
	bots := seedPool(t, repo, 1, 1)
	ctx := context.Background()

	// Within the grace window the failure counts but no swap happens.
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
	got, _ := repo.Get(ctx, bots[0].ID)
	assert.Equal(t, bot.StateActive, got.State)
	assert.Equal(t, 1, got.Failures)

	// After the grace window the next threshold crossing swaps.
	clock.advance(11 * time.Minute)
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
	got, _ = repo.Get(ctx, bots[0].ID)
	assert.Equal(t, bot.StateStandby, got.State)
}

func TestEngine_NoStandbyPolicies(t *testing.T) {
	t.Run("demote without standby", func(t *testing.T) {
		repo := bot.NewInMemoryRepository()
		notifier := &countingNotifier{}
		e, _ := newTestEngine(t, repo, notifier, Config{Threshold: 1, DemoteWithoutStandby: true})
		bots := seedPool(t, repo, 1, 0)
		ctx := context.Background()

		result, err := e.Swap(ctx, bots[0].ID, "down")
		require.NoError(t, err)
		assert.True(t, result.NoStandby)
		assert.Equal(t, "", result.Promoted)

		got, _ := repo.Get(ctx, bots[0].ID)
		assert.Equal(t, bot.StateStandby, got.State, "pool may drain to zero actives")
		assert.GreaterOrEqual(t, notifier.count(), 1, "critical alert expected")
	})

	t.Run("hold active", func(t *testing.T) {
		repo := bot.NewInMemoryRepository()
		notifier := &countingNotifier{}
		e, _ := newTestEngine(t, repo, notifier, Config{Threshold: 1, DemoteWithoutStandby: false})
		bots := seedPool(t, repo, 1, 0)
		ctx := context.Background()

		result, err := e.Swap(ctx, bots[0].ID, "down")
		require.NoError(t, err)
		assert.True(t, result.Held)

		got, _ := repo.Get(ctx, bots[0].ID)
		assert.Equal(t, bot.StateActive, got.State, "failed bot stays active per policy")
	})
}

func TestEngine_AlertCooldown(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	notifier := &countingNotifier{}
	// High threshold so no swap interferes with the alert accounting.
	e, clock := newTestEngine(t, repo, notifier, Config{Threshold: 100, AlertCooldown: 30 * time.Minute})
	bots := seedPool(t, repo, 1, 0)
	ctx := context.Background()

	// 45 sweeps one minute apart: the first failure alerts immediately, the
	// next alert is allowed only at the 30 minute mark.
	for i := 0; i < 45; i++ {
		require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
		clock.advance(time.Minute)
	}

	assert.Equal(t, 2, notifier.count())
}

func TestEngine_AbortedOutcomeNotCounted(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	notifier := &countingNotifier{}
	e, _ := newTestEngine(t, repo, notifier, Config{Threshold: 1, DemoteWithoutStandby: true})
	bots := seedPool(t, repo, 1, 1)
	ctx := context.Background()

	// A shutdown-aborted confirmation carries a failing report but must not
	// touch the counter, alert, or swap.
	aborted := confirm.Outcome{
		Aborted: true,
		Rounds:  1,
		Report:  &check.Report{BotID: bots[0].ID, OK: false, Reason: "HTTP 500"},
	}
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, aborted))

	got, _ := repo.Get(ctx, bots[0].ID)
	assert.Equal(t, bot.StateActive, got.State)
	assert.Equal(t, 0, got.Failures)
	assert.Equal(t, 0, notifier.count())
	assert.Equal(t, int64(0), e.Metrics().Swaps)
}

func TestEngine_NoStandbyCriticalAlertCooldown(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	notifier := &countingNotifier{}
	e, clock := newTestEngine(t, repo, notifier, Config{
		Threshold:            1,
		AlertCooldown:        30 * time.Minute,
		DemoteWithoutStandby: false,
	})
	bots := seedPool(t, repo, 1, 0)
	ctx := context.Background()

	// The held bot re-enters the swap path on every sweep; the critical
	// alert still fires only once per cooldown window.
	for i := 0; i < 5; i++ {
		require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
		clock.advance(time.Minute)
	}
	assert.Equal(t, 1, notifier.containing("CRITICAL"))

	clock.advance(30 * time.Minute)
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
	assert.Equal(t, 2, notifier.containing("CRITICAL"))

	// Recovery closes the episode; the next crisis alerts immediately.
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, healthyOutcome(bots[0].ID)))
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 502")))
	assert.Equal(t, 3, notifier.containing("CRITICAL"))
}

func TestEngine_RecoveryReopensAlerting(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	notifier := &countingNotifier{}
	e, _ := newTestEngine(t, repo, notifier, Config{Threshold: 100, AlertCooldown: 30 * time.Minute})
	bots := seedPool(t, repo, 1, 0)
	ctx := context.Background()

	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 500")))
	assert.Equal(t, 1, notifier.count())

	// Recovery closes the episode; a fresh failure alerts again immediately.
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, healthyOutcome(bots[0].ID)))
	require.NoError(t, e.HandleOutcome(ctx, bots[0].ID, failingOutcome(bots[0].ID, "HTTP 502")))
	assert.Equal(t, 2, notifier.count())
}

func TestEngine_SwapNonActiveIsNoOp(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	e, _ := newTestEngine(t, repo, &countingNotifier{}, Config{Threshold: 1})
	bots := seedPool(t, repo, 0, 1)
	ctx := context.Background()

	result, err := e.Swap(ctx, bots[0].ID, "not active")
	require.NoError(t, err)
	assert.True(t, result.NoOp)
}

func TestEngine_EnsureActive(t *testing.T) {
	repo := bot.NewInMemoryRepository()
	e, _ := newTestEngine(t, repo, &countingNotifier{}, Config{Threshold: 3})
	seedPool(t, repo, 0, 3)
	ctx := context.Background()

	require.NoError(t, e.EnsureActive(ctx, 2))

	stats, _ := repo.Stats(ctx)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Standby)

	// Oldest-updated standbys get promoted first.
	a, _ := repo.GetByName(ctx, "standby-a")
	assert.Equal(t, bot.StateActive, a.State)
	c, _ := repo.GetByName(ctx, "standby-c")
	assert.Equal(t, bot.StateStandby, c.State)
}

func TestAlertTracker(t *testing.T) {
	clock := newFakeClock()
	tracker := newAlertTracker(30*time.Minute, clock.now)

	assert.True(t, tracker.shouldAlert(1, 1), "first failure alerts")
	assert.False(t, tracker.shouldAlert(1, 2), "repeat within cooldown is silent")

	clock.advance(31 * time.Minute)
	assert.True(t, tracker.shouldAlert(1, 3), "cooldown elapsed")

	tracker.clear(1)
	assert.True(t, tracker.shouldAlert(1, 1), "cleared episode alerts again")

	assert.True(t, tracker.shouldAlert(2, 1), "bots are tracked independently")
}
