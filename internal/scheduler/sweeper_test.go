package scheduler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/confirm"
	"github.com/botsentinel/botsentinel/internal/failover"
	"github.com/botsentinel/botsentinel/internal/flags"
	"github.com/botsentinel/botsentinel/internal/notify"
	"github.com/botsentinel/botsentinel/internal/scheduler"
	"github.com/botsentinel/botsentinel/internal/telegram"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return true
}

func (n *recordingNotifier) countContaining(substr string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			count++
		}
	}
	return count
}

// TestSweeper_FailoverEndToEnd drives the full pipeline with real HTTP
// servers: the active bot's target keeps returning 500 while a standby's
// target is healthy. With a threshold of two the second sweep must swap.
func TestSweeper_FailoverEndToEnd(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"username":"pool_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/getWebhookInfo"):
			fmt.Fprint(w, `{"ok":true,"result":{"url":"https://hook.example.com","pending_update_count":0}}`)
		default:
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":1}}`)
		}
	}))
	defer platform.Close()

	ctx := context.Background()
	repo := bot.NewInMemoryRepository()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	primary := &bot.Bot{Name: "primary", Token: "t1", TargetURL: failing.URL, State: bot.StateActive, UpdatedAt: base}
	reserve := &bot.Bot{Name: "reserve", Token: "t2", TargetURL: healthy.URL, State: bot.StateStandby, UpdatedAt: base.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, primary))
	require.NoError(t, repo.Create(ctx, reserve))

	tg := telegram.NewClient(telegram.ClientConfig{
		BaseURL:    platform.URL,
		HTTPClient: platform.Client(),
		Logger:     zerolog.Nop(),
	})
	runner := check.NewRunner(
		check.NewCredentialChecker(tg),
		check.NewReachabilityChecker(check.ReachabilityConfig{Timeout: 2 * time.Second}),
		check.NewWebhookChecker(tg),
		check.NewProbeChecker(tg, zerolog.Nop()),
		check.StrategyFullStrict,
	)
	confirmer := confirm.New(confirm.Config{BaseDelay: time.Millisecond, Jitter: 0.5}, zerolog.Nop())

	notifier := &recordingNotifier{}
	flagSvc := flags.NewService(flags.ServiceConfig{
		Repository: flags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	engine := failover.New(repo, notifier, flagSvc, failover.Config{
		Threshold:            2,
		AlertCooldown:        30 * time.Minute,
		DemoteWithoutStandby: true,
	}, zerolog.Nop())

	sweeper, err := scheduler.New(repo, runner, confirmer, engine, flagSvc, scheduler.Config{
		Interval:    time.Minute,
		Concurrency: 2,
	}, zerolog.Nop(), otel.Meter("test"))
	require.NoError(t, err)

	// Sweep 1: primary fails once, stays active.
	sweeper.Sweep(ctx)
	got, _ := repo.GetByName(ctx, "primary")
	assert.Equal(t, bot.StateActive, got.State)
	assert.Equal(t, 1, got.Failures)

	// Sweep 2: threshold reached, roles swap.
	sweeper.Sweep(ctx)
	demoted, _ := repo.GetByName(ctx, "primary")
	assert.Equal(t, bot.StateStandby, demoted.State)
	promoted, _ := repo.GetByName(ctx, "reserve")
	assert.Equal(t, bot.StateActive, promoted.State)

	assert.Equal(t, 1, notifier.countContaining("Failover executed"))
	assert.Equal(t, int64(1), engine.Metrics().Swaps)

	metrics := sweeper.Snapshot()
	assert.Equal(t, int64(2), metrics.TotalSweeps)
	assert.Equal(t, int64(2), metrics.TotalChecks)
	assert.Equal(t, int64(2), metrics.TotalFailures)
	assert.False(t, metrics.LastSweepAt.IsZero())

	report := sweeper.LatestReport(demoted.ID)
	require.NotNil(t, report)
	assert.False(t, report.OK)
	assert.Contains(t, report.Reason, "url: HTTP 500")

	// Diagnostics landed on the stored record.
	require.NotNil(t, demoted.LastURLOK)
	assert.False(t, *demoted.LastURLOK)
	require.NotNil(t, demoted.LastTokenOK)
	assert.True(t, *demoted.LastTokenOK)
}

// TestSweeper_HealthySweepIsQuiet checks the no-news path: nothing changes
// and nothing is alerted when all active bots pass.
func TestSweeper_HealthySweepIsQuiet(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"username":"pool_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/getWebhookInfo"):
			fmt.Fprint(w, `{"ok":true,"result":{"url":"https://hook.example.com","pending_update_count":0}}`)
		default:
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":1}}`)
		}
	}))
	defer platform.Close()

	ctx := context.Background()
	repo := bot.NewInMemoryRepository()
	require.NoError(t, repo.Create(ctx, &bot.Bot{
		Name: "primary", Token: "t1", TargetURL: healthy.URL, State: bot.StateActive,
	}))

	tg := telegram.NewClient(telegram.ClientConfig{
		BaseURL:    platform.URL,
		HTTPClient: platform.Client(),
		Logger:     zerolog.Nop(),
	})
	runner := check.NewRunner(
		check.NewCredentialChecker(tg),
		check.NewReachabilityChecker(check.ReachabilityConfig{Timeout: 2 * time.Second}),
		check.NewWebhookChecker(tg),
		check.NewProbeChecker(tg, zerolog.Nop()),
		check.StrategyFullStrict,
	)
	confirmer := confirm.New(confirm.Config{BaseDelay: time.Millisecond, Jitter: 0.5}, zerolog.Nop())

	notifier := &recordingNotifier{}
	flagSvc := flags.NewService(flags.ServiceConfig{
		Repository: flags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	engine := failover.New(repo, notifier, flagSvc, failover.DefaultConfig(), zerolog.Nop())

	sweeper, err := scheduler.New(repo, runner, confirmer, engine, flagSvc, scheduler.Config{}, zerolog.Nop(), otel.Meter("test"))
	require.NoError(t, err)

	sweeper.Sweep(ctx)

	got, _ := repo.GetByName(ctx, "primary")
	assert.Equal(t, bot.StateActive, got.State)
	assert.Equal(t, 0, got.Failures)
	assert.NotNil(t, got.LastOK)
	assert.Empty(t, notifier.messages)

	metrics := sweeper.Snapshot()
	assert.Equal(t, int64(1), metrics.TotalChecks)
	assert.Equal(t, int64(0), metrics.TotalFailures)
}

var _ notify.Notifier = (*recordingNotifier)(nil)
