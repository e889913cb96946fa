package confirm_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/confirm"
)

func passFunc(results ...bool) (func(context.Context) *check.Report, *int) {
	calls := 0
	return func(context.Context) *check.Report {
		ok := results[calls]
		if calls < len(results)-1 {
			calls++
		}
		return &check.Report{BotID: 1, BotName: "primary", OK: ok, Reason: "test"}
	}, &calls
}

func newConfirmer(extraRounds int) *confirm.Confirmer {
	return confirm.New(confirm.Config{
		BaseDelay:   time.Millisecond,
		Jitter:      0.5,
		ExtraRounds: extraRounds,
	}, zerolog.Nop())
}

func TestConfirmer_CleanPass(t *testing.T) {
	pass, _ := passFunc(true)

	out := newConfirmer(0).Run(context.Background(), pass)

	require.True(t, out.Healthy)
	assert.False(t, out.Flaky)
	assert.Equal(t, 1, out.Rounds)
	assert.True(t, out.Report.OK)
}

func TestConfirmer_BlipRecovers(t *testing.T) {
	// First pass fails, the mandatory re-check passes: healthy but flaky.
	pass, _ := passFunc(false, true)

	out := newConfirmer(0).Run(context.Background(), pass)

	require.True(t, out.Healthy)
	assert.True(t, out.Flaky)
	assert.Equal(t, 2, out.Rounds)
}

func TestConfirmer_ConfirmedFailure(t *testing.T) {
	pass, _ := passFunc(false, false)

	out := newConfirmer(0).Run(context.Background(), pass)

	require.False(t, out.Healthy)
	assert.Equal(t, 2, out.Rounds)
	assert.False(t, out.Report.OK)
}

func TestConfirmer_ExtraRounds(t *testing.T) {
	// Recovery on the third pass is still healthy with two extra rounds.
	pass, _ := passFunc(false, false, true)

	out := newConfirmer(2).Run(context.Background(), pass)

	require.True(t, out.Healthy)
	assert.True(t, out.Flaky)
	assert.Equal(t, 3, out.Rounds)
}

func TestConfirmer_CancelledSequenceAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// One failing pass, then shutdown before the mandatory re-check: the
	// outcome is aborted, not confirmed down.
	pass, _ := passFunc(false, true)
	out := confirm.New(confirm.Config{BaseDelay: time.Minute, Jitter: 0.5}, zerolog.Nop()).Run(ctx, pass)

	require.True(t, out.Aborted)
	assert.False(t, out.Healthy)
	assert.Equal(t, 1, out.Rounds)
}
