package failover

import (
	"sync"
	"time"
)

// alertState tracks the ongoing failure episode of one bot so the operator
// is told once at the start of trouble and again only after the cooldown,
// not on every sweep.
type alertState struct {
	lastAlertAt  time.Time
	lastFailures int
}

// alertTracker is the per-process debounce map. Entries are created lazily
// on first failure and cleared on recovery or swap.
type alertTracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	states   map[int64]*alertState
}

func newAlertTracker(cooldown time.Duration, now func() time.Time) *alertTracker {
	return &alertTracker{
		cooldown: cooldown,
		now:      now,
		states:   make(map[int64]*alertState),
	}
}

// shouldAlert reports whether a "down" alert may fire for this bot now, and
// records the alert when it may. First failure always alerts; afterwards
// only once the cooldown has elapsed.
func (t *alertTracker) shouldAlert(botID int64, failures int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	st, ok := t.states[botID]
	if !ok {
		t.states[botID] = &alertState{lastAlertAt: now, lastFailures: failures}
		return true
	}

	st.lastFailures = failures
	if now.Sub(st.lastAlertAt) >= t.cooldown {
		st.lastAlertAt = now
		return true
	}
	return false
}

// clear ends the failure episode for a bot.
func (t *alertTracker) clear(botID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, botID)
}
