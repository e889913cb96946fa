// Package bot provides the monitored-bot domain model and its storage.
package bot

import (
	"time"

	"github.com/botsentinel/botsentinel/internal/check"
)

// State is the lifecycle state of a monitored bot. Exactly one set of bots
// is serving at a time; standbys form a FIFO pool ordered by last update.
type State string

const (
	StateActive  State = "active"
	StateStandby State = "standby"
	StateRetired State = "retired"
)

// Bot is one monitored bot record. Created through the external CRUD
// surface; state, counters and diagnostics are mutated only by the failover
// engine and the checkers' diagnostic writes.
type Bot struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"-"`
	TargetURL string `json:"targetUrl"`

	State State `json:"state"`

	// Failures counts consecutive confirmed failures. Meaningful only while
	// ACTIVE; reset to 0 on every transition into ACTIVE or STANDBY.
	Failures   int        `json:"failures"`
	LastOK     *time.Time `json:"lastOk,omitempty"`
	LastReason string     `json:"lastReason,omitempty"`

	// Latest per-checker diagnostic snapshot.
	LastTokenOK   *bool `json:"lastTokenOk,omitempty"`
	LastURLOK     *bool `json:"lastUrlOk,omitempty"`
	LastWebhookOK *bool `json:"lastWebhookOk,omitempty"`
	LastTokenHTTP *int  `json:"lastTokenHttp,omitempty"`
	LastURLHTTP   *int  `json:"lastUrlHttp,omitempty"`

	// Webhook registration snapshot, kept even when healthy.
	WebhookURL         string     `json:"webhookUrl,omitempty"`
	WebhookPending     int        `json:"webhookPending,omitempty"`
	WebhookLastError   string     `json:"webhookLastError,omitempty"`
	WebhookLastErrorAt *time.Time `json:"webhookLastErrorAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version increments on every committed update; used by the optimistic
	// path of the in-memory store and useful for debugging lost updates.
	Version int64 `json:"-"`
}

// Target returns the checker-facing view of this bot.
func (b *Bot) Target() check.Target {
	return check.Target{ID: b.ID, Name: b.Name, Token: b.Token, TargetURL: b.TargetURL}
}

// MarkActive promotes the bot: failures reset, last success stamped.
func (b *Bot) MarkActive(now time.Time) {
	b.State = StateActive
	b.Failures = 0
	b.LastOK = &now
	b.UpdatedAt = now
}

// MarkStandby demotes the bot into the standby pool with a clean counter.
func (b *Bot) MarkStandby(now time.Time) {
	b.State = StateStandby
	b.Failures = 0
	b.UpdatedAt = now
}

// MarkRetired takes the bot out of rotation permanently.
func (b *Bot) MarkRetired(reason string, now time.Time) {
	b.State = StateRetired
	if reason != "" {
		b.LastReason = reason
	}
	b.UpdatedAt = now
}

// RecordSuccess resets the failure counter and stamps the last success.
func (b *Bot) RecordSuccess(now time.Time) {
	b.Failures = 0
	b.LastOK = &now
	b.UpdatedAt = now
}

// RecordFailure increments the consecutive failure counter.
func (b *Bot) RecordFailure(reason string, now time.Time) {
	b.Failures++
	if reason != "" {
		b.LastReason = reason
	}
	b.UpdatedAt = now
}

// ApplyReport copies a diagnostic report onto the record.
func (b *Bot) ApplyReport(r *check.Report) {
	if r == nil {
		return
	}
	tokenOK := r.Credential.Verdict.Passed()
	urlOK := r.Reachability.Verdict.Passed()
	b.LastTokenOK = &tokenOK
	b.LastURLOK = &urlOK
	if r.Webhook.Verdict != check.VerdictIndeterminate {
		webhookOK := r.Webhook.Verdict.Passed()
		b.LastWebhookOK = &webhookOK
	}
	if r.Credential.Code != 0 {
		code := r.Credential.Code
		b.LastTokenHTTP = &code
	}
	if r.Reachability.Code != 0 {
		code := r.Reachability.Code
		b.LastURLHTTP = &code
	}
	if r.WebhookDetail != nil {
		b.WebhookURL = r.WebhookDetail.URL
		b.WebhookPending = r.WebhookDetail.PendingUpdateCount
		b.WebhookLastError = r.WebhookDetail.LastErrorMessage
		b.WebhookLastErrorAt = r.WebhookDetail.LastErrorAt
	}
	b.LastReason = r.Reason
}

// PoolStats are aggregate counts for the status surface.
type PoolStats struct {
	Total         int        `json:"total"`
	Active        int        `json:"active"`
	Standby       int        `json:"standby"`
	Retired       int        `json:"retired"`
	TotalFailures int        `json:"totalFailures"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
}
