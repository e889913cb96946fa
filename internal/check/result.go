package check

import (
	"time"

	"github.com/botsentinel/botsentinel/internal/telegram"
)

// Result is the outcome of a single checker invocation.
type Result struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
	// Code is the transport status code when one was observed, 0 otherwise.
	Code int `json:"code,omitempty"`
}

func ok(reason string, code int) Result {
	return Result{Verdict: VerdictOK, Reason: reason, Code: code}
}

func fail(reason string, code int) Result {
	return Result{Verdict: VerdictFail, Reason: reason, Code: code}
}

func indeterminate(reason string) Result {
	return Result{Verdict: VerdictIndeterminate, Reason: reason}
}

// Target identifies the bot a report is about without depending on the
// storage model.
type Target struct {
	ID        int64
	Name      string
	Token     string
	TargetURL string
}

// Report is the diagnostic produced by one full check pass over one bot.
// The latest report per bot is cached for the status surface; long-term
// history only survives as the free-text reason on the bot record.
type Report struct {
	BotID   int64  `json:"botId"`
	BotName string `json:"botName"`

	Credential   Result `json:"credential"`
	Reachability Result `json:"reachability"`
	Webhook      Result `json:"webhook"`
	Probe        Result `json:"probe"`

	// WebhookDetail is the raw callback registration, present whenever the
	// webhook checker got a response, healthy or not.
	WebhookDetail *telegram.WebhookInfo `json:"webhookDetail,omitempty"`

	// Username is the platform identity behind the token, when known.
	Username string `json:"username,omitempty"`

	OK        bool      `json:"ok"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checkedAt"`
}
