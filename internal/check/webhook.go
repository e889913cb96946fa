package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botsentinel/botsentinel/internal/telegram"
)

// WebhookPolicy holds the per-sweep evaluation parameters for the webhook
// checker. RequireURLMatch is runtime-toggleable, so the caller resolves it
// from the flag store and passes it in.
type WebhookPolicy struct {
	// RequireURLMatch fails the check when the registered callback URL does
	// not match the bot's target URL.
	RequireURLMatch bool

	// ErrorRecency fails the check when the registration reports an error
	// within this window. Zero means any recorded error fails.
	ErrorRecency time.Duration

	// PendingCeiling fails the check when the pending-update backlog exceeds
	// this count. Zero means any backlog fails.
	PendingCeiling int
}

// WebhookChecker evaluates the bot's callback registration: URL match,
// recent delivery errors, and backlog size. The raw registration is returned
// alongside the verdict for observability even when healthy.
type WebhookChecker struct {
	tg *telegram.Client
}

// NewWebhookChecker creates a webhook-state checker.
func NewWebhookChecker(tg *telegram.Client) *WebhookChecker {
	return &WebhookChecker{tg: tg}
}

// Check retrieves and evaluates the registration.
func (c *WebhookChecker) Check(ctx context.Context, token, targetURL string, policy WebhookPolicy) (Result, *telegram.WebhookInfo) {
	if token == "" {
		return fail("token not set", 0), nil
	}

	info, err := c.tg.GetWebhookInfo(ctx, token)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			return fail(fmt.Sprintf("webhook lookup failed: %s", apiErr.Error()), apiErr.StatusCode), nil
		}
		return fail(fmt.Sprintf("webhook lookup failed: %v", err), 0), nil
	}

	if info.URL == "" {
		return fail("no webhook registered", 200), info
	}
	if policy.RequireURLMatch && !sameEndpoint(info.URL, targetURL) {
		return fail(fmt.Sprintf("webhook url %q does not match target", info.URL), 200), info
	}
	if info.LastErrorAt != nil {
		recent := policy.ErrorRecency <= 0 || time.Since(*info.LastErrorAt) <= policy.ErrorRecency
		if recent {
			return fail(fmt.Sprintf("webhook error: %s", info.LastErrorMessage), 200), info
		}
	}
	if info.PendingUpdateCount > policy.PendingCeiling {
		return fail(fmt.Sprintf("%d updates pending", info.PendingUpdateCount), 200), info
	}

	return ok("webhook registered and healthy", 200), info
}

func sameEndpoint(a, b string) bool {
	trim := func(s string) string {
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		return strings.TrimSuffix(s, "/")
	}
	return trim(a) == trim(b)
}
