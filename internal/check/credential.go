package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/botsentinel/botsentinel/internal/telegram"
)

// CredentialChecker confirms the bot token is currently accepted by the
// platform via a lightweight who-am-I call. It performs exactly one request;
// retries belong to the confirmation protocol.
type CredentialChecker struct {
	tg *telegram.Client
}

// NewCredentialChecker creates a credential checker.
func NewCredentialChecker(tg *telegram.Client) *CredentialChecker {
	return &CredentialChecker{tg: tg}
}

// Check validates the token. The username of the identity behind the token
// is returned for diagnostics when the check succeeds.
func (c *CredentialChecker) Check(ctx context.Context, token string) (Result, string) {
	if token == "" {
		return fail("token not set", 0), ""
	}

	identity, err := c.tg.GetMe(ctx, token)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			return fail(fmt.Sprintf("token rejected: %s", apiErr.Error()), apiErr.StatusCode), ""
		}
		return fail(fmt.Sprintf("token check failed: %v", err), 0), ""
	}
	return ok(fmt.Sprintf("token valid (@%s)", identity.Username), 200), identity.Username
}
