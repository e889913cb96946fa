package flags_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/flags"
)

func newService() (*flags.Service, *flags.InMemoryRepository) {
	repo := flags.NewInMemoryRepository()
	svc := flags.NewService(flags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   1 * time.Minute,
	})
	return svc, repo
}

func TestService_Defaults(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if !svc.IsProbeEnabled(ctx) {
		t.Error("probe should default to enabled")
	}
	if svc.ShouldDeleteProbeMessage(ctx) {
		t.Error("probe cleanup should default to disabled")
	}
	if !svc.AlertsEnabled(ctx) {
		t.Error("alerts should default to enabled")
	}
	if svc.WebhookRequireMatch(ctx) {
		t.Error("webhook url match should default to not required")
	}
}

func TestService_SetFlagOverridesDefault(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	err := svc.SetFlag(ctx, &flags.Flag{
		Key:   flags.FlagAlertsEnabled,
		Value: false,
	})
	if err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if svc.AlertsEnabled(ctx) {
		t.Error("expected alerts to be disabled after flag change")
	}
}

func TestService_GetAllFlags(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	all := svc.GetAllFlags(ctx)
	for key := range flags.Defaults() {
		if _, ok := all[key]; !ok {
			t.Errorf("expected flag %q in result", key)
		}
	}
}

func TestService_NilServiceServesDefaults(t *testing.T) {
	// The failover engine tolerates a nil service in tests; the accessors
	// must fall back to defaults instead of panicking.
	var svc *flags.Service
	if !svc.AlertsEnabled(context.Background()) {
		t.Error("nil service should report default")
	}
}
