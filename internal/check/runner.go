package check

import (
	"context"
	"sync"
	"time"

	"github.com/botsentinel/botsentinel/internal/telegram"
)

// PassOptions carries the per-pass evaluation parameters that depend on
// runtime flags. The caller resolves them once per pass so the checkers stay
// free of shared state.
type PassOptions struct {
	Webhook WebhookPolicy
	Probe   ProbeConfig
}

// Runner executes all four signal checkers concurrently for one bot and
// combines their verdicts through the configured strategy.
type Runner struct {
	credential   *CredentialChecker
	reachability *ReachabilityChecker
	webhook      *WebhookChecker
	probe        *ProbeChecker
	strategy     Strategy
}

// NewRunner creates a check runner.
func NewRunner(credential *CredentialChecker, reachability *ReachabilityChecker, webhook *WebhookChecker, probe *ProbeChecker, strategy Strategy) *Runner {
	return &Runner{
		credential:   credential,
		reachability: reachability,
		webhook:      webhook,
		probe:        probe,
		strategy:     strategy,
	}
}

// Strategy returns the configured decision strategy.
func (r *Runner) Strategy() Strategy {
	return r.strategy
}

// Run performs one full decision pass. Checkers run concurrently; each one is
// safe to invoke across distinct bots and mutates nothing beyond its result.
func (r *Runner) Run(ctx context.Context, t Target, opts PassOptions) *Report {
	report := &Report{
		BotID:     t.ID,
		BotName:   t.Name,
		CheckedAt: time.Now().UTC(),
	}

	var (
		wg          sync.WaitGroup
		webhookInfo *telegram.WebhookInfo
		username    string
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		report.Credential, username = r.credential.Check(ctx, t.Token)
	}()
	go func() {
		defer wg.Done()
		report.Reachability = r.reachability.Check(ctx, t.TargetURL)
	}()
	go func() {
		defer wg.Done()
		report.Webhook, webhookInfo = r.webhook.Check(ctx, t.Token, t.TargetURL, opts.Webhook)
	}()
	go func() {
		defer wg.Done()
		report.Probe = r.probe.Check(ctx, t.Token, opts.Probe)
	}()
	wg.Wait()

	report.WebhookDetail = webhookInfo
	report.Username = username
	report.OK, report.Reason = Decide(report.Credential, report.Webhook, report.Reachability, report.Probe, r.strategy)
	return report
}
