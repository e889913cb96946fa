package check

import (
	"fmt"
)

// Strategy selects how per-checker verdicts combine into one decision.
// It is plain configuration so deployments can tune without a rebuild.
type Strategy string

const (
	StrategyCredentialOnly            Strategy = "credential_only"
	StrategyReachabilityOnly          Strategy = "reachability_only"
	StrategyCredentialAndReachability Strategy = "credential_and_reachability"
	StrategyCredentialOrReachability  Strategy = "credential_or_reachability"

	// StrategyFullStrict requires credential, webhook and reachability to
	// pass; an indeterminate checker counts as passing so that a disabled
	// signal never blockades the verdict.
	StrategyFullStrict Strategy = "full_strict"

	// StrategyProbePlus requires the active probe to succeed outright, plus
	// webhook and reachability. Unlike full_strict, an indeterminate probe
	// fails this strategy: it exists precisely to demand proof of life, so a
	// probe that cannot run is treated as absence of that proof.
	StrategyProbePlus Strategy = "probe_plus"
)

// DefaultStrategy is the recommended decision strategy.
const DefaultStrategy = StrategyFullStrict

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyCredentialOnly, StrategyReachabilityOnly,
		StrategyCredentialAndReachability, StrategyCredentialOrReachability,
		StrategyFullStrict, StrategyProbePlus:
		return Strategy(s), nil
	case "":
		return DefaultStrategy, nil
	}
	return "", fmt.Errorf("unknown health strategy %q", s)
}

// Decide combines the four checker results into one verdict and a reason
// string concatenating every sub-verdict. The reason is the only audit trail
// retained, so it always carries all four signals.
func Decide(credential, webhook, reachability, probe Result, strategy Strategy) (bool, string) {
	var healthy bool
	switch strategy {
	case StrategyCredentialOnly:
		healthy = credential.Verdict.PassedOrSkipped()
	case StrategyReachabilityOnly:
		healthy = reachability.Verdict.PassedOrSkipped()
	case StrategyCredentialAndReachability:
		healthy = credential.Verdict.PassedOrSkipped() && reachability.Verdict.PassedOrSkipped()
	case StrategyCredentialOrReachability:
		// OR-type: indeterminate signals are ignored, not counted as passes.
		// With both signals indeterminate nothing was evaluated, and an
		// unevaluated signal never forces a failure.
		healthy = credential.Verdict.Passed() || reachability.Verdict.Passed() ||
			(credential.Verdict == VerdictIndeterminate && reachability.Verdict == VerdictIndeterminate)
	case StrategyProbePlus:
		healthy = probe.Verdict.Passed() &&
			webhook.Verdict.PassedOrSkipped() &&
			reachability.Verdict.PassedOrSkipped()
	case StrategyFullStrict:
		fallthrough
	default:
		healthy = credential.Verdict.PassedOrSkipped() &&
			webhook.Verdict.PassedOrSkipped() &&
			reachability.Verdict.PassedOrSkipped()
	}

	reason := fmt.Sprintf("token: %s | url: %s | webhook: %s | probe: %s",
		credential.Reason, reachability.Reason, webhook.Reason, probe.Reason)
	return healthy, reason
}
