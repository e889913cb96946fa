// Package check provides the health-signal checkers and the decision policy
// that combines their verdicts.
package check

// Verdict is the tri-state outcome of a single checker. Indeterminate means
// the signal could not be evaluated (for example the probe is disabled) and
// must never force a failure on its own.
type Verdict string

const (
	VerdictOK            Verdict = "ok"
	VerdictFail          Verdict = "fail"
	VerdictIndeterminate Verdict = "indeterminate"
)

// Passed reports whether the verdict is a definite success.
func (v Verdict) Passed() bool {
	return v == VerdictOK
}

// PassedOrSkipped reports whether the verdict is a success or the checker was
// not evaluated. Conjunction-style strategies use this so a disabled checker
// never blockades the decision.
func (v Verdict) PassedOrSkipped() bool {
	return v == VerdictOK || v == VerdictIndeterminate
}
