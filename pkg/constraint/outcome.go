package constraint

// Outcome classifies the result of one constraint check.
type Outcome string

const (
	// OutcomeAdmitted means every constraint passed.
	OutcomeAdmitted Outcome = "admitted"

	// OutcomeLimitExceeded means a token bucket lacked the balance to
	// cover the operation cost.
	OutcomeLimitExceeded Outcome = "limit_exceeded"

	// OutcomeWindowClosed means the current time falls outside a
	// temporal window.
	OutcomeWindowClosed Outcome = "window_closed"

	// OutcomeConsensusFailure means the CAS retry budget exhausted
	// without a successful write. Whether the request is admitted then
	// depends on the fail-open flag; the outcome stays distinct so
	// callers can audit ambiguous admissions.
	OutcomeConsensusFailure Outcome = "consensus_failure"
)

// CheckResult is the outcome of checking all of a policy's constraints
// for one subject.
type CheckResult struct {
	// Outcome classifies the first non-passing check, or admitted.
	Outcome Outcome

	// Admitted is the enforcement decision after applying the fail-open
	// flag to consensus failures.
	Admitted bool

	// ConstraintID names the constraint that produced a non-admitted
	// outcome. Empty when admitted.
	ConstraintID string

	// RemainingTokens is the bucket balance after the check, for the
	// last rate limit evaluated. Negative when unknown.
	RemainingTokens float64

	// Retries is how many CAS retries the check needed.
	Retries int
}
