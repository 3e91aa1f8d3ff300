package decision

import (
	"time"

	"mercator-hq/saturn/pkg/constraint"
	"mercator-hq/saturn/pkg/pdl/ast"
	"mercator-hq/saturn/pkg/vm"
)

// VerdictError is the terminal verdict for requests the orchestrator
// could not evaluate at all (unknown policy, compilation failure). Rule
// verdicts never take this value.
const VerdictError ast.Verdict = "error"

// ReasonCode explains how a response's verdict was reached. Stable
// values, intended for audit queries.
type ReasonCode string

const (
	// ReasonRuleMatch: at least one rule matched and decided.
	ReasonRuleMatch ReasonCode = "rule_match"

	// ReasonDefaultVerdict: no rule matched; the policy default applied.
	ReasonDefaultVerdict ReasonCode = "default_verdict"

	// ReasonNotApplicable: the policy's selector rejected the context;
	// the policy default applied.
	ReasonNotApplicable ReasonCode = "not_applicable"

	// ReasonRateLimited: a token bucket rejected the operation.
	ReasonRateLimited ReasonCode = "rate_limited"

	// ReasonWindowClosed: the operation fell outside a temporal window.
	ReasonWindowClosed ReasonCode = "window_closed"

	// ReasonConsensusFailure: the rate-limit check could not reach a
	// consistent outcome and the fail posture decided.
	ReasonConsensusFailure ReasonCode = "consensus_failure"

	// ReasonEvaluationTimeout: the interpreter exceeded its deadline;
	// the fallback verdict applied.
	ReasonEvaluationTimeout ReasonCode = "evaluation_timeout"

	// ReasonEvaluationError: the interpreter failed (data contract
	// violation, corrupt program); the fallback verdict applied.
	ReasonEvaluationError ReasonCode = "evaluation_error"

	// ReasonPolicyUnavailable: the policy could not be loaded or
	// compiled.
	ReasonPolicyUnavailable ReasonCode = "policy_unavailable"

	// ReasonInvalidRequest: the request was structurally unusable.
	ReasonInvalidRequest ReasonCode = "invalid_request"
)

// Response is the terminal output of one evaluation. The caller always
// receives one; faults are folded into the verdict and reason code.
type Response struct {
	RequestID string

	Verdict        ast.Verdict
	Confidence     float64
	Reason         ReasonCode
	MatchedRuleIDs []string

	// Escalation carries approval parameters when Verdict is Escalate.
	Escalation *ast.Escalation

	// PolicyVersion is the version of the policy that decided, empty
	// when no policy could be loaded.
	PolicyVersion string

	// ConstraintOutcome reports the constraint check when one ran.
	ConstraintOutcome constraint.Outcome

	// FallbackApplied is true when a whole-evaluation fault replaced the
	// interpreter's verdict with the configured fallback.
	FallbackApplied bool

	// Trace lists every rule evaluated, for explanation collaborators.
	Trace []vm.RuleMatch

	Duration time.Duration
}
