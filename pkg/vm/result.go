package vm

import (
	"time"

	"mercator-hq/saturn/pkg/pdl/ast"
)

// Confidence constants per match type. Values are deterministic, not
// probabilistic: they distinguish how a verdict was reached.
const (
	// ConfidenceRuleMatch applies when at least one rule's full condition
	// conjunction matched.
	ConfidenceRuleMatch = 1.0

	// ConfidenceDefault applies when no rule matched and the policy's
	// default verdict was used.
	ConfidenceDefault = 0.5

	// ConfidenceFallback applies when an evaluation fault forced a
	// configured fallback verdict.
	ConfidenceFallback = 0.0
)

// RuleMatch is one entry of the rule trace: a rule the program reached
// and whether its full condition conjunction held.
type RuleMatch struct {
	RuleID  string
	Matched bool
}

// Result is the outcome of executing one compiled policy against one
// evaluation context. Immutable once returned.
type Result struct {
	Verdict    ast.Verdict
	Confidence float64

	// MatchedRuleIDs names the matched rules whose verdict is the final
	// verdict, in priority order. Rules overridden during resolution
	// appear only in the trace.
	MatchedRuleIDs []string

	// Escalation carries the surfaced escalation parameters when Verdict
	// is Escalate: the highest-priority matching Escalate rule's.
	Escalation *ast.Escalation

	// Trace lists every rule the program evaluated, in priority order.
	Trace []RuleMatch

	// Applicable is false when the policy's selector rejected the
	// context; the verdict is then the default verdict.
	Applicable bool

	Duration time.Duration
}
