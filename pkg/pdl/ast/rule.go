package ast

// Verdict is the outcome a rule produces when its conditions match.
type Verdict string

const (
	VerdictAllow    Verdict = "allow"
	VerdictDeny     Verdict = "deny"
	VerdictEscalate Verdict = "escalate"
)

// IsValid returns true if the verdict is one of the recognized tags.
func (v Verdict) IsValid() bool {
	return v == VerdictAllow || v == VerdictDeny || v == VerdictEscalate
}

// Rule is a single policy rule: an ordered conjunction of conditions and
// the verdict produced when all of them match.
// Rule IDs are unique within a policy. Higher priority rules are checked
// first; ties are broken by declaration order.
type Rule struct {
	RuleID      string
	Description string
	Priority    int // Higher evaluated first

	// Conditions form an ordered conjunction. An empty slice means the
	// rule matches unconditionally.
	Conditions []*Condition

	// Verdict produced when every condition matches.
	Verdict Verdict

	// Escalation carries optional parameters surfaced when Verdict is
	// VerdictEscalate. Nil otherwise.
	Escalation *Escalation

	Location Location
}

// Escalation holds the parameters a matching Escalate rule surfaces to the
// external approval workflow.
type Escalation struct {
	Approvers []string // Approver group identifiers
	TimeoutMs int      // How long the escalation may stay pending
	Message   string   // Human-readable justification shown to approvers
}

// HasConditions returns true if the rule has at least one condition.
func (r *Rule) HasConditions() bool {
	return len(r.Conditions) > 0
}

// IsUnconditional returns true if the rule matches every context.
func (r *Rule) IsUnconditional() bool {
	return len(r.Conditions) == 0
}
