package ast

// ConflictResolution identifies the strategy used when multiple matching
// rules produce different verdicts.
type ConflictResolution string

const (
	// ConflictResolutionUnset means the policy author did not choose a
	// strategy. Compilation fails if the conflict analysis finds any
	// conflicting rule pair.
	ConflictResolutionUnset ConflictResolution = ""

	// ConflictResolutionDenyWins resolves conflicts by letting any matching
	// Deny verdict override all other matching verdicts.
	ConflictResolutionDenyWins ConflictResolution = "deny_wins"
)

// Policy is the root AST node for a PDL document.
// It becomes immutable once handed to the compiler.
type Policy struct {
	// Metadata
	PolicyID    string // Unique policy identifier (kebab-case)
	Version     string // Policy version (semver)
	Description string // Human-readable description

	// Selector decides whether this policy applies to a requester.
	// A nil selector means the policy applies to every requester.
	Selector []*Condition

	// Content
	Variables   map[string]*Variable // Compile-time constants
	Rules       []*Rule              // Ordered; declaration order breaks priority ties
	Constraints []*Constraint        // Ordered operational constraints

	// DefaultVerdict applies when no rule matches. Typically VerdictDeny.
	DefaultVerdict Verdict

	// ConflictResolution is the declared conflict strategy.
	ConflictResolution ConflictResolution

	// Source tracking
	SourceFile string
	Location   Location
}

// Variable is a named compile-time constant. Conditions may reference a
// variable as their comparison value; the compiler folds the reference to
// the literal before code generation.
type Variable struct {
	Name     string
	Value    *Value
	Location Location
}

// GetVariable returns the variable with the given name, or nil if not found.
func (p *Policy) GetVariable(name string) *Variable {
	return p.Variables[name]
}

// GetRule returns the rule with the given ID, or nil if not found.
func (p *Policy) GetRule(id string) *Rule {
	for _, rule := range p.Rules {
		if rule.RuleID == id {
			return rule
		}
	}
	return nil
}

// HasRule returns true if the policy contains a rule with the given ID.
func (p *Policy) HasRule(id string) bool {
	return p.GetRule(id) != nil
}

// RuleCount returns the number of rules in the policy.
func (p *Policy) RuleCount() int {
	return len(p.Rules)
}
