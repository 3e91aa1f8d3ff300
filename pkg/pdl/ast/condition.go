package ast

// Operator is a comparison operator in a PDL condition.
type Operator string

const (
	OperatorEqual       Operator = "=="
	OperatorNotEqual    Operator = "!="
	OperatorLessThan    Operator = "<"
	OperatorGreaterThan Operator = ">"
	OperatorMatches     Operator = "matches" // Glob-style pattern match
	OperatorIn          Operator = "in"      // Membership in a literal list
)

// IsValid returns true if the operator is one of the recognized tags.
func (op Operator) IsValid() bool {
	switch op {
	case OperatorEqual, OperatorNotEqual, OperatorLessThan,
		OperatorGreaterThan, OperatorMatches, OperatorIn:
		return true
	}
	return false
}

// Condition is a single comparison: a context field path, an operator, and
// a value (literal or variable reference). Conditions within a rule form an
// ordered conjunction.
type Condition struct {
	// Field is a dot-separated attribute path, e.g. "resource.sensitivity"
	// or "agent.team". Every field must resolve against the attribute
	// schema at compile time.
	Field string

	Operator Operator

	// Value is the comparison operand. Variable references are resolved at
	// compile time; what reaches the compiler backend is always a literal.
	Value *Value

	Location Location
}
