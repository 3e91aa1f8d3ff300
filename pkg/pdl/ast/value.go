package ast

import "fmt"

// ValueType is the type of a value in a PDL document.
// PDL has a strong type system with no automatic coercion.
type ValueType string

const (
	ValueTypeString   ValueType = "string"
	ValueTypeNumber   ValueType = "number"
	ValueTypeBoolean  ValueType = "boolean"
	ValueTypeList     ValueType = "list"
	ValueTypeNull     ValueType = "null"
	ValueTypeVariable ValueType = "variable" // Reference to a policy variable
)

// Value is a value node used in conditions, selectors, and variables.
// Numbers are always float64, lists are []interface{} of scalars.
type Value struct {
	Type ValueType

	// Literal holds the value for literal types (nil for null).
	Literal interface{}

	// VariableName is set when Type is ValueTypeVariable.
	VariableName string

	Location Location
}

// IsLiteral returns true if the value is a literal, not a variable reference.
func (v *Value) IsLiteral() bool {
	return v.Type != ValueTypeVariable
}

// String returns a compact representation used in error messages.
func (v *Value) String() string {
	switch v.Type {
	case ValueTypeVariable:
		return "$" + v.VariableName
	case ValueTypeNull:
		return "null"
	default:
		return fmt.Sprintf("%v", v.Literal)
	}
}

// TypeOf classifies a decoded YAML scalar into a ValueType.
// Returns ValueTypeNull for nil and an ok flag for unsupported types.
func TypeOf(raw interface{}) (ValueType, bool) {
	switch raw.(type) {
	case nil:
		return ValueTypeNull, true
	case string:
		return ValueTypeString, true
	case bool:
		return ValueTypeBoolean, true
	case int, int64, float64:
		return ValueTypeNumber, true
	case []interface{}:
		return ValueTypeList, true
	default:
		return "", false
	}
}
