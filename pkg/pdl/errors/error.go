package errors

import (
	"fmt"
	"strings"

	"mercator-hq/saturn/pkg/pdl/ast"
)

// Code is a stable machine-readable error code. Codes are part of the
// public contract: external tooling matches on them, so they never change
// meaning across releases.
type Code string

const (
	CodeSyntax   Code = "PDL_SYNTAX"    // Malformed document syntax
	CodeSchema   Code = "PDL_SCHEMA"    // Structural schema violation
	CodeType     Code = "PDL_TYPE"      // Type-incompatible comparison
	CodeRef      Code = "PDL_REF"       // Unresolved field or variable reference
	CodeConflict Code = "PDL_CONFLICT"  // Conflicting rule pair
	CodeDeadRule Code = "PDL_DEAD_RULE" // Provably unreachable rule
	CodeSize     Code = "PDL_SIZE"      // Bytecode or document size exceeded
	CodeIO       Code = "PDL_IO"        // Source read failure
)

// Severity distinguishes fatal errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Error is a single compile-time diagnostic with location and context.
type Error struct {
	Code       Code
	Severity   Severity
	Message    string
	RuleID     string // Offending rule, if attributable
	Location   ast.Location
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.RuleID != "" {
		sb.WriteString(fmt.Sprintf(" (rule %q)", e.RuleID))
	}
	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("\n  --> %s", e.Location.String()))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n  = suggestion: %s", e.Suggestion))
	}

	return sb.String()
}

// IsFatal returns true unless the diagnostic is a warning.
func (e *Error) IsFatal() bool {
	return e.Severity != SeverityWarning
}

// ErrorList accumulates diagnostics across parse, validate, and compile
// phases. Warnings ride along with errors but do not make the list fatal.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates an empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*Error, 0)}
}

// Add appends a diagnostic to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and appends a fatal diagnostic.
func (el *ErrorList) AddError(code Code, message string, location ast.Location) {
	el.Add(&Error{
		Code:     code,
		Severity: SeverityError,
		Message:  message,
		Location: location,
	})
}

// AddRuleError creates and appends a fatal diagnostic attributed to a rule.
func (el *ErrorList) AddRuleError(code Code, ruleID, message string, location ast.Location) {
	el.Add(&Error{
		Code:     code,
		Severity: SeverityError,
		Message:  message,
		RuleID:   ruleID,
		Location: location,
	})
}

// AddWarning creates and appends an advisory diagnostic attributed to a rule.
func (el *ErrorList) AddWarning(code Code, ruleID, message string, location ast.Location) {
	el.Add(&Error{
		Code:     code,
		Severity: SeverityWarning,
		Message:  message,
		RuleID:   ruleID,
		Location: location,
	})
}

// HasFatal returns true if the list contains at least one non-warning.
func (el *ErrorList) HasFatal() bool {
	for _, err := range el.Errors {
		if err.IsFatal() {
			return true
		}
	}
	return false
}

// HasCode returns true if the list contains a diagnostic with the code.
func (el *ErrorList) HasCode(code Code) bool {
	for _, err := range el.Errors {
		if err.Code == code {
			return true
		}
	}
	return false
}

// Warnings returns the advisory diagnostics only.
func (el *ErrorList) Warnings() []*Error {
	var out []*Error
	for _, err := range el.Errors {
		if !err.IsFatal() {
			out = append(out, err)
		}
	}
	return out
}

// Count returns the total number of diagnostics.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface, formatting every diagnostic.
func (el *ErrorList) Error() string {
	if len(el.Errors) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d diagnostic(s):\n", len(el.Errors)))
	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("\n%d: [%s] %s", i+1, err.Severity, err.Error()))
	}

	return sb.String()
}

// ToError returns nil when the list has no fatal diagnostics, otherwise the
// list itself. Warnings alone never fail a compile.
func (el *ErrorList) ToError() error {
	if !el.HasFatal() {
		return nil
	}
	return el
}
