package validator

import (
	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// ConflictPolicy controls how rule conflicts are reported.
type ConflictPolicy string

const (
	// ConflictPolicyWarn reports conflicts as warnings (the default when
	// the policy declares a conflict_resolution strategy).
	ConflictPolicyWarn ConflictPolicy = "warn"

	// ConflictPolicyReject makes any conflict fatal.
	ConflictPolicyReject ConflictPolicy = "reject"
)

// Validator orchestrates all validation passes over a parsed policy.
type Validator struct {
	schema         *Schema
	conflictPolicy ConflictPolicy
}

// NewValidator creates a validator against the given attribute schema.
// A nil schema uses DefaultSchema.
func NewValidator(schema *Schema) *Validator {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Validator{
		schema:         schema,
		conflictPolicy: ConflictPolicyWarn,
	}
}

// Schema returns the context schema the validator checks against.
func (v *Validator) Schema() *Schema {
	return v.schema
}

// WithConflictPolicy sets the conflict reporting policy.
func (v *Validator) WithConflictPolicy(policy ConflictPolicy) *Validator {
	v.conflictPolicy = policy
	return v
}

// Validate runs structural, type/reference, and conflict passes in order.
// The returned list contains every diagnostic found; use ToError to decide
// whether compilation may proceed. Later passes are skipped when earlier
// passes found fatal errors, to prevent cascading noise.
func (v *Validator) Validate(policy *ast.Policy) *pdlErrors.ErrorList {
	list := pdlErrors.NewErrorList()

	v.validateStructure(policy, list)
	if list.HasFatal() {
		return list
	}

	v.validateReferences(policy, list)
	if list.HasFatal() {
		return list
	}

	v.analyzeConflicts(policy, list)
	v.analyzeDeadRules(policy, list)

	return list
}
