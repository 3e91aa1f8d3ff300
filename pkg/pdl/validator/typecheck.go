package validator

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// validateReferences runs the type/reference pass: every condition field
// must resolve in the schema, every variable reference must resolve in the
// policy, and operator/value combinations must be type-compatible.
func (v *Validator) validateReferences(policy *ast.Policy, list *pdlErrors.ErrorList) {
	for _, cond := range policy.Selector {
		v.checkCondition(policy, "", cond, list)
	}
	for _, rule := range policy.Rules {
		for _, cond := range rule.Conditions {
			v.checkCondition(policy, rule.RuleID, cond, list)
		}
	}
}

// checkCondition validates one condition against the schema.
func (v *Validator) checkCondition(policy *ast.Policy, ruleID string, cond *ast.Condition, list *pdlErrors.ErrorList) {
	spec, ok := v.schema.Resolve(cond.Field)
	if !ok {
		list.Add(&pdlErrors.Error{
			Code:       pdlErrors.CodeRef,
			Severity:   pdlErrors.SeverityError,
			Message:    fmt.Sprintf("field %q is not declared in the attribute schema", cond.Field),
			RuleID:     ruleID,
			Location:   cond.Location,
			Suggestion: v.suggestField(cond.Field),
		})
		return
	}

	value, resolved := v.resolveValue(policy, cond.Value)
	if !resolved {
		list.AddRuleError(pdlErrors.CodeRef, ruleID,
			fmt.Sprintf("undefined variable %q", cond.Value.VariableName), cond.Location)
		return
	}

	v.checkOperator(ruleID, cond, spec, value, list)
}

// resolveValue follows a variable reference to its literal. The ok flag is
// false for unresolved references.
func (v *Validator) resolveValue(policy *ast.Policy, value *ast.Value) (*ast.Value, bool) {
	if value.IsLiteral() {
		return value, true
	}
	variable := policy.GetVariable(value.VariableName)
	if variable == nil {
		return nil, false
	}
	return variable.Value, true
}

// checkOperator validates operator/type compatibility. PDL performs no
// coercion, so incompatibilities are fatal here rather than false at
// runtime.
func (v *Validator) checkOperator(ruleID string, cond *ast.Condition, spec FieldSpec, value *ast.Value, list *pdlErrors.ErrorList) {
	fieldType := spec.Type

	switch cond.Operator {
	case ast.OperatorEqual, ast.OperatorNotEqual:
		if fieldType == TypeAny || value.Type == ast.ValueTypeNull {
			return
		}
		if value.Type != fieldType {
			list.AddRuleError(pdlErrors.CodeType, ruleID,
				fmt.Sprintf("field %q has type %s, cannot compare with %s value %s",
					cond.Field, fieldType, value.Type, value), cond.Location)
		}

	case ast.OperatorLessThan, ast.OperatorGreaterThan:
		if fieldType != TypeAny && fieldType != ast.ValueTypeNumber {
			list.AddRuleError(pdlErrors.CodeType, ruleID,
				fmt.Sprintf("operator %q requires a number field, %q has type %s",
					cond.Operator, cond.Field, fieldType), cond.Location)
		}
		if value.Type != ast.ValueTypeNumber {
			list.AddRuleError(pdlErrors.CodeType, ruleID,
				fmt.Sprintf("operator %q requires a number value, got %s",
					cond.Operator, value.Type), cond.Location)
		}

	case ast.OperatorMatches:
		if fieldType != TypeAny && fieldType != ast.ValueTypeString {
			list.AddRuleError(pdlErrors.CodeType, ruleID,
				fmt.Sprintf("operator %q requires a string field, %q has type %s",
					cond.Operator, cond.Field, fieldType), cond.Location)
		}
		if value.Type != ast.ValueTypeString {
			list.AddRuleError(pdlErrors.CodeType, ruleID,
				fmt.Sprintf("operator %q requires a string pattern, got %s",
					cond.Operator, value.Type), cond.Location)
		}

	case ast.OperatorIn:
		if value.Type != ast.ValueTypeList {
			list.AddRuleError(pdlErrors.CodeType, ruleID,
				fmt.Sprintf("operator %q requires a list value, got %s",
					cond.Operator, value.Type), cond.Location)
		}
	}
}

// suggestField proposes the closest declared path for a typo'd field.
func (v *Validator) suggestField(field string) string {
	paths := v.schema.DeclaredPaths()
	sort.Strings(paths)

	best := ""
	bestShared := 0
	for _, path := range paths {
		shared := sharedPrefixLen(field, path)
		if shared > bestShared {
			best = path
			bestShared = shared
		}
	}

	if best == "" || bestShared < 3 {
		return fmt.Sprintf("declared paths: %s", strings.Join(paths, ", "))
	}
	return fmt.Sprintf("did you mean %q?", best)
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
