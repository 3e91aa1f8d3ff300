package compiler

import (
	"fmt"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// foldResult is a condition after variable resolution and constant
// folding. Either cond is set (a real runtime check) or constant is true
// and value holds the compile-time outcome.
type foldResult struct {
	cond     *ast.Condition
	constant bool
	value    bool
}

// foldedRule is a rule prepared for code generation.
type foldedRule struct {
	src        *ast.Rule
	conditions []foldResult
}

// optimize resolves variables, folds degenerate conditions, and (when
// enabled) eliminates rules that can never match. Rules come back in
// emission order: descending priority, declaration order on ties.
func (c *Compiler) optimize(policy *ast.Policy) ([]*foldedRule, []*pdlErrors.Error) {
	var warnings []*pdlErrors.Error
	var out []*foldedRule

	for _, rule := range orderRules(policy.Rules) {
		folded := &foldedRule{src: rule}
		constFalse := false

		for _, cond := range rule.Conditions {
			fc := c.foldCondition(policy, cond)
			if fc.constant {
				if fc.value {
					// Always-true condition contributes nothing to the
					// conjunction.
					if c.config.EnableConstantFolding {
						continue
					}
				} else {
					constFalse = true
				}
			}
			folded.conditions = append(folded.conditions, fc)
		}

		if constFalse && c.config.EnableDeadCodeElimination {
			warnings = append(warnings, &pdlErrors.Error{
				Code:     pdlErrors.CodeDeadRule,
				Severity: pdlErrors.SeverityWarning,
				Message: fmt.Sprintf("rule %q has a condition that is always false; rule eliminated",
					rule.RuleID),
				RuleID:   rule.RuleID,
				Location: rule.Location,
			})
			continue
		}
		out = append(out, folded)
	}

	return out, warnings
}

// foldCondition resolves a variable-valued condition to its literal and
// applies constant folding for degenerate operands.
func (c *Compiler) foldCondition(policy *ast.Policy, cond *ast.Condition) foldResult {
	value := cond.Value
	if !value.IsLiteral() {
		// The validator already rejected unresolved references.
		if variable := policy.GetVariable(value.VariableName); variable != nil {
			value = variable.Value
		}
	}
	resolved := &ast.Condition{
		Field:    cond.Field,
		Operator: cond.Operator,
		Value:    value,
		Location: cond.Location,
	}

	if !c.config.EnableConstantFolding {
		return foldResult{cond: resolved}
	}

	switch cond.Operator {
	case ast.OperatorIn:
		list, ok := value.Literal.([]interface{})
		if !ok {
			return foldResult{cond: resolved}
		}
		if len(list) == 0 {
			// Membership in the empty list never holds.
			return foldResult{constant: true, value: false}
		}
		if len(list) == 1 {
			// Single-element membership is a plain equality.
			elemType, _ := ast.TypeOf(list[0])
			return foldResult{cond: &ast.Condition{
				Field:    cond.Field,
				Operator: ast.OperatorEqual,
				Value:    &ast.Value{Type: elemType, Literal: list[0], Location: value.Location},
				Location: cond.Location,
			}}
		}

	case ast.OperatorMatches:
		if pattern, ok := value.Literal.(string); ok && pattern == "*" {
			// The universal pattern matches every string, including the
			// missing-field sentinel treated as non-match elsewhere; it
			// still requires the field to be present, so only fold when
			// the field is guaranteed.
			if c.validator.Schema().IsRequired(cond.Field) {
				return foldResult{constant: true, value: true}
			}
		}
	}

	return foldResult{cond: resolved}
}
