package validator

import (
	"fmt"
	"reflect"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// analyzeConflicts reports rule pairs whose condition sets are
// simultaneously satisfiable but produce different verdicts.
//
// Satisfiability is a best-effort approximation: a pair is considered
// unsatisfiable only when two conditions on the same field provably
// contradict (equality against different literals, disjoint membership
// lists, inverted numeric bounds). Everything else is assumed satisfiable,
// which errs on the side of reporting.
//
// Conflicts are warnings when the policy declares a conflict_resolution
// strategy and the validator's conflict policy is "warn"; otherwise they
// are fatal.
func (v *Validator) analyzeConflicts(policy *ast.Policy, list *pdlErrors.ErrorList) {
	fatal := policy.ConflictResolution == ast.ConflictResolutionUnset ||
		v.conflictPolicy == ConflictPolicyReject

	for i := 0; i < len(policy.Rules); i++ {
		for j := i + 1; j < len(policy.Rules); j++ {
			a, b := policy.Rules[i], policy.Rules[j]
			if a.Verdict == b.Verdict {
				continue
			}
			if !v.satisfiableTogether(policy, a, b) {
				continue
			}

			msg := fmt.Sprintf("rules %q (%s) and %q (%s) can match the same context with different verdicts",
				a.RuleID, a.Verdict, b.RuleID, b.Verdict)
			if fatal {
				list.Add(&pdlErrors.Error{
					Code:       pdlErrors.CodeConflict,
					Severity:   pdlErrors.SeverityError,
					Message:    msg,
					RuleID:     a.RuleID,
					Location:   b.Location,
					Suggestion: "declare conflict_resolution: deny_wins or make the condition sets disjoint",
				})
			} else {
				list.AddWarning(pdlErrors.CodeConflict, a.RuleID, msg, b.Location)
			}
		}
	}
}

// analyzeDeadRules reports rules whose verdict can never become the final
// outcome. Under deny-wins, a non-Deny rule whose condition set is a
// superset of some Deny rule's conditions is dead: whenever it matches,
// the Deny rule matches too and overrides it. The analysis is best-effort
// and only produces warnings.
func (v *Validator) analyzeDeadRules(policy *ast.Policy, list *pdlErrors.ErrorList) {
	for _, rule := range policy.Rules {
		if rule.Verdict == ast.VerdictDeny {
			continue
		}
		for _, deny := range policy.Rules {
			if deny.Verdict != ast.VerdictDeny || deny.RuleID == rule.RuleID {
				continue
			}
			if v.conditionsSubsume(policy, deny, rule) {
				list.AddWarning(pdlErrors.CodeDeadRule, rule.RuleID,
					fmt.Sprintf("rule %q can never determine the outcome: deny rule %q matches whenever it does",
						rule.RuleID, deny.RuleID),
					rule.Location)
				break
			}
		}
	}
}

// conditionsSubsume returns true if every condition of outer appears
// (same field, operator, and resolved literal) among inner's conditions,
// i.e. inner matching implies outer matching.
func (v *Validator) conditionsSubsume(policy *ast.Policy, outer, inner *ast.Rule) bool {
	for _, oc := range outer.Conditions {
		found := false
		for _, ic := range inner.Conditions {
			if v.sameCondition(policy, oc, ic) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sameCondition compares two conditions after variable resolution.
func (v *Validator) sameCondition(policy *ast.Policy, a, b *ast.Condition) bool {
	if a.Field != b.Field || a.Operator != b.Operator {
		return false
	}
	av, aok := v.resolveValue(policy, a.Value)
	bv, bok := v.resolveValue(policy, b.Value)
	if !aok || !bok {
		return false
	}
	return av.Type == bv.Type && reflect.DeepEqual(av.Literal, bv.Literal)
}

// satisfiableTogether approximates whether some context satisfies both
// rules' condition conjunctions at once.
func (v *Validator) satisfiableTogether(policy *ast.Policy, a, b *ast.Rule) bool {
	conds := make([]*ast.Condition, 0, len(a.Conditions)+len(b.Conditions))
	conds = append(conds, a.Conditions...)
	conds = append(conds, b.Conditions...)

	for i := 0; i < len(conds); i++ {
		for j := i + 1; j < len(conds); j++ {
			if conds[i].Field != conds[j].Field {
				continue
			}
			if v.contradicts(policy, conds[i], conds[j]) {
				return false
			}
		}
	}
	return true
}

// contradicts returns true when two conditions on the same field provably
// cannot hold at once.
func (v *Validator) contradicts(policy *ast.Policy, a, b *ast.Condition) bool {
	av, aok := v.resolveValue(policy, a.Value)
	bv, bok := v.resolveValue(policy, b.Value)
	if !aok || !bok {
		return false
	}

	// Normalize so equality-style conditions come first.
	if rank(b.Operator) < rank(a.Operator) {
		a, b = b, a
		av, bv = bv, av
	}

	switch a.Operator {
	case ast.OperatorEqual:
		switch b.Operator {
		case ast.OperatorEqual:
			return !reflect.DeepEqual(av.Literal, bv.Literal)
		case ast.OperatorNotEqual:
			return reflect.DeepEqual(av.Literal, bv.Literal)
		case ast.OperatorIn:
			list, ok := bv.Literal.([]interface{})
			if !ok {
				return false
			}
			for _, elem := range list {
				if reflect.DeepEqual(av.Literal, elem) {
					return false
				}
			}
			return true
		case ast.OperatorLessThan:
			an, ok1 := asNumber(av)
			bn, ok2 := asNumber(bv)
			return ok1 && ok2 && !(an < bn)
		case ast.OperatorGreaterThan:
			an, ok1 := asNumber(av)
			bn, ok2 := asNumber(bv)
			return ok1 && ok2 && !(an > bn)
		}

	case ast.OperatorIn:
		if b.Operator == ast.OperatorIn {
			la, ok1 := av.Literal.([]interface{})
			lb, ok2 := bv.Literal.([]interface{})
			if !ok1 || !ok2 {
				return false
			}
			for _, ea := range la {
				for _, eb := range lb {
					if reflect.DeepEqual(ea, eb) {
						return false
					}
				}
			}
			return true
		}

	case ast.OperatorLessThan:
		if b.Operator == ast.OperatorGreaterThan {
			// field < a AND field > b is unsatisfiable when b >= a-ish:
			// there must exist v with b < v < a.
			an, ok1 := asNumber(av)
			bn, ok2 := asNumber(bv)
			return ok1 && ok2 && bn >= an
		}
	}

	return false
}

// rank orders operators so contradicts only handles each pair once.
func rank(op ast.Operator) int {
	switch op {
	case ast.OperatorEqual:
		return 0
	case ast.OperatorNotEqual:
		return 1
	case ast.OperatorIn:
		return 2
	case ast.OperatorLessThan:
		return 3
	case ast.OperatorGreaterThan:
		return 4
	default:
		return 5
	}
}

// asNumber extracts a float64 from a number-typed value.
func asNumber(v *ast.Value) (float64, bool) {
	if v.Type != ast.ValueTypeNumber {
		return 0, false
	}
	n, ok := v.Literal.(float64)
	return n, ok
}
