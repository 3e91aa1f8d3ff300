package validator

import (
	"fmt"
	"time"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// validateStructure checks document-level invariants: unique rule and
// constraint IDs, verdict/escalation completeness, and constraint
// parameter ranges. Malformed constraint configuration is fatal here so it
// can never surface as a per-request error.
func (v *Validator) validateStructure(policy *ast.Policy, list *pdlErrors.ErrorList) {
	seenRules := make(map[string]bool, len(policy.Rules))
	for _, rule := range policy.Rules {
		if seenRules[rule.RuleID] {
			list.AddRuleError(pdlErrors.CodeSchema, rule.RuleID,
				fmt.Sprintf("duplicate rule id %q", rule.RuleID), rule.Location)
			continue
		}
		seenRules[rule.RuleID] = true

		if rule.Verdict == ast.VerdictEscalate {
			if rule.Escalation == nil || len(rule.Escalation.Approvers) == 0 {
				list.AddRuleError(pdlErrors.CodeSchema, rule.RuleID,
					"escalate rule must name at least one approver group", rule.Location)
			}
		}
	}

	seenConstraints := make(map[string]bool, len(policy.Constraints))
	for _, constraint := range policy.Constraints {
		if seenConstraints[constraint.ConstraintID] {
			list.AddError(pdlErrors.CodeSchema,
				fmt.Sprintf("duplicate constraint id %q", constraint.ConstraintID),
				constraint.Location)
			continue
		}
		seenConstraints[constraint.ConstraintID] = true

		switch constraint.Kind {
		case ast.ConstraintKindRateLimit:
			v.validateRateLimit(constraint, list)
		case ast.ConstraintKindTemporal:
			v.validateWindow(constraint, list)
		}
	}
}

// validateRateLimit checks token-bucket parameter ranges.
func (v *Validator) validateRateLimit(c *ast.Constraint, list *pdlErrors.ErrorList) {
	if c.MaxTokens <= 0 {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: max_tokens must be positive, got %v", c.ConstraintID, c.MaxTokens),
			c.Location)
	}
	if c.RefillRate <= 0 {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: refill_rate must be positive, got %v", c.ConstraintID, c.RefillRate),
			c.Location)
	}
	if c.RefillInterval <= 0 {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: refill_interval must be positive", c.ConstraintID),
			c.Location)
	}
	if c.CostPerOperation <= 0 {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: cost_per_operation must be positive, got %v", c.ConstraintID, c.CostPerOperation),
			c.Location)
	}
	if c.CostPerOperation > c.MaxTokens {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: cost_per_operation %v exceeds max_tokens %v, every operation would be rejected",
				c.ConstraintID, c.CostPerOperation, c.MaxTokens),
			c.Location)
	}
}

// validateWindow checks temporal window parameters, including that the
// timezone actually loads. Windows are pure functions of time, so this is
// the only place they can fail.
func (v *Validator) validateWindow(c *ast.Constraint, list *pdlErrors.ErrorList) {
	w := c.Window
	if w == nil {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: temporal constraint has no window", c.ConstraintID),
			c.Location)
		return
	}

	if _, err := time.LoadLocation(w.Timezone); err != nil {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: unknown timezone %q", c.ConstraintID, w.Timezone),
			c.Location)
	}
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 1 || w.EndHour > 24 {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: hours must be within 0-23 (start) and 1-24 (end)", c.ConstraintID),
			c.Location)
	}
	if w.StartHour >= w.EndHour {
		list.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("constraint %q: start_hour %d is not before end_hour %d", c.ConstraintID, w.StartHour, w.EndHour),
			c.Location)
	}
	for _, day := range w.DaysOfWeek {
		if day < 1 || day > 7 {
			list.AddError(pdlErrors.CodeSchema,
				fmt.Sprintf("constraint %q: day of week %d outside 1-7", c.ConstraintID, day),
				c.Location)
		}
	}
}
