package parser

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// builder constructs AST nodes from intermediate YAML structures.
// It handles type classification and preserves source locations.
type builder struct {
	sourcePath string
	errors     *pdlErrors.ErrorList
}

// newBuilder creates an AST builder for the given source file.
func newBuilder(sourcePath string) *builder {
	return &builder{
		sourcePath: sourcePath,
		errors:     pdlErrors.NewErrorList(),
	}
}

// buildPolicy transforms a yamlPolicy into an ast.Policy.
// It accumulates errors across the whole document and returns either a
// complete AST or the error list, never both.
func (b *builder) buildPolicy(yp *yamlPolicy) (*ast.Policy, error) {
	policy := &ast.Policy{
		PolicyID:    yp.PolicyID,
		Version:     yp.Version,
		Description: yp.Description,
		Variables:   make(map[string]*ast.Variable),
		Rules:       make([]*ast.Rule, 0, len(yp.Rules)),
		Constraints: make([]*ast.Constraint, 0, len(yp.Constraints)),
		SourceFile:  b.sourcePath,
		Location:    ast.Location{File: b.sourcePath, Line: 1, Column: 1},
	}

	if yp.PolicyID == "" {
		b.errors.AddError(pdlErrors.CodeSchema, "policy_id is required", policy.Location)
	}
	if yp.Version == "" {
		b.errors.AddError(pdlErrors.CodeSchema, "version is required", policy.Location)
	}

	// Default verdict. Deny is the safe default when unspecified.
	switch yp.DefaultVerdict {
	case "":
		policy.DefaultVerdict = ast.VerdictDeny
	case string(ast.VerdictAllow), string(ast.VerdictDeny), string(ast.VerdictEscalate):
		policy.DefaultVerdict = ast.Verdict(yp.DefaultVerdict)
	default:
		b.errors.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("unknown default_verdict %q", yp.DefaultVerdict), policy.Location)
	}

	switch yp.ConflictResolution {
	case "", string(ast.ConflictResolutionDenyWins):
		policy.ConflictResolution = ast.ConflictResolution(yp.ConflictResolution)
	default:
		b.errors.AddError(pdlErrors.CodeSchema,
			fmt.Sprintf("unknown conflict_resolution %q", yp.ConflictResolution), policy.Location)
	}

	// Build variables.
	for name, raw := range yp.Variables {
		value, err := b.buildValue(raw, policy.Location)
		if err != nil {
			b.errors.AddError(pdlErrors.CodeSchema,
				fmt.Sprintf("invalid variable %q: %v", name, err), policy.Location)
			continue
		}
		policy.Variables[name] = &ast.Variable{
			Name:     name,
			Value:    value,
			Location: policy.Location,
		}
	}

	// Build selector conditions.
	for i := range yp.Selector {
		cond, err := b.buildCondition(&yp.Selector[i])
		if err != nil {
			b.errors.AddError(pdlErrors.CodeSchema,
				fmt.Sprintf("invalid selector condition at index %d: %v", i, err),
				b.locationOf(&yp.Selector[i]))
			continue
		}
		policy.Selector = append(policy.Selector, cond)
	}

	// Build rules.
	for i := range yp.Rules {
		rule, err := b.buildRule(&yp.Rules[i])
		if err != nil {
			b.errors.AddError(pdlErrors.CodeSchema,
				fmt.Sprintf("invalid rule at index %d: %v", i, err),
				b.locationOf(&yp.Rules[i]))
			continue
		}
		policy.Rules = append(policy.Rules, rule)
	}

	// Build constraints.
	for i := range yp.Constraints {
		constraint, err := b.buildConstraint(&yp.Constraints[i])
		if err != nil {
			b.errors.AddError(pdlErrors.CodeSchema,
				fmt.Sprintf("invalid constraint at index %d: %v", i, err),
				b.locationOf(&yp.Constraints[i]))
			continue
		}
		policy.Constraints = append(policy.Constraints, constraint)
	}

	if b.errors.HasFatal() {
		return nil, b.errors
	}

	return policy, nil
}

// buildRule decodes one rule node into an ast.Rule.
func (b *builder) buildRule(node *yaml.Node) (*ast.Rule, error) {
	var yr yamlRule
	if err := node.Decode(&yr); err != nil {
		return nil, err
	}

	if yr.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	verdict := ast.Verdict(yr.Verdict)
	if !verdict.IsValid() {
		return nil, fmt.Errorf("unknown verdict %q", yr.Verdict)
	}

	rule := &ast.Rule{
		RuleID:      yr.ID,
		Description: yr.Description,
		Priority:    yr.Priority,
		Verdict:     verdict,
		Conditions:  make([]*ast.Condition, 0, len(yr.Conditions)),
		Location:    b.locationOf(node),
	}

	for i := range yr.Conditions {
		cond, err := b.buildCondition(&yr.Conditions[i])
		if err != nil {
			return nil, fmt.Errorf("condition at index %d: %w", i, err)
		}
		rule.Conditions = append(rule.Conditions, cond)
	}

	if yr.Escalation != nil {
		rule.Escalation = &ast.Escalation{
			Approvers: yr.Escalation.Approvers,
			TimeoutMs: yr.Escalation.TimeoutMs,
			Message:   yr.Escalation.Message,
		}
	}
	if verdict == ast.VerdictEscalate && rule.Escalation == nil {
		return nil, fmt.Errorf("escalate verdict requires escalation parameters")
	}

	return rule, nil
}

// buildCondition decodes one condition node into an ast.Condition.
func (b *builder) buildCondition(node *yaml.Node) (*ast.Condition, error) {
	var yc yamlCondition
	if err := node.Decode(&yc); err != nil {
		return nil, err
	}

	if yc.Field == "" {
		return nil, fmt.Errorf("field is required")
	}

	op := ast.Operator(yc.Operator)
	if !op.IsValid() {
		return nil, fmt.Errorf("unknown operator %q", yc.Operator)
	}

	value, err := b.buildValue(yc.Value, b.locationOf(node))
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", yc.Field, err)
	}

	return &ast.Condition{
		Field:    yc.Field,
		Operator: op,
		Value:    value,
		Location: b.locationOf(node),
	}, nil
}

// buildValue classifies a decoded YAML scalar into an ast.Value.
// Strings starting with "$" become variable references.
func (b *builder) buildValue(raw interface{}, loc ast.Location) (*ast.Value, error) {
	if s, ok := raw.(string); ok && strings.HasPrefix(s, "$") {
		name := strings.TrimPrefix(s, "$")
		if name == "" {
			return nil, fmt.Errorf("empty variable reference")
		}
		return &ast.Value{
			Type:         ast.ValueTypeVariable,
			VariableName: name,
			Location:     loc,
		}, nil
	}

	// Normalize integers to float64 so numeric comparisons have one shape.
	switch n := raw.(type) {
	case int:
		raw = float64(n)
	case int64:
		raw = float64(n)
	}

	valueType, ok := ast.TypeOf(raw)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}

	if valueType == ast.ValueTypeList {
		list := raw.([]interface{})
		normalized := make([]interface{}, len(list))
		for i, elem := range list {
			switch n := elem.(type) {
			case int:
				normalized[i] = float64(n)
			case int64:
				normalized[i] = float64(n)
			default:
				normalized[i] = elem
			}
		}
		raw = normalized
	}

	return &ast.Value{
		Type:     valueType,
		Literal:  raw,
		Location: loc,
	}, nil
}

// buildConstraint decodes one constraint node into an ast.Constraint.
func (b *builder) buildConstraint(node *yaml.Node) (*ast.Constraint, error) {
	var yc yamlConstraint
	if err := node.Decode(&yc); err != nil {
		return nil, err
	}

	if yc.ID == "" {
		return nil, fmt.Errorf("constraint id is required")
	}

	constraint := &ast.Constraint{
		ConstraintID: yc.ID,
		Location:     b.locationOf(node),
	}

	switch ast.ConstraintKind(yc.Kind) {
	case ast.ConstraintKindRateLimit:
		constraint.Kind = ast.ConstraintKindRateLimit
		constraint.MaxTokens = yc.MaxTokens
		constraint.RefillRate = yc.RefillRate
		constraint.CostPerOperation = yc.CostPerOperation
		constraint.RefillInterval = time.Second
		if yc.RefillInterval != "" {
			interval, err := time.ParseDuration(yc.RefillInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid refill_interval: %w", err)
			}
			constraint.RefillInterval = interval
		}

	case ast.ConstraintKindTemporal:
		constraint.Kind = ast.ConstraintKindTemporal
		timezone := yc.Timezone
		if timezone == "" {
			timezone = "UTC"
		}
		constraint.Window = &ast.TimeWindow{
			Timezone:   timezone,
			DaysOfWeek: yc.DaysOfWeek,
			StartHour:  yc.StartHour,
			EndHour:    yc.EndHour,
		}

	default:
		return nil, fmt.Errorf("unknown constraint kind %q", yc.Kind)
	}

	return constraint, nil
}

// locationOf extracts the source location from a YAML node.
func (b *builder) locationOf(node *yaml.Node) ast.Location {
	if node == nil {
		return ast.Location{File: b.sourcePath}
	}
	return ast.Location{
		File:   b.sourcePath,
		Line:   node.Line,
		Column: node.Column,
	}
}
