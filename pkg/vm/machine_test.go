package vm

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/pdl/ast"
)

func compileDoc(t *testing.T, doc string) *compiler.CompiledPolicy {
	t.Helper()
	c, err := compiler.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("compiler.New() failed: %v", err)
	}
	compiled, err := c.CompileBytes([]byte(doc), "test.yaml")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return compiled
}

func mustMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return m
}

// baseContext returns a context satisfying every required schema field.
func baseContext(extra map[string]interface{}) *EvaluationContext {
	ec := FromMap(map[string]interface{}{
		"agent.id":      "agent-1",
		"operation":     "read",
		"resource.id":   "doc-1",
		"resource.type": "document",
		"time.hour":     10,
		"time.weekday":  2,
		"time.unix":     1650000000,
	})
	for path, value := range extra {
		ec.Set(path, value)
	}
	return ec
}

// ============================================================================
// Verdict Resolution Tests
// ============================================================================

const escalationPolicy = `
pdl_version: "1.0"
policy_id: escalation
version: "1.0.0"
conflict_resolution: deny_wins
default_verdict: deny
rules:
  - id: R1
    priority: 100
    conditions:
      - field: resource.sensitivity
        operator: "=="
        value: high
    verdict: escalate
    escalation:
      approvers: [security-team]
      timeout_ms: 60000
      message: sensitive resource access
  - id: R2
    priority: 10
    verdict: allow
`

func TestMachine_EscalateOnSensitiveResource(t *testing.T) {
	compiled := compileDoc(t, escalationPolicy)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled,
		baseContext(map[string]interface{}{"resource.sensitivity": "high"}))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if result.Verdict != ast.VerdictEscalate {
		t.Errorf("Verdict = %s, want escalate", result.Verdict)
	}
	if len(result.MatchedRuleIDs) != 1 || result.MatchedRuleIDs[0] != "R1" {
		t.Errorf("MatchedRuleIDs = %v, want [R1]", result.MatchedRuleIDs)
	}
	if result.Escalation == nil || len(result.Escalation.Approvers) != 1 {
		t.Fatalf("Escalation = %+v, want security-team approver", result.Escalation)
	}
	if result.Escalation.Approvers[0] != "security-team" {
		t.Errorf("Approvers = %v", result.Escalation.Approvers)
	}
	if result.Confidence != ConfidenceRuleMatch {
		t.Errorf("Confidence = %v, want %v", result.Confidence, ConfidenceRuleMatch)
	}
}

func TestMachine_AllowWhenNotSensitive(t *testing.T) {
	compiled := compileDoc(t, escalationPolicy)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled,
		baseContext(map[string]interface{}{"resource.sensitivity": "low"}))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if result.Verdict != ast.VerdictAllow {
		t.Errorf("Verdict = %s, want allow", result.Verdict)
	}
	if len(result.MatchedRuleIDs) != 1 || result.MatchedRuleIDs[0] != "R2" {
		t.Errorf("MatchedRuleIDs = %v, want [R2]", result.MatchedRuleIDs)
	}
}

func TestMachine_MissingOptionalFieldIsNonMatch(t *testing.T) {
	compiled := compileDoc(t, escalationPolicy)
	m := mustMachine(t)

	// No resource.sensitivity at all: R1 must be non-matching, not an
	// error, and unconditional R2 decides.
	result, err := m.Execute(context.Background(), compiled, baseContext(nil))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if result.Verdict != ast.VerdictAllow {
		t.Errorf("Verdict = %s, want allow", result.Verdict)
	}
	if len(result.Trace) != 2 {
		t.Fatalf("Trace = %v, want 2 entries", result.Trace)
	}
	if result.Trace[0].RuleID != "R1" || result.Trace[0].Matched {
		t.Errorf("Trace[0] = %+v, want R1 non-matched", result.Trace[0])
	}
	if result.Trace[1].RuleID != "R2" || !result.Trace[1].Matched {
		t.Errorf("Trace[1] = %+v, want R2 matched", result.Trace[1])
	}
}

func TestMachine_DenyWins(t *testing.T) {
	compiled := compileDoc(t, `
pdl_version: "1.0"
policy_id: deny-wins
version: "1.0.0"
conflict_resolution: deny_wins
default_verdict: deny
rules:
  - id: allow-reads
    priority: 100
    conditions:
      - field: operation
        operator: "=="
        value: read
    verdict: allow
  - id: deny-reads
    priority: 1
    conditions:
      - field: operation
        operator: "=="
        value: read
    verdict: deny
`)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled, baseContext(nil))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if result.Verdict != ast.VerdictDeny {
		t.Errorf("Verdict = %s, want deny (deny-wins)", result.Verdict)
	}
	if len(result.MatchedRuleIDs) != 1 || result.MatchedRuleIDs[0] != "deny-reads" {
		t.Errorf("MatchedRuleIDs = %v, want [deny-reads]", result.MatchedRuleIDs)
	}
	if len(result.Trace) != 2 {
		t.Errorf("Trace = %v, want both rules evaluated", result.Trace)
	}
}

func TestMachine_DefaultVerdictWhenNothingMatches(t *testing.T) {
	compiled := compileDoc(t, `
pdl_version: "1.0"
policy_id: defaults
version: "1.0.0"
default_verdict: escalate
rules:
  - id: r1
    conditions:
      - field: operation
        operator: "=="
        value: delete
    verdict: deny
`)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled, baseContext(nil))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if result.Verdict != ast.VerdictEscalate {
		t.Errorf("Verdict = %s, want default escalate", result.Verdict)
	}
	if result.Confidence != ConfidenceDefault {
		t.Errorf("Confidence = %v, want %v", result.Confidence, ConfidenceDefault)
	}
	if len(result.MatchedRuleIDs) != 0 {
		t.Errorf("MatchedRuleIDs = %v, want empty", result.MatchedRuleIDs)
	}
}

func TestMachine_EscalatePriorityTieBreak(t *testing.T) {
	compiled := compileDoc(t, `
pdl_version: "1.0"
policy_id: ties
version: "1.0.0"
rules:
  - id: first
    priority: 50
    verdict: escalate
    escalation:
      approvers: [team-a]
      timeout_ms: 1000
  - id: second
    priority: 50
    verdict: escalate
    escalation:
      approvers: [team-b]
      timeout_ms: 1000
`)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled, baseContext(nil))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if result.Verdict != ast.VerdictEscalate {
		t.Fatalf("Verdict = %s, want escalate", result.Verdict)
	}
	if result.Escalation.Approvers[0] != "team-a" {
		t.Errorf("surfaced approvers = %v, want earlier-declared team-a", result.Escalation.Approvers)
	}
}

func TestMachine_Determinism(t *testing.T) {
	compiled := compileDoc(t, escalationPolicy)
	m := mustMachine(t)
	evalCtx := baseContext(map[string]interface{}{"resource.sensitivity": "high"})

	var firstVerdict ast.Verdict
	var firstMatches []string
	for i := 0; i < 50; i++ {
		result, err := m.Execute(context.Background(), compiled, evalCtx)
		if err != nil {
			t.Fatalf("Execute() failed on iteration %d: %v", i, err)
		}
		if i == 0 {
			firstVerdict = result.Verdict
			firstMatches = result.MatchedRuleIDs
			continue
		}
		if result.Verdict != firstVerdict {
			t.Fatalf("iteration %d verdict %s != %s", i, result.Verdict, firstVerdict)
		}
		if len(result.MatchedRuleIDs) != len(firstMatches) {
			t.Fatalf("iteration %d matches %v != %v", i, result.MatchedRuleIDs, firstMatches)
		}
	}
}

// ============================================================================
// Selector and Fault Containment Tests
// ============================================================================

func TestMachine_SelectorRejectsContext(t *testing.T) {
	compiled := compileDoc(t, `
pdl_version: "1.0"
policy_id: scoped
version: "1.0.0"
default_verdict: deny
selector:
  - field: resource.type
    operator: "=="
    value: database
rules:
  - id: r1
    verdict: allow
`)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled, baseContext(nil))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if result.Applicable {
		t.Error("Applicable = true, want false for non-matching selector")
	}
	if result.Verdict != ast.VerdictDeny {
		t.Errorf("Verdict = %s, want default deny", result.Verdict)
	}
	if len(result.Trace) != 0 {
		t.Errorf("Trace = %v, want no rules evaluated", result.Trace)
	}
}

func TestMachine_RuleFaultIsContained(t *testing.T) {
	// context.score is a dynamic path the type checker cannot pin down;
	// a string value under a numeric comparison faults that rule only.
	compiled := compileDoc(t, `
pdl_version: "1.0"
policy_id: faults
version: "1.0.0"
conflict_resolution: deny_wins
default_verdict: deny
rules:
  - id: broken
    priority: 100
    conditions:
      - field: context.score
        operator: ">"
        value: 5
    verdict: deny
  - id: fallback-allow
    priority: 1
    verdict: allow
`)
	m := mustMachine(t)

	result, err := m.Execute(context.Background(), compiled,
		baseContext(map[string]interface{}{"context.score": "not-a-number"}))
	if err != nil {
		t.Fatalf("rule-local fault must not abort evaluation: %v", err)
	}
	if result.Verdict != ast.VerdictAllow {
		t.Errorf("Verdict = %s, want allow from surviving rule", result.Verdict)
	}
	if result.Trace[0].Matched {
		t.Error("faulted rule reported as matched")
	}
}

func TestMachine_MissingRequiredFieldIsError(t *testing.T) {
	compiled := compileDoc(t, `
pdl_version: "1.0"
policy_id: contract
version: "1.0.0"
rules:
  - id: r1
    conditions:
      - field: operation
        operator: "=="
        value: read
    verdict: allow
`)
	m := mustMachine(t)

	evalCtx := baseContext(nil)
	ec := NewEvaluationContext()
	for _, path := range []string{"agent.id", "resource.id", "resource.type", "time.hour", "time.weekday", "time.unix"} {
		if v, ok := evalCtx.Get(path); ok {
			ec.Set(path, v)
		}
	}
	// operation deliberately absent.
	_, err := m.Execute(context.Background(), compiled, ec)

	var missingErr *MissingFieldError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected *MissingFieldError, got %v", err)
	}
	if missingErr.Field != "operation" {
		t.Errorf("Field = %q, want operation", missingErr.Field)
	}
}

// ============================================================================
// Deadline Tests
// ============================================================================

func TestMachine_CancelledContextAborts(t *testing.T) {
	compiled := compileDoc(t, escalationPolicy)
	m := mustMachine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := m.Execute(ctx, compiled, baseContext(nil))
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("abort took %v, want prompt return", elapsed)
	}
}

// ============================================================================
// Wildcard Matcher Tests
// ============================================================================

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"bot-*", "bot-7", true},
		{"bot-*", "human-7", false},
		{"*-prod", "db-prod", true},
		{"*-prod", "db-prod-replica", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		{"?at", "cat", true},
		{"?at", "at", false},
		{"exact", "exact", true},
		{"exact", "Exact", false},
		{"", "", true},
		{"", "x", false},
	}

	for _, tt := range tests {
		if got := matchWildcard(tt.pattern, tt.s); got != tt.want {
			t.Errorf("matchWildcard(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}
