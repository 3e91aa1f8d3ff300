package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

const validDocument = `
pdl_version: "1.0"
policy_id: code-review
version: "2.1.0"
default_verdict: deny
variables:
  trusted_team: platform
rules:
  - id: escalate-sensitive
    priority: 100
    conditions:
      - field: resource.sensitivity
        operator: "=="
        value: high
    verdict: escalate
    escalation:
      approvers: [security-team, leads]
      timeout_ms: 60000
      message: sensitive resource access
  - id: allow-trusted-reads
    priority: 10
    conditions:
      - field: agent.team
        operator: "=="
        value: $trusted_team
      - field: operation
        operator: in
        value: [read, list]
    verdict: allow
constraints:
  - id: read-budget
    kind: rate_limit
    max_tokens: 100
    refill_rate: 10
    cost_per_operation: 1
    refill_interval: 500ms
  - id: business-hours
    kind: temporal
    timezone: Europe/Berlin
    days_of_week: [1, 2, 3, 4, 5]
    start_hour: 8
    end_hour: 18
`

// ============================================================================
// Well-Formed Document Tests
// ============================================================================

func TestParser_ValidDocument(t *testing.T) {
	policy, err := NewParser().ParseBytes([]byte(validDocument), "policy.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}

	if policy.PolicyID != "code-review" {
		t.Errorf("PolicyID = %q, want code-review", policy.PolicyID)
	}
	if policy.Version != "2.1.0" {
		t.Errorf("Version = %q, want 2.1.0", policy.Version)
	}
	if policy.DefaultVerdict != ast.VerdictDeny {
		t.Errorf("DefaultVerdict = %q, want deny", policy.DefaultVerdict)
	}
	if len(policy.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(policy.Rules))
	}
	if len(policy.Constraints) != 2 {
		t.Fatalf("len(Constraints) = %d, want 2", len(policy.Constraints))
	}

	escalate := policy.Rules[0]
	if escalate.Priority != 100 {
		t.Errorf("Priority = %d, want 100", escalate.Priority)
	}
	if escalate.Escalation == nil {
		t.Fatal("Escalation is nil for escalate rule")
	}
	if len(escalate.Escalation.Approvers) != 2 || escalate.Escalation.TimeoutMs != 60000 {
		t.Errorf("Escalation = %+v", escalate.Escalation)
	}
	if escalate.Location.Line == 0 {
		t.Error("rule location was not captured")
	}
}

func TestParser_ValueClassification(t *testing.T) {
	policy, err := NewParser().ParseBytes([]byte(validDocument), "policy.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}

	conditions := policy.Rules[1].Conditions
	if conditions[0].Value.Type != ast.ValueTypeVariable {
		t.Errorf("Value.Type = %q, want variable reference", conditions[0].Value.Type)
	}
	if conditions[0].Value.VariableName != "trusted_team" {
		t.Errorf("VariableName = %q, want trusted_team", conditions[0].Value.VariableName)
	}
	if conditions[1].Value.Type != ast.ValueTypeList {
		t.Errorf("Value.Type = %q, want list", conditions[1].Value.Type)
	}
}

func TestParser_ConstraintKinds(t *testing.T) {
	policy, err := NewParser().ParseBytes([]byte(validDocument), "policy.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}

	bucket := policy.Constraints[0]
	if bucket.Kind != ast.ConstraintKindRateLimit {
		t.Errorf("Kind = %q, want rate_limit", bucket.Kind)
	}
	if bucket.MaxTokens != 100 || bucket.CostPerOperation != 1 {
		t.Errorf("bucket = %+v", bucket)
	}
	if bucket.RefillInterval != 500*time.Millisecond {
		t.Errorf("RefillInterval = %v, want 500ms", bucket.RefillInterval)
	}

	window := policy.Constraints[1]
	if window.Kind != ast.ConstraintKindTemporal {
		t.Errorf("Kind = %q, want temporal", window.Kind)
	}
	if window.Window == nil || window.Window.Timezone != "Europe/Berlin" {
		t.Errorf("Window = %+v, want Europe/Berlin", window.Window)
	}
}

func TestParser_DefaultRefillInterval(t *testing.T) {
	doc := `
policy_id: p
version: "1.0.0"
constraints:
  - id: budget
    kind: rate_limit
    max_tokens: 10
    refill_rate: 1
    cost_per_operation: 1
`
	policy, err := NewParser().ParseBytes([]byte(doc), "policy.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
	if got := policy.Constraints[0].RefillInterval; got != time.Second {
		t.Errorf("RefillInterval = %v, want 1s default", got)
	}
}

// ============================================================================
// Malformed Document Tests
// ============================================================================

func TestParser_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode pdlErrors.Code
		wantMsg  string
	}{
		{
			name:     "broken yaml syntax",
			doc:      "policy_id: [unclosed",
			wantCode: pdlErrors.CodeSyntax,
		},
		{
			name:     "missing policy id",
			doc:      "version: \"1.0.0\"\n",
			wantCode: pdlErrors.CodeSchema,
			wantMsg:  "policy_id",
		},
		{
			name:     "missing version",
			doc:      "policy_id: p\n",
			wantCode: pdlErrors.CodeSchema,
			wantMsg:  "version",
		},
		{
			name: "unknown default verdict",
			doc: `
policy_id: p
version: "1.0.0"
default_verdict: maybe
`,
			wantCode: pdlErrors.CodeSchema,
			wantMsg:  "default_verdict",
		},
		{
			name: "unknown operator",
			doc: `
policy_id: p
version: "1.0.0"
rules:
  - id: r
    conditions:
      - field: operation
        operator: "~="
        value: read
    verdict: allow
`,
			wantCode: pdlErrors.CodeSchema,
			wantMsg:  "operator",
		},
		{
			name: "escalate without parameters",
			doc: `
policy_id: p
version: "1.0.0"
rules:
  - id: r
    verdict: escalate
`,
			wantCode: pdlErrors.CodeSchema,
			wantMsg:  "escalation",
		},
		{
			name: "unknown constraint kind",
			doc: `
policy_id: p
version: "1.0.0"
constraints:
  - id: c
    kind: quota
`,
			wantCode: pdlErrors.CodeSchema,
			wantMsg:  "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseBytes([]byte(tt.doc), "policy.yaml")
			if err == nil {
				t.Fatal("ParseBytes() succeeded, want error")
			}
			if !hasCode(err, tt.wantCode) {
				t.Errorf("error %v does not carry code %s", err, tt.wantCode)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParser_AccumulatesErrors(t *testing.T) {
	// Both identity fields missing: one parse reports both.
	_, err := NewParser().ParseBytes([]byte("description: no identity\n"), "policy.yaml")
	if err == nil {
		t.Fatal("ParseBytes() succeeded, want error")
	}
	var list *pdlErrors.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("error type = %T, want *ErrorList", err)
	}
	if list.Count() < 2 {
		t.Errorf("Count() = %d, want at least 2", list.Count())
	}
}

// ============================================================================
// Size Limit and File Access Tests
// ============================================================================

func TestParser_SizeLimit(t *testing.T) {
	p := NewParser().WithMaxDocumentSize(16)
	_, err := p.ParseBytes([]byte(validDocument), "policy.yaml")
	if !hasCode(err, pdlErrors.CodeSize) {
		t.Errorf("error %v does not carry code %s", err, pdlErrors.CodeSize)
	}
}

func TestParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(validDocument), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	policy, err := NewParser().Parse(path)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if policy.SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", policy.SourceFile, path)
	}
}

func TestParser_MissingFile(t *testing.T) {
	_, err := NewParser().Parse(filepath.Join(t.TempDir(), "absent.yaml"))
	if !hasCode(err, pdlErrors.CodeIO) {
		t.Errorf("error %v does not carry code %s", err, pdlErrors.CodeIO)
	}
}

// hasCode reports whether err carries the diagnostic code, whether it is
// a single *Error or an *ErrorList.
func hasCode(err error, code pdlErrors.Code) bool {
	var single *pdlErrors.Error
	if errors.As(err, &single) {
		return single.Code == code
	}
	var list *pdlErrors.ErrorList
	if errors.As(err, &list) {
		return list.HasCode(code)
	}
	return false
}
