//go:build integration

package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/constraint"
	"mercator-hq/saturn/pkg/constraint/store"
	"mercator-hq/saturn/pkg/decision"
	"mercator-hq/saturn/pkg/decision/audit"
	"mercator-hq/saturn/pkg/pdl/ast"
	"mercator-hq/saturn/pkg/vm"
)

const integrationPolicy = `
pdl_version: "1.0"
policy_id: access
version: "1.0.0"
conflict_resolution: deny_wins
default_verdict: deny
rules:
  - id: escalate-sensitive
    priority: 100
    conditions:
      - field: resource.sensitivity
        operator: "=="
        value: high
    verdict: escalate
    escalation:
      approvers: [security-team]
      timeout_ms: 60000
  - id: allow-reads
    priority: 10
    conditions:
      - field: operation
        operator: "=="
        value: read
    verdict: allow
constraints:
  - id: read-budget
    kind: rate_limit
    max_tokens: 20
    refill_rate: 1
    cost_per_operation: 10
`

// buildPipeline wires the full stack the way the run command does:
// file source, SQLite constraint store, SQLite audit recorder.
func buildPipeline(t *testing.T) (*decision.Orchestrator, *audit.SQLiteStore, *audit.Recorder) {
	t.Helper()
	tmpDir := t.TempDir()

	policyDir := filepath.Join(tmpDir, "policies")
	if err := os.MkdirAll(policyDir, 0o755); err != nil {
		t.Fatalf("failed to create policy dir: %v", err)
	}
	policyPath := filepath.Join(policyDir, "access.yaml")
	if err := os.WriteFile(policyPath, []byte(integrationPolicy), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	comp, err := compiler.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("compiler.New() failed: %v", err)
	}
	machine, err := vm.New(nil, nil)
	if err != nil {
		t.Fatalf("vm.New() failed: %v", err)
	}

	st, err := store.NewSQLiteStoreWithConfig(store.SQLiteStoreConfig{
		DBPath: filepath.Join(tmpDir, "constraints.db"),
	})
	if err != nil {
		t.Fatalf("failed to open constraint store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	enforcer, err := constraint.New(st, nil, nil, nil)
	if err != nil {
		t.Fatalf("constraint.New() failed: %v", err)
	}

	source, err := decision.NewFileSource(policyDir, nil)
	if err != nil {
		t.Fatalf("failed to open policy source: %v", err)
	}

	auditStore, err := audit.NewSQLiteStore(audit.SQLiteConfig{
		Path: filepath.Join(tmpDir, "audit.db"),
	}, nil)
	if err != nil {
		t.Fatalf("failed to open audit store: %v", err)
	}
	t.Cleanup(func() { auditStore.Close() })

	recorder := audit.NewRecorder(auditStore, audit.RecorderConfig{}, nil)

	orchestrator, err := decision.New(decision.Options{
		Compiler: comp,
		Machine:  machine,
		Enforcer: enforcer,
		Source:   source,
		Sink:     recorder,
	})
	if err != nil {
		t.Fatalf("decision.New() failed: %v", err)
	}
	return orchestrator, auditStore, recorder
}

func TestPipeline_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	orchestrator, auditStore, recorder := buildPipeline(t)
	ctx := context.Background()

	readReq := func(agent string) *decision.Request {
		return &decision.Request{
			PolicyID:     "access",
			AgentID:      agent,
			Operation:    "read",
			ResourceID:   "doc-1",
			ResourceTags: []string{"internal"},
		}
	}

	// Allowed read, decided by the allow-reads rule.
	resp := orchestrator.Decide(ctx, readReq("agent-1"))
	if resp.Verdict != ast.VerdictAllow {
		t.Fatalf("Verdict = %q, want allow", resp.Verdict)
	}
	if resp.PolicyVersion != "1.0.0" {
		t.Errorf("PolicyVersion = %q, want 1.0.0", resp.PolicyVersion)
	}

	// Sensitive resource escalates regardless of operation.
	resp = orchestrator.Decide(ctx, &decision.Request{
		PolicyID:            "access",
		AgentID:             "agent-1",
		Operation:           "read",
		ResourceID:          "doc-2",
		ResourceSensitivity: "high",
	})
	if resp.Verdict != ast.VerdictEscalate {
		t.Fatalf("Verdict = %q, want escalate", resp.Verdict)
	}
	if resp.Escalation == nil || len(resp.Escalation.Approvers) != 1 {
		t.Errorf("Escalation = %+v, want one approver group", resp.Escalation)
	}

	// Unknown policy falls back to deny.
	resp = orchestrator.Decide(ctx, &decision.Request{
		PolicyID: "missing",
		AgentID:  "agent-1",
	})
	if resp.Verdict != ast.VerdictDeny || !resp.FallbackApplied {
		t.Errorf("unknown policy: Verdict = %q FallbackApplied = %v, want deny with fallback",
			resp.Verdict, resp.FallbackApplied)
	}

	// Audit events become queryable once the recorder drains.
	recorder.Close()
	count, err := auditStore.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("audit events = %d, want 3", count)
	}
}

func TestPipeline_RateLimitPersistsAcrossRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "constraints.db")
	policyDir := filepath.Join(tmpDir, "policies")
	if err := os.MkdirAll(policyDir, 0o755); err != nil {
		t.Fatalf("failed to create policy dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(policyDir, "access.yaml"), []byte(integrationPolicy), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	decide := func() *decision.Response {
		st, err := store.NewSQLiteStoreWithConfig(store.SQLiteStoreConfig{DBPath: dbPath})
		if err != nil {
			t.Fatalf("failed to open constraint store: %v", err)
		}
		defer st.Close()

		comp, _ := compiler.New(nil, nil, nil)
		machine, _ := vm.New(nil, nil)
		enforcer, err := constraint.New(st, nil, nil, nil)
		if err != nil {
			t.Fatalf("constraint.New() failed: %v", err)
		}
		source, err := decision.NewFileSource(policyDir, nil)
		if err != nil {
			t.Fatalf("failed to open policy source: %v", err)
		}
		orchestrator, err := decision.New(decision.Options{
			Compiler: comp,
			Machine:  machine,
			Enforcer: enforcer,
			Source:   source,
		})
		if err != nil {
			t.Fatalf("decision.New() failed: %v", err)
		}
		return orchestrator.Decide(context.Background(), &decision.Request{
			PolicyID:   "access",
			AgentID:    "agent-1",
			Operation:  "read",
			ResourceID: "doc-1",
		})
	}

	// The budget admits two reads at cost 10 each. Each decision runs in
	// a fresh process-equivalent; the third must still be rejected
	// because the bucket lives in SQLite.
	start := time.Now()
	for i := 0; i < 2; i++ {
		if resp := decide(); resp.Verdict != ast.VerdictAllow {
			t.Fatalf("decision %d: Verdict = %q, want allow", i, resp.Verdict)
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		// Refill would mask the exhaustion this test relies on.
		t.Skipf("setup too slow for deterministic budget check: %s", elapsed)
	}
	resp := decide()
	if resp.Verdict != ast.VerdictDeny {
		t.Errorf("Verdict = %q, want deny after budget exhaustion", resp.Verdict)
	}
	if resp.Reason != decision.ReasonRateLimited {
		t.Errorf("Reason = %q, want %q", resp.Reason, decision.ReasonRateLimited)
	}
}
