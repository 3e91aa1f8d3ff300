package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/constraint"
	"mercator-hq/saturn/pkg/constraint/store"
	"mercator-hq/saturn/pkg/decision"
	"mercator-hq/saturn/pkg/vm"
)

const serverPolicy = `
pdl_version: "1.0"
policy_id: gate
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
`

// newOrchestrator wires a real pipeline over an in-memory policy source.
func newOrchestrator(t *testing.T) *decision.Orchestrator {
	t.Helper()

	comp, err := compiler.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("compiler.New() failed: %v", err)
	}
	machine, err := vm.New(nil, nil)
	if err != nil {
		t.Fatalf("vm.New() failed: %v", err)
	}
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	enforcer, err := constraint.New(st, nil, nil, nil)
	if err != nil {
		t.Fatalf("constraint.New() failed: %v", err)
	}
	source := decision.NewMemorySource()
	source.Put("gate", []byte(serverPolicy))

	orch, err := decision.New(decision.Options{
		Compiler: comp,
		Machine:  machine,
		Enforcer: enforcer,
		Source:   source,
	})
	if err != nil {
		t.Fatalf("decision.New() failed: %v", err)
	}
	return orch
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	full := &config.Config{}
	config.ApplyDefaults(full)
	srv, err := New(full.Server, newOrchestrator(t), nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return srv
}

func postDecision(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Decision Endpoint Tests
// ============================================================================

func TestDecisionHandler_EscalatesSensitiveResource(t *testing.T) {
	srv := newTestServer(t)

	rec := postDecision(t, srv.Handler(), `{
		"policy_id": "gate",
		"agent": {"id": "agent-1", "team": "platform"},
		"operation": "write",
		"resource": {"id": "doc-1", "type": "document", "sensitivity": "high"}
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp decisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Verdict != "escalate" {
		t.Errorf("verdict = %q, want escalate", resp.Verdict)
	}
	if len(resp.MatchedRuleIDs) != 1 || resp.MatchedRuleIDs[0] != "escalate-sensitive" {
		t.Errorf("matched_rule_ids = %v, want [escalate-sensitive]", resp.MatchedRuleIDs)
	}
	if resp.Escalation == nil || len(resp.Escalation.Approvers) != 1 || resp.Escalation.Approvers[0] != "security-team" {
		t.Errorf("escalation = %+v, want security-team approver", resp.Escalation)
	}
	if resp.PolicyVersion != "1.0.0" {
		t.Errorf("policy_version = %q, want 1.0.0", resp.PolicyVersion)
	}
	if resp.RequestID == "" {
		t.Error("request_id is empty, want an assigned id")
	}
}

func TestDecisionHandler_AllowsRead(t *testing.T) {
	srv := newTestServer(t)

	rec := postDecision(t, srv.Handler(), `{
		"policy_id": "gate",
		"agent": {"id": "agent-1"},
		"operation": "read",
		"resource": {"id": "doc-1", "type": "document"}
	}`)

	var resp decisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Verdict != "allow" {
		t.Errorf("verdict = %q, want allow: %s", resp.Verdict, rec.Body.String())
	}
	if resp.Reason != "rule_match" {
		t.Errorf("reason = %q, want rule_match", resp.Reason)
	}
}

func TestDecisionHandler_UnknownPolicyStillDecides(t *testing.T) {
	srv := newTestServer(t)

	rec := postDecision(t, srv.Handler(), `{
		"policy_id": "no-such-policy",
		"agent": {"id": "agent-1"},
		"operation": "read",
		"resource": {"id": "doc-1", "type": "document"}
	}`)

	// A decided request is always 200; the fault lives in the verdict.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp decisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reason != "policy_unavailable" {
		t.Errorf("reason = %q, want policy_unavailable", resp.Reason)
	}
	if !resp.FallbackApplied {
		t.Error("fallback_applied = false, want true")
	}
}

func TestDecisionHandler_RejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	rec := postDecision(t, srv.Handler(), `{"policy_id": [`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "invalid_request" {
		t.Errorf("error code = %q, want invalid_request", resp.Error.Code)
	}
}

func TestDecisionHandler_RequiresPolicyAndAgent(t *testing.T) {
	srv := newTestServer(t)

	rec := postDecision(t, srv.Handler(), `{"operation": "read"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDecisionHandler_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/decisions", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandler_AssignsRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response is missing the request id header")
	}
}

func TestHandler_HonorsClientRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "trace-42" {
		t.Errorf("request id header = %q, want trace-42", got)
	}
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestNew_RequiresDecider(t *testing.T) {
	if _, err := New(config.ServerConfig{}, nil, nil); err == nil {
		t.Error("New() accepted a nil decider")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	full := &config.Config{}
	config.ApplyDefaults(full)
	full.Server.ListenAddress = "127.0.0.1:0"

	srv, err := New(full.Server, newOrchestrator(t), nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server never reported running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancellation, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}
