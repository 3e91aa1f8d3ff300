// Package server provides the HTTP decision endpoint.
//
// The server exposes the decision pipeline over HTTP:
//
//   - POST /v1/decisions evaluates one request and returns the decision
//   - GET  /health answers liveness probes
//
// Transport faults (malformed body, unusable request) map to HTTP error
// statuses. A decided request always returns 200 with the decision body,
// including fallback and error verdicts: the verdict is the payload, not
// the transport outcome.
//
// # Wire Format
//
// Request:
//
//	{
//	  "request_id": "optional caller correlation id",
//	  "policy_id": "code-review",
//	  "agent": {"id": "agent-7", "team": "platform", "roles": ["reviewer"]},
//	  "operation": "read",
//	  "resource": {"id": "repo:core", "type": "repository", "sensitivity": "high"},
//	  "context": {"change_size": 120}
//	}
//
// Response:
//
//	{
//	  "request_id": "...",
//	  "verdict": "escalate",
//	  "confidence": 1.0,
//	  "reason": "rule_match",
//	  "matched_rule_ids": ["escalate-sensitive"],
//	  "escalation": {"approvers": ["security-team"], "timeout_ms": 60000},
//	  "policy_version": "1.0.0",
//	  "duration_ms": 0
//	}
//
// # Usage
//
//	srv, err := server.New(cfg.Server, orchestrator, logger)
//	if err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
