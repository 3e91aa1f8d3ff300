// Package decision orchestrates one policy evaluation end to end.
//
// The Orchestrator fetches (or compiles) the applicable policy, runs the
// evaluation machine, checks the policy's constraints, and combines both
// into one final verdict. Constraints are hard limits: a constraint
// rejection forces Deny regardless of any rule-based Allow or Escalate.
// Evaluation faults never surface as errors to the caller; they convert
// to a configured fallback verdict with a distinguishing reason code, and
// every decision emits a structured event for audit consumption.
//
// Compiled policies are cached by (policy_id, version) and invalidated by
// change notifications from the policy source rather than polling.
package decision
