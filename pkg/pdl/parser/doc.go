// Package parser parses PDL policy documents (YAML) into ASTs.
//
// The parser handles YAML decoding, AST construction, and syntax-level
// checks only. Reference, type, and conflict checks belong to the
// validator; code generation belongs to the compiler.
//
// # Document format
//
//	policy_id: data-access
//	version: 1.2.0
//	default_verdict: deny
//	conflict_resolution: deny_wins
//	selector:
//	  - field: agent.team
//	    operator: ==
//	    value: research
//	variables:
//	  sensitive: high
//	rules:
//	  - id: escalate-sensitive
//	    priority: 100
//	    conditions:
//	      - field: resource.sensitivity
//	        operator: ==
//	        value: $sensitive
//	    verdict: escalate
//	    escalation:
//	      approvers: [security-team]
//	      timeout_ms: 600000
//	constraints:
//	  - id: api-calls
//	    kind: rate_limit
//	    max_tokens: 10
//	    refill_rate: 1
//	    cost_per_operation: 5
//
// String values beginning with "$" are variable references, resolved and
// folded to literals at compile time. Line and column positions are
// preserved from the YAML nodes for error reporting.
package parser
