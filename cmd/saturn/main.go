// Mercator Saturn is a policy decision runtime for autonomous agents.
//
// It compiles declarative PDL policies to bytecode, evaluates agent
// requests against them, and enforces stateful constraints such as
// rate limits and temporal windows. Every evaluation terminates in a
// verdict: allow, deny, escalate, or error.
//
// Usage:
//
//	# Start the decision service with default configuration
//	saturn run
//
//	# Start with custom configuration file
//	saturn run --config /path/to/config.yaml
//
//	# Validate policy files
//	saturn lint --file policy.yaml
//
//	# Compile a policy and inspect its bytecode
//	saturn compile --file policy.yaml --disasm
//
//	# Evaluate a single request against a policy directory
//	saturn eval --dir ./policies --policy base --agent agent-1 --operation read \
//	    --resource doc-1 --resource-type document
//
//	# Show version information
//	saturn version
//
// For complete documentation, see: https://github.com/mercator-hq/saturn
package main

func main() {
	Execute()
}
