// Package vm executes compiled policy bytecode against one evaluation
// context.
//
// The machine is a stack interpreter with a single linear instruction
// pointer, no call or loop instructions, and an accumulating matched-rule
// list. Execution is bounded by program length and by a wall-clock
// deadline.
//
// Fault containment is per rule: a condition that fails at runtime (type
// mismatch, missing optional field) makes that rule non-matching and
// evaluation continues with the next rule. Only whole-evaluation faults
// (timeout, missing required field, corrupt program) abort execution.
//
// Verdict resolution happens after the whole program runs: deny-wins,
// then escalate by priority order, then allow, then the policy's default
// verdict.
package vm
