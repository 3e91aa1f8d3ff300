// Package compiler turns validated PDL policies into executable bytecode.
//
// The compiler runs the full front end (validation via pkg/pdl/validator),
// resolves variable references to literals, applies optional constant
// folding and dead-rule elimination, and emits a linear, position-addressed
// instruction sequence for the stack machine in pkg/vm.
//
// Programs have no call or loop instructions, so worst-case execution time
// is bounded by program length. Rules are emitted in descending priority
// order with declaration order breaking ties; that ordering is part of the
// observable evaluation contract.
//
// Compiled output is immutable. Each CompiledPolicy carries a SHA-256 hash
// of its source document so caches can detect staleness without recompiling.
package compiler
