// Package ast defines the Abstract Syntax Tree for PDL (Policy Definition
// Language) documents.
//
// A PDL document describes one policy: a selector that decides whether the
// policy applies to a requester, an ordered list of rules, an ordered list
// of operational constraints, a default verdict, and a conflict-resolution
// strategy. The AST is produced by the parser, checked by the validator,
// and consumed by the compiler; it is never evaluated directly.
//
// # Structure
//
//	Policy
//	├── Selector   (conditions over requester attributes)
//	├── Rules      (ordered; each an ordered conjunction of conditions)
//	│   └── Condition (field path, operator, value)
//	├── Constraints (rate limits, temporal windows)
//	└── Variables  (compile-time constants referenced by conditions)
//
// All nodes carry a Location for precise error reporting.
//
// # Design Principles
//
//   - Rules reference each other by ID, never by pointer, so the AST stays
//     acyclic and static analysis stays tractable.
//   - Strong typing with no automatic coercion: a Value has exactly one
//     ValueType, and the validator rejects type-incompatible comparisons.
//   - The AST is immutable after parsing; the compiler reads it, it never
//     rewrites it.
package ast
