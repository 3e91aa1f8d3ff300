// Package validator performs semantic validation of parsed PDL policies.
//
// Validation runs in three passes, each accumulating diagnostics:
//
//  1. Structural: rule ID uniqueness, constraint parameter ranges,
//     timezone resolution, escalation completeness.
//  2. Type/reference: every condition field must resolve to a declared
//     attribute path in the schema, every value must be type-compatible
//     with the field's declared type, and every variable reference must
//     resolve. Unresolved fields are fatal, never silently false; a typo
//     in a field name must not become an accidental Allow.
//  3. Conflict/dead-rule analysis: rule pairs whose condition sets are
//     simultaneously satisfiable but produce different verdicts are
//     conflicts (warnings, or fatal when the policy declares no
//     conflict_resolution or the compiler is configured to reject).
//     Rules that can never determine the outcome are reported as dead.
//     Both analyses are best-effort static approximations.
//
// The validator never mutates the AST.
package validator
