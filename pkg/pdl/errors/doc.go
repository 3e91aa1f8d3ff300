// Package errors provides rich error types for PDL parsing, validation,
// and compilation.
//
// Every error carries a stable machine-readable code (see the Code
// constants), the source location of the offending rule or condition, and
// an optional suggestion. Errors accumulate in an ErrorList so a single
// compile run reports every problem instead of stopping at the first.
//
// Compilation never produces a partially valid result: callers receive
// either a compiled policy or an ErrorList, never both.
package errors
