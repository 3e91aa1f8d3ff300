// Package constraint enforces hard operational limits attached to
// policies: token-bucket rate limits and temporal access windows.
//
// Rate limits run over versioned state in a store.Store using optimistic
// compare-and-swap: read state, refill tokens for elapsed time, admit if
// the balance covers the operation cost, and persist keyed on the read
// version. A concurrent writer makes the CAS fail, which is retried with
// exponential backoff and jitter up to a budget. Exhausting the budget is
// a consensus failure, reported distinctly from a limit violation; the
// fail-open flag decides whether an ambiguous check admits (default: it
// rejects).
//
// Temporal windows are pure functions of the clock. Their timezone and
// bounds were validated at compile time, so checking is infallible.
package constraint
