package ast

import "time"

// ConstraintKind identifies the kind of operational constraint.
type ConstraintKind string

const (
	// ConstraintKindRateLimit is a token-bucket rate limit keyed by
	// (constraint ID, subject).
	ConstraintKindRateLimit ConstraintKind = "rate_limit"

	// ConstraintKindTemporal admits operations only inside a time window.
	ConstraintKindTemporal ConstraintKind = "temporal"
)

// Constraint is an operational constraint attached to a policy. Constraints
// are hard limits checked independently of rule verdicts; a constraint
// rejection forces the final verdict to Deny.
type Constraint struct {
	ConstraintID string
	Kind         ConstraintKind

	// RateLimit parameters (Kind == ConstraintKindRateLimit).
	MaxTokens        float64
	RefillRate       float64       // Tokens per RefillInterval
	RefillInterval   time.Duration // Default: one second
	CostPerOperation float64

	// Temporal window parameters (Kind == ConstraintKindTemporal).
	Window *TimeWindow

	Location Location
}

// TimeWindow describes a recurring admission window. It is a pure function
// of the wall clock: no shared state, no per-request failure mode.
type TimeWindow struct {
	// Timezone name, e.g. "UTC" or "America/New_York".
	Timezone string

	// DaysOfWeek are admitted days (1 = Monday .. 7 = Sunday).
	// Empty means all days.
	DaysOfWeek []int

	// StartHour and EndHour bound the admitted hours [Start, End).
	StartHour int
	EndHour   int
}
