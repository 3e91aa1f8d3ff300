package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimitState is the persisted state of one token bucket, keyed by
// (limit_id, subject_id).
type RateLimitState struct {
	// LimitID identifies the constraint this bucket belongs to.
	LimitID string

	// SubjectID identifies the agent or principal being limited.
	SubjectID string

	// Tokens is the current token balance. Fractional balances occur
	// because refill is continuous.
	Tokens float64

	// LastRefillAt is when Tokens was last brought forward in time.
	LastRefillAt time.Time

	// Version is the optimistic concurrency token. Zero means the state
	// has never been persisted; each successful write increments it.
	Version int64

	// UpdatedAt is when this state was last written.
	UpdatedAt time.Time

	// CreatedAt is when this state was first written.
	CreatedAt time.Time
}

// Clone returns an independent copy.
func (s *RateLimitState) Clone() *RateLimitState {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// ConflictError reports a compare-and-swap that lost to a concurrent
// writer: the stored version no longer matches the expected one.
type ConflictError struct {
	LimitID   string
	SubjectID string
	Expected  int64
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s/%s: expected version %d is stale",
		e.LimitID, e.SubjectID, e.Expected)
}

// IsConflict returns true if err is a CAS version conflict.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// Store defines the interface for token-bucket state persistence.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Load retrieves the state for a bucket.
	// Returns nil if no state exists. Returns error on system failure.
	Load(ctx context.Context, limitID, subjectID string) (*RateLimitState, error)

	// CompareAndSwap persists state if and only if the stored version
	// equals state.Version; an expected version of zero creates the
	// bucket. On success the state's Version is advanced by one and
	// written back into state. On a concurrent write it returns a
	// *ConflictError and stores nothing.
	CompareAndSwap(ctx context.Context, state *RateLimitState) error

	// Delete removes a bucket. No-op if it doesn't exist.
	Delete(ctx context.Context, limitID, subjectID string) error

	// Cleanup removes buckets not updated since olderThan.
	// Returns the number of entries deleted and any error.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the store.
	// The store should not be used after calling Close.
	Close() error
}
