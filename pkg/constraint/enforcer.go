package constraint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mercator-hq/saturn/pkg/constraint/store"
	"mercator-hq/saturn/pkg/pdl/ast"
)

// errLimitExceeded marks a definitive rejection inside the retry loop so
// it is never retried.
var errLimitExceeded = errors.New("limit exceeded")

// Config contains configuration for the constraint enforcer.
type Config struct {
	// ConsensusTimeout bounds one rate-limit check including all CAS
	// retries. Default: 2s.
	ConsensusTimeout time.Duration

	// MaxRetries is the total number of CAS attempts per check.
	// Default: 5.
	MaxRetries int

	// InitialBackoff is the first retry delay. Jitter is applied on top.
	// Default: 5ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay. Default: 250ms.
	MaxBackoff time.Duration

	// FailOpenOnConsensusFailure admits requests whose rate-limit check
	// could not reach a consistent outcome. Default: false (reject).
	FailOpenOnConsensusFailure bool
}

// DefaultConfig returns the default enforcer configuration.
func DefaultConfig() *Config {
	return &Config{
		ConsensusTimeout: 2 * time.Second,
		MaxRetries:       5,
		InitialBackoff:   5 * time.Millisecond,
		MaxBackoff:       250 * time.Millisecond,
	}
}

// Validate validates the enforcer configuration.
func (c *Config) Validate() error {
	if c.ConsensusTimeout <= 0 {
		return fmt.Errorf("consensus_timeout must be positive, got %v", c.ConsensusTimeout)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("invalid backoff bounds %v..%v", c.InitialBackoff, c.MaxBackoff)
	}
	return nil
}

// Enforcer checks a policy's constraints against shared bucket state.
// Safe for concurrent use.
type Enforcer struct {
	store   store.Store
	config  *Config
	metrics *Metrics
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates an enforcer. A nil config uses DefaultConfig; nil metrics
// disables instrumentation; a nil logger uses slog.Default.
func New(st store.Store, config *Config, metrics *Metrics, logger *slog.Logger) (*Enforcer, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid enforcer config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		store:   st,
		config:  config,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Check evaluates every constraint for one subject, in declaration order,
// stopping at the first non-passing check. It never returns an error:
// ambiguity is reported as a consensus-failure outcome with the fail-open
// flag already applied to Admitted.
func (e *Enforcer) Check(ctx context.Context, constraints []*ast.Constraint, subjectID string) *CheckResult {
	result := &CheckResult{Outcome: OutcomeAdmitted, Admitted: true, RemainingTokens: -1}

	for _, cons := range constraints {
		start := time.Now()
		switch cons.Kind {
		case ast.ConstraintKindTemporal:
			if !inWindow(cons.Window, e.now()) {
				result.Outcome = OutcomeWindowClosed
				result.Admitted = false
				result.ConstraintID = cons.ConstraintID
				e.metrics.RecordCheck(cons.ConstraintID, OutcomeWindowClosed, time.Since(start).Seconds())
				return result
			}
			e.metrics.RecordCheck(cons.ConstraintID, OutcomeAdmitted, time.Since(start).Seconds())

		case ast.ConstraintKindRateLimit:
			remaining, retries, err := e.takeTokens(ctx, cons, subjectID)
			result.Retries += retries
			e.metrics.RecordRetries(cons.ConstraintID, retries)

			switch {
			case err == nil:
				result.RemainingTokens = remaining
				e.metrics.RecordTokens(cons.ConstraintID, subjectID, remaining)
				e.metrics.RecordCheck(cons.ConstraintID, OutcomeAdmitted, time.Since(start).Seconds())

			case errors.Is(err, errLimitExceeded):
				result.Outcome = OutcomeLimitExceeded
				result.Admitted = false
				result.ConstraintID = cons.ConstraintID
				result.RemainingTokens = remaining
				e.metrics.RecordTokens(cons.ConstraintID, subjectID, remaining)
				e.metrics.RecordCheck(cons.ConstraintID, OutcomeLimitExceeded, time.Since(start).Seconds())
				return result

			default:
				result.Outcome = OutcomeConsensusFailure
				result.Admitted = e.config.FailOpenOnConsensusFailure
				result.ConstraintID = cons.ConstraintID
				e.metrics.RecordConsensusFailure(cons.ConstraintID)
				e.metrics.RecordCheck(cons.ConstraintID, OutcomeConsensusFailure, time.Since(start).Seconds())
				e.logger.Warn("constraint check could not reach consensus",
					"constraint_id", cons.ConstraintID,
					"subject_id", subjectID,
					"retries", retries,
					"fail_open", e.config.FailOpenOnConsensusFailure,
					"error", err,
				)
				return result
			}
		}
	}
	return result
}

// takeTokens runs the read-refill-admit-CAS cycle with bounded
// exponential backoff. It returns the remaining balance, the number of
// CAS retries spent, and an error that is errLimitExceeded for a
// definitive rejection or any other error for an ambiguous outcome.
func (e *Enforcer) takeTokens(ctx context.Context, cons *ast.Constraint, subjectID string) (float64, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.ConsensusTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.InitialBackoff
	bo.MaxInterval = e.config.MaxBackoff

	attempts := 0
	operation := func() (float64, error) {
		attempts++
		remaining, err := e.tryTake(ctx, cons, subjectID)
		if err == nil {
			return remaining, nil
		}
		if store.IsConflict(err) {
			// Concurrent writer won; retry against fresh state.
			return remaining, err
		}
		return remaining, backoff.Permanent(err)
	}

	remaining, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(e.config.MaxRetries)),
	)
	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}
	return remaining, retries, err
}

// tryTake is one optimistic attempt: load, refill, admit, CAS.
func (e *Enforcer) tryTake(ctx context.Context, cons *ast.Constraint, subjectID string) (float64, error) {
	now := e.now().UTC()

	state, err := e.store.Load(ctx, cons.ConstraintID, subjectID)
	if err != nil {
		return -1, fmt.Errorf("loading bucket state: %w", err)
	}
	if state == nil {
		// First sighting of this subject: the bucket starts full.
		state = &store.RateLimitState{
			LimitID:      cons.ConstraintID,
			SubjectID:    subjectID,
			Tokens:       cons.MaxTokens,
			LastRefillAt: now,
		}
	} else {
		refill(state, cons, now)
	}

	if state.Tokens < cons.CostPerOperation {
		return state.Tokens, errLimitExceeded
	}

	state.Tokens -= cons.CostPerOperation
	if err := e.store.CompareAndSwap(ctx, state); err != nil {
		return state.Tokens, err
	}
	return state.Tokens, nil
}

// refill brings a bucket's balance forward to now at the constraint's
// continuous refill rate, capped at capacity.
func refill(state *store.RateLimitState, cons *ast.Constraint, now time.Time) {
	elapsed := now.Sub(state.LastRefillAt)
	if elapsed <= 0 {
		return
	}
	interval := cons.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	refilled := state.Tokens + cons.RefillRate*(elapsed.Seconds()/interval.Seconds())
	if refilled > cons.MaxTokens {
		refilled = cons.MaxTokens
	}
	state.Tokens = refilled
	state.LastRefillAt = now
}
