package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/constraint"
	"mercator-hq/saturn/pkg/pdl/ast"
	"mercator-hq/saturn/pkg/vm"
)

// Config contains configuration for the orchestrator.
type Config struct {
	// FallbackVerdict replaces the outcome when a whole-evaluation fault
	// occurs. Default: deny.
	FallbackVerdict ast.Verdict

	// CompileTimeout bounds on-miss synchronous compilation.
	// Default: 5s.
	CompileTimeout time.Duration

	// CacheTTL is how long compiled policies stay cached without an
	// invalidation. Default: 1h.
	CacheTTL time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() *Config {
	return &Config{
		FallbackVerdict: ast.VerdictDeny,
		CompileTimeout:  5 * time.Second,
		CacheTTL:        time.Hour,
	}
}

// Validate validates the orchestrator configuration.
func (c *Config) Validate() error {
	switch c.FallbackVerdict {
	case ast.VerdictAllow, ast.VerdictDeny, ast.VerdictEscalate, VerdictError:
	default:
		return fmt.Errorf("invalid fallback_verdict %q", c.FallbackVerdict)
	}
	if c.CompileTimeout <= 0 {
		return fmt.Errorf("compile_timeout must be positive, got %v", c.CompileTimeout)
	}
	return nil
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Compiler *compiler.Compiler
	Machine  *vm.Machine
	Enforcer *constraint.Enforcer
	Source   Source

	// Sink receives decision events. Default: NopSink.
	Sink Sink

	// Metrics is optional; nil disables instrumentation.
	Metrics *Metrics

	Config *Config
	Logger *slog.Logger
}

// Orchestrator runs evaluations end to end. Safe for concurrent use; one
// instance serves all evaluation goroutines.
type Orchestrator struct {
	compiler *compiler.Compiler
	machine  *vm.Machine
	enforcer *constraint.Enforcer
	source   Source
	cache    *Cache
	sink     Sink
	metrics  *Metrics
	config   *Config
	logger   *slog.Logger

	now func() time.Time
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Compiler == nil || opts.Machine == nil || opts.Enforcer == nil || opts.Source == nil {
		return nil, fmt.Errorf("compiler, machine, enforcer, and source are required")
	}
	config := opts.Config
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		compiler: opts.Compiler,
		machine:  opts.Machine,
		enforcer: opts.Enforcer,
		source:   opts.Source,
		cache:    NewCache(config.CacheTTL),
		sink:     sink,
		metrics:  opts.Metrics,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WatchSource subscribes to policy change notifications and invalidates
// cache entries as they arrive. Blocks until ctx is cancelled; run it on
// its own goroutine.
func (o *Orchestrator) WatchSource(ctx context.Context) error {
	return o.source.Watch(ctx, func(policyID string) {
		o.cache.Invalidate(policyID)
		o.logger.Info("policy invalidated", "policy_id", policyID)
	})
}

// Decide evaluates one request. It always returns a response: faults are
// converted to the configured fallback verdict and identified by the
// reason code, never raised to the caller.
func (o *Orchestrator) Decide(ctx context.Context, req *Request) *Response {
	start := time.Now()

	if req == nil {
		req = &Request{}
	}
	resp := &Response{RequestID: req.RequestID}
	if resp.RequestID == "" {
		resp.RequestID = uuid.NewString()
	}

	if req.PolicyID == "" || req.AgentID == "" {
		resp.Verdict = VerdictError
		resp.Reason = ReasonInvalidRequest
		resp.Confidence = vm.ConfidenceFallback
		return o.finish(ctx, req, resp, start)
	}

	compiled, err := o.policyFor(ctx, req.PolicyID)
	if err != nil {
		o.logger.Error("policy unavailable",
			"policy_id", req.PolicyID,
			"request_id", resp.RequestID,
			"error", err,
		)
		resp.Verdict = o.config.FallbackVerdict
		resp.Reason = ReasonPolicyUnavailable
		resp.Confidence = vm.ConfidenceFallback
		resp.FallbackApplied = true
		return o.finish(ctx, req, resp, start)
	}
	resp.PolicyVersion = compiled.Version

	result, err := o.machine.Execute(ctx, compiled, evaluationContext(req, o.now()))
	if err != nil {
		resp.Verdict = o.config.FallbackVerdict
		resp.Confidence = vm.ConfidenceFallback
		resp.FallbackApplied = true

		var timeout *vm.TimeoutError
		if errors.As(err, &timeout) {
			resp.Reason = ReasonEvaluationTimeout
		} else {
			resp.Reason = ReasonEvaluationError
		}
		o.logger.Warn("evaluation fault",
			"policy_id", req.PolicyID,
			"request_id", resp.RequestID,
			"reason", resp.Reason,
			"error", err,
		)
		return o.finish(ctx, req, resp, start)
	}

	resp.Verdict = result.Verdict
	resp.Confidence = result.Confidence
	resp.MatchedRuleIDs = result.MatchedRuleIDs
	resp.Escalation = result.Escalation
	resp.Trace = result.Trace
	switch {
	case len(result.MatchedRuleIDs) > 0:
		resp.Reason = ReasonRuleMatch
	case !result.Applicable:
		resp.Reason = ReasonNotApplicable
	default:
		resp.Reason = ReasonDefaultVerdict
	}

	// Constraints are hard limits layered over rule outcomes. A denied
	// request consumes no budget.
	if resp.Verdict == ast.VerdictAllow || resp.Verdict == ast.VerdictEscalate {
		check := o.enforcer.Check(ctx, compiled.Constraints, req.AgentID)
		resp.ConstraintOutcome = check.Outcome
		if !check.Admitted {
			// The constraint forces the verdict; confidence still
			// describes how the interpreter reached its outcome.
			resp.Verdict = ast.VerdictDeny
			resp.Escalation = nil
			switch check.Outcome {
			case constraint.OutcomeWindowClosed:
				resp.Reason = ReasonWindowClosed
			case constraint.OutcomeConsensusFailure:
				resp.Reason = ReasonConsensusFailure
			default:
				resp.Reason = ReasonRateLimited
			}
		} else if check.Outcome == constraint.OutcomeConsensusFailure {
			// Fail-open admission stays observable.
			resp.Reason = ReasonConsensusFailure
		}
	}

	return o.finish(ctx, req, resp, start)
}

// finish stamps timing, emits the decision event, and records metrics.
func (o *Orchestrator) finish(ctx context.Context, req *Request, resp *Response, start time.Time) *Response {
	resp.Duration = time.Since(start)
	o.metrics.RecordDecision(req.PolicyID, resp)
	o.sink.Emit(ctx, newEvent(req, resp))
	return resp
}

// policyFor returns the compiled policy for an id, compiling on cache
// miss. Compilation is bounded by CompileTimeout even though the
// compiler itself is not cancellable.
func (o *Orchestrator) policyFor(ctx context.Context, policyID string) (*compiler.CompiledPolicy, error) {
	if compiled, ok := o.cache.GetCurrent(policyID); ok {
		o.metrics.RecordCacheHit(true)
		return compiled, nil
	}
	o.metrics.RecordCacheHit(false)

	data, sourcePath, err := o.source.Load(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	type compileResult struct {
		compiled *compiler.CompiledPolicy
		err      error
	}
	done := make(chan compileResult, 1)
	go func() {
		compiled, err := o.compiler.CompileBytes(data, sourcePath)
		done <- compileResult{compiled, err}
	}()

	timer := time.NewTimer(o.config.CompileTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		o.metrics.RecordCompilation(policyID, res.err)
		if res.err != nil {
			return nil, fmt.Errorf("compiling policy: %w", res.err)
		}
		for _, warning := range res.compiled.Warnings {
			o.logger.Warn("policy compilation warning",
				"policy_id", policyID,
				"code", warning.Code,
				"message", warning.Message,
			)
		}
		o.cache.Put(res.compiled)
		return res.compiled, nil
	case <-timer.C:
		o.metrics.RecordCompilation(policyID, context.DeadlineExceeded)
		return nil, fmt.Errorf("compiling policy %q: %w", policyID, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
