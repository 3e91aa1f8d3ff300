package vm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/pdl/ast"
)

// Config contains configuration for the evaluation machine.
type Config struct {
	// EvaluationTimeout bounds one whole evaluation. Applied on top of
	// any caller deadline; the earlier one wins. Default: 100ms.
	EvaluationTimeout time.Duration

	// MaxStackDepth bounds the operand stack. Programs the compiler
	// emits never exceed 2; the bound catches corrupt programs.
	// Default: 64.
	MaxStackDepth int
}

// DefaultConfig returns the default machine configuration.
func DefaultConfig() *Config {
	return &Config{
		EvaluationTimeout: 100 * time.Millisecond,
		MaxStackDepth:     64,
	}
}

// Validate validates the machine configuration.
func (c *Config) Validate() error {
	if c.EvaluationTimeout <= 0 {
		return fmt.Errorf("evaluation_timeout must be positive, got %v", c.EvaluationTimeout)
	}
	if c.MaxStackDepth <= 0 {
		return fmt.Errorf("max_stack_depth must be positive, got %d", c.MaxStackDepth)
	}
	return nil
}

// Machine executes compiled policy programs. One Machine is safe for
// concurrent use; per-evaluation state lives on the goroutine's stack.
type Machine struct {
	config *Config
	logger *slog.Logger
}

// New creates an evaluation machine. A nil config uses DefaultConfig; a
// nil logger uses slog.Default.
func New(config *Config, logger *slog.Logger) (*Machine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid machine config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{config: config, logger: logger}, nil
}

// missing is the sentinel for absent optional context paths. Every
// comparison involving it evaluates to false.
type missingValue struct{}

var missing = missingValue{}

// candidate is one matched rule's verdict, in priority order.
type candidate struct {
	ruleID     string
	verdict    ast.Verdict
	escalation *ast.Escalation
}

// Execute runs one compiled policy against one evaluation context.
// Cancellation of ctx aborts execution promptly. The returned error is a
// *TimeoutError, *MissingFieldError, or *CorruptProgramError; rule-local
// faults never surface as errors.
func (m *Machine) Execute(ctx context.Context, compiled *compiler.CompiledPolicy, evalCtx *EvaluationContext) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, m.config.EvaluationTimeout)
	defer cancel()

	var (
		code       = compiled.Bytecode
		stack      = make([]interface{}, 0, 8)
		trace      []RuleMatch
		candidates []candidate
		faulted    bool
	)

	push := func(v interface{}) error {
		if len(stack) >= m.config.MaxStackDepth {
			return &CorruptProgramError{PolicyID: compiled.PolicyID, Detail: "stack overflow"}
		}
		stack = append(stack, v)
		return nil
	}
	pop := func() (interface{}, bool) {
		if len(stack) == 0 {
			return nil, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for ip := 0; ip < len(code); ip++ {
		if err := ctx.Err(); err != nil {
			return nil, &TimeoutError{PolicyID: compiled.PolicyID, Elapsed: time.Since(start)}
		}

		in := code[ip]
		switch in.Op {
		case compiler.OpLoadContext:
			value, ok := evalCtx.Get(in.Field)
			if !ok {
				if in.Required {
					return nil, &MissingFieldError{PolicyID: compiled.PolicyID, Field: in.Field}
				}
				value = missing
			}
			if err := push(value); err != nil {
				return nil, err
			}

		case compiler.OpLoadLiteral:
			if err := push(in.Literal); err != nil {
				return nil, err
			}

		case compiler.OpCompareEq, compiler.OpCompareNe, compiler.OpCompareLt, compiler.OpCompareGt:
			b, ok1 := pop()
			a, ok2 := pop()
			if !ok1 || !ok2 {
				return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "stack underflow"}
			}
			result, fault := compare(in.Op, a, b)
			faulted = faulted || fault
			if err := push(result); err != nil {
				return nil, err
			}

		case compiler.OpStringMatch:
			a, ok := pop()
			if !ok {
				return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "stack underflow"}
			}
			s, isString := a.(string)
			if !isString {
				// Missing or non-string value never matches.
				faulted = faulted || !isMissing(a)
				if err := push(false); err != nil {
					return nil, err
				}
				break
			}
			if err := push(matchWildcard(in.Pattern, s)); err != nil {
				return nil, err
			}

		case compiler.OpInList:
			a, ok := pop()
			if !ok {
				return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "stack underflow"}
			}
			if err := push(inList(a, in.List)); err != nil {
				return nil, err
			}

		case compiler.OpPushRule:
			trace = append(trace, RuleMatch{RuleID: in.RuleID})
			faulted = false

		case compiler.OpJmpIfFalse:
			cond, ok := pop()
			if !ok {
				return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "stack underflow"}
			}
			// A faulted or non-boolean condition counts as false.
			taken := true
			if b, isBool := cond.(bool); isBool {
				taken = !b
			}
			if taken {
				if in.Target < 0 || in.Target > len(code) {
					return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "jump target out of range"}
				}
				ip = in.Target - 1
			}

		case compiler.OpJmp:
			if in.Target < 0 || in.Target > len(code) {
				return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "jump target out of range"}
			}
			ip = in.Target - 1

		case compiler.OpVerdictAllow, compiler.OpVerdictDeny, compiler.OpVerdictEscalate:
			if len(trace) == 0 {
				return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: ip, Detail: "verdict outside rule section"}
			}
			if faulted {
				// A rule whose condition faulted is non-matching even if
				// the fault produced a passable boolean.
				break
			}
			current := &trace[len(trace)-1]
			current.Matched = true
			cand := candidate{ruleID: current.RuleID}
			switch in.Op {
			case compiler.OpVerdictAllow:
				cand.verdict = ast.VerdictAllow
			case compiler.OpVerdictDeny:
				cand.verdict = ast.VerdictDeny
			case compiler.OpVerdictEscalate:
				cand.verdict = ast.VerdictEscalate
				cand.escalation = in.Escalation
			}
			candidates = append(candidates, cand)

		case compiler.OpRet:
			return m.resolve(compiled, trace, candidates, start), nil

		default:
			return nil, &CorruptProgramError{
				PolicyID: compiled.PolicyID,
				IP:       ip,
				Detail:   fmt.Sprintf("unknown opcode %d", uint8(in.Op)),
			}
		}
	}

	return nil, &CorruptProgramError{PolicyID: compiled.PolicyID, IP: len(code), Detail: "program fell off the end without RET"}
}

// resolve applies verdict resolution over the collected candidates:
// deny-wins, then the first Escalate in priority order, then Allow, then
// the policy default. MatchedRuleIDs names only the rules that carry the
// final verdict; overridden candidates remain visible through the trace.
func (m *Machine) resolve(compiled *compiler.CompiledPolicy, trace []RuleMatch, candidates []candidate, start time.Time) *Result {
	result := &Result{
		Trace:      trace,
		Applicable: len(trace) > 0 || compiled.RuleCount == 0,
		Duration:   time.Since(start),
	}

	if len(candidates) == 0 {
		result.Verdict = compiled.DefaultVerdict
		result.Confidence = ConfidenceDefault
		return result
	}

	result.Confidence = ConfidenceRuleMatch
	result.Verdict = ast.VerdictAllow
	for i := range candidates {
		cand := &candidates[i]
		switch cand.verdict {
		case ast.VerdictDeny:
			result.Verdict = ast.VerdictDeny
		case ast.VerdictEscalate:
			if result.Verdict != ast.VerdictDeny {
				result.Verdict = ast.VerdictEscalate
				if result.Escalation == nil {
					result.Escalation = cand.escalation
				}
			}
		}
	}
	if result.Verdict != ast.VerdictEscalate {
		result.Escalation = nil
	}
	for _, cand := range candidates {
		if cand.verdict == result.Verdict {
			result.MatchedRuleIDs = append(result.MatchedRuleIDs, cand.ruleID)
		}
	}
	return result
}

func isMissing(v interface{}) bool {
	_, ok := v.(missingValue)
	return ok
}
