package compiler

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
	"mercator-hq/saturn/pkg/pdl/parser"
	"mercator-hq/saturn/pkg/pdl/validator"
)

// Config contains configuration for the policy compiler.
type Config struct {
	// MaxBytecodeSize is the maximum number of instructions a single
	// compiled policy may contain. Compilation fails above it.
	// Default: 4096.
	MaxBytecodeSize int

	// EnableConstantFolding evaluates context-independent comparisons at
	// compile time. Default: true.
	EnableConstantFolding bool

	// EnableDeadCodeElimination removes rules whose conditions are
	// provably false after folding. Default: true.
	EnableDeadCodeElimination bool

	// ConflictPolicy controls whether satisfiable rule conflicts under a
	// declared resolution strategy are warnings or fatal. Default: warn.
	ConflictPolicy validator.ConflictPolicy
}

// DefaultConfig returns the default compiler configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxBytecodeSize:           4096,
		EnableConstantFolding:     true,
		EnableDeadCodeElimination: true,
		ConflictPolicy:            validator.ConflictPolicyWarn,
	}
}

// Validate validates the compiler configuration.
func (c *Config) Validate() error {
	if c.MaxBytecodeSize <= 0 {
		return fmt.Errorf("max_bytecode_size must be positive, got %d", c.MaxBytecodeSize)
	}
	switch c.ConflictPolicy {
	case validator.ConflictPolicyWarn, validator.ConflictPolicyReject:
	default:
		return fmt.Errorf("unknown conflict_policy %q", c.ConflictPolicy)
	}
	return nil
}

// Compiler compiles PDL policies into bytecode programs.
type Compiler struct {
	config    *Config
	parser    *parser.Parser
	validator *validator.Validator
	logger    *slog.Logger
}

// New creates a compiler. A nil config uses DefaultConfig; a nil schema
// uses the built-in schema; a nil logger uses slog.Default.
func New(config *Config, schema *validator.Schema, logger *slog.Logger) (*Compiler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compiler config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		config:    config,
		parser:    parser.NewParser(),
		validator: validator.NewValidator(schema).WithConflictPolicy(config.ConflictPolicy),
		logger:    logger,
	}, nil
}

// CompileFile parses, validates, and compiles the PDL document at path.
func (c *Compiler) CompileFile(path string) (*CompiledPolicy, error) {
	policy, err := c.parser.Parse(path)
	if err != nil {
		return nil, err
	}
	source, err := sourceBytes(path)
	if err != nil {
		return nil, err
	}
	return c.compile(policy, source)
}

// CompileBytes parses, validates, and compiles an in-memory PDL document.
// The sourcePath only labels diagnostics.
func (c *Compiler) CompileBytes(data []byte, sourcePath string) (*CompiledPolicy, error) {
	policy, err := c.parser.ParseBytes(data, sourcePath)
	if err != nil {
		return nil, err
	}
	return c.compile(policy, data)
}

// Compile validates and compiles an already-parsed policy. The source
// hash is derived from the AST's canonical rendering rather than raw
// bytes.
func (c *Compiler) Compile(policy *ast.Policy) (*CompiledPolicy, error) {
	return c.compile(policy, nil)
}

func (c *Compiler) compile(policy *ast.Policy, source []byte) (*CompiledPolicy, error) {
	start := time.Now()

	diags := c.validator.Validate(policy)
	if diags.HasFatal() {
		return nil, diags
	}

	rules, warnings := c.optimize(policy)
	diags.Errors = append(diags.Errors, warnings...)

	code := c.generate(policy, rules)
	if len(code) > c.config.MaxBytecodeSize {
		return nil, &pdlErrors.Error{
			Code:     pdlErrors.CodeSize,
			Severity: pdlErrors.SeverityError,
			Message: fmt.Sprintf("bytecode size %d exceeds maximum %d",
				len(code), c.config.MaxBytecodeSize),
			Location:   policy.Location,
			Suggestion: "split the policy or raise max_bytecode_size",
		}
	}

	compiled := &CompiledPolicy{
		PolicyID:           policy.PolicyID,
		Version:            policy.Version,
		Bytecode:           code,
		DefaultVerdict:     policy.DefaultVerdict,
		ConflictResolution: policy.ConflictResolution,
		Constraints:        policy.Constraints,
		RuleCount:          len(rules),
		CompiledAt:         time.Now().UTC(),
		SourceHash:         hashSource(policy, source),
		Warnings:           diags.Warnings(),
	}

	c.logger.Debug("policy compiled",
		"policy_id", compiled.PolicyID,
		"version", compiled.Version,
		"instructions", len(code),
		"rules", compiled.RuleCount,
		"warnings", len(compiled.Warnings),
		"duration", time.Since(start),
	)

	return compiled, nil
}

// orderRules returns rules sorted by descending priority with declaration
// order breaking ties.
func orderRules(rules []*ast.Rule) []*ast.Rule {
	ordered := make([]*ast.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

// generate emits the bytecode program: an optional selector prologue, one
// section per rule in priority order, and a terminating RET.
//
// Rule sections never short-circuit evaluation. A failed condition jumps
// to the next rule's PUSH_RULE; a taken verdict jumps there too. Verdict
// resolution happens after the whole program runs, in the interpreter.
func (c *Compiler) generate(policy *ast.Policy, rules []*foldedRule) []Instruction {
	var code []Instruction

	// Selector prologue: any failing selector condition skips every rule.
	var selectorJumps []int
	for _, cond := range policy.Selector {
		folded := c.foldCondition(policy, cond)
		if folded.constant && folded.value {
			continue
		}
		code = append(code, c.emitFolded(folded)...)
		code = append(code, Instruction{Op: OpJmpIfFalse})
		selectorJumps = append(selectorJumps, len(code)-1)
	}

	for _, rule := range rules {
		code = append(code, Instruction{Op: OpPushRule, RuleID: rule.src.RuleID})

		// Failed conditions and the taken verdict both resume at the
		// next rule section.
		var exitJumps []int
		for _, folded := range rule.conditions {
			code = append(code, c.emitFolded(folded)...)
			code = append(code, Instruction{Op: OpJmpIfFalse})
			exitJumps = append(exitJumps, len(code)-1)
		}

		switch rule.src.Verdict {
		case ast.VerdictAllow:
			code = append(code, Instruction{Op: OpVerdictAllow})
		case ast.VerdictDeny:
			code = append(code, Instruction{Op: OpVerdictDeny})
		case ast.VerdictEscalate:
			code = append(code, Instruction{Op: OpVerdictEscalate, Escalation: rule.src.Escalation})
		}
		code = append(code, Instruction{Op: OpJmp})
		exitJumps = append(exitJumps, len(code)-1)

		next := len(code)
		for _, idx := range exitJumps {
			code[idx].Target = next
		}
	}

	ret := len(code)
	code = append(code, Instruction{Op: OpRet})
	for _, idx := range selectorJumps {
		code[idx].Target = ret
	}
	return code
}

// emitFolded emits the instructions computing one folded condition's
// boolean. Constant conditions compile to a literal push.
func (c *Compiler) emitFolded(folded foldResult) []Instruction {
	if folded.constant {
		return []Instruction{{Op: OpLoadLiteral, Literal: folded.value}}
	}
	return c.emitCondition(folded.cond)
}

// emitCondition emits the instruction triplet for one folded condition.
// The value is already a resolved literal.
func (c *Compiler) emitCondition(cond *ast.Condition) []Instruction {
	load := Instruction{
		Op:       OpLoadContext,
		Field:    cond.Field,
		Required: c.validator.Schema().IsRequired(cond.Field),
	}

	switch cond.Operator {
	case ast.OperatorMatches:
		pattern, _ := cond.Value.Literal.(string)
		return []Instruction{load, {Op: OpStringMatch, Pattern: pattern}}

	case ast.OperatorIn:
		list, _ := cond.Value.Literal.([]interface{})
		return []Instruction{load, {Op: OpInList, List: list}}

	default:
		lit := Instruction{Op: OpLoadLiteral, Literal: cond.Value.Literal}
		var cmp Opcode
		switch cond.Operator {
		case ast.OperatorEqual:
			cmp = OpCompareEq
		case ast.OperatorNotEqual:
			cmp = OpCompareNe
		case ast.OperatorLessThan:
			cmp = OpCompareLt
		case ast.OperatorGreaterThan:
			cmp = OpCompareGt
		}
		return []Instruction{load, lit, {Op: cmp}}
	}
}
