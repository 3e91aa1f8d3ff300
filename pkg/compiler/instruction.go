package compiler

import (
	"fmt"
	"time"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// Opcode identifies a bytecode instruction variant. The set is closed:
// the interpreter dispatches over it exhaustively and anything outside it
// is a corrupt program.
type Opcode uint8

const (
	// OpLoadContext pushes the context value at Field, or the missing
	// sentinel when the path is absent.
	OpLoadContext Opcode = iota

	// OpLoadLiteral pushes Literal.
	OpLoadLiteral

	// OpCompareEq pops two values and pushes their equality.
	OpCompareEq

	// OpCompareNe pops two values and pushes their inequality.
	OpCompareNe

	// OpCompareLt pops two numbers a, b and pushes a < b.
	OpCompareLt

	// OpCompareGt pops two numbers a, b and pushes a > b.
	OpCompareGt

	// OpStringMatch pops a string and pushes whether it matches the
	// instruction's wildcard Pattern.
	OpStringMatch

	// OpInList pops a value and pushes whether it occurs in List.
	OpInList

	// OpPushRule opens the condition block for RuleID. Every rule section
	// begins with one; reaching it records a trace entry for the rule.
	OpPushRule

	// OpJmpIfFalse pops a boolean and jumps to Target when it is false.
	OpJmpIfFalse

	// OpJmp jumps to Target unconditionally.
	OpJmp

	// OpVerdictAllow marks the current rule matched with verdict Allow.
	OpVerdictAllow

	// OpVerdictDeny marks the current rule matched with verdict Deny.
	OpVerdictDeny

	// OpVerdictEscalate marks the current rule matched with verdict
	// Escalate, carrying Escalation.
	OpVerdictEscalate

	// OpRet ends the program.
	OpRet
)

// String returns the mnemonic for an opcode.
func (op Opcode) String() string {
	switch op {
	case OpLoadContext:
		return "LOAD_CONTEXT"
	case OpLoadLiteral:
		return "LOAD_LITERAL"
	case OpCompareEq:
		return "COMPARE_EQ"
	case OpCompareNe:
		return "COMPARE_NE"
	case OpCompareLt:
		return "COMPARE_LT"
	case OpCompareGt:
		return "COMPARE_GT"
	case OpStringMatch:
		return "STRING_MATCH"
	case OpInList:
		return "IN_LIST"
	case OpPushRule:
		return "PUSH_RULE"
	case OpJmpIfFalse:
		return "JMP_IF_FALSE"
	case OpJmp:
		return "JMP"
	case OpVerdictAllow:
		return "VERDICT_ALLOW"
	case OpVerdictDeny:
		return "VERDICT_DENY"
	case OpVerdictEscalate:
		return "VERDICT_ESCALATE"
	case OpRet:
		return "RET"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(op))
	}
}

// Instruction is one bytecode instruction. Only the operand fields
// relevant to the opcode are populated; the rest stay zero.
type Instruction struct {
	Op Opcode

	// Field is the context path for OpLoadContext. Required marks paths
	// the type checker guaranteed present: a missing required path is a
	// data contract violation rather than a non-match.
	Field    string
	Required bool

	// Literal is the operand for OpLoadLiteral.
	Literal interface{}

	// Pattern is the wildcard pattern for OpStringMatch.
	Pattern string

	// List is the membership operand for OpInList.
	List []interface{}

	// RuleID is the operand for OpPushRule.
	RuleID string

	// Target is the absolute instruction index for OpJmp and OpJmpIfFalse.
	Target int

	// Escalation carries the parameters for OpVerdictEscalate.
	Escalation *ast.Escalation
}

// String renders an instruction for disassembly output.
func (in Instruction) String() string {
	switch in.Op {
	case OpLoadContext:
		return fmt.Sprintf("%s %s", in.Op, in.Field)
	case OpLoadLiteral:
		return fmt.Sprintf("%s %v", in.Op, in.Literal)
	case OpStringMatch:
		return fmt.Sprintf("%s %q", in.Op, in.Pattern)
	case OpInList:
		return fmt.Sprintf("%s %v", in.Op, in.List)
	case OpPushRule:
		return fmt.Sprintf("%s %s", in.Op, in.RuleID)
	case OpJmpIfFalse, OpJmp:
		return fmt.Sprintf("%s %d", in.Op, in.Target)
	default:
		return in.Op.String()
	}
}

// CompiledPolicy is the immutable output of a successful compilation.
type CompiledPolicy struct {
	PolicyID string
	Version  string

	// Bytecode is the linear instruction sequence. Index 0 is the entry
	// point; the program always ends with OpRet.
	Bytecode []Instruction

	// DefaultVerdict applies when no rule matches.
	DefaultVerdict ast.Verdict

	// ConflictResolution is the declared strategy; deny-wins is the only
	// supported strategy and also the behavior when unset.
	ConflictResolution ast.ConflictResolution

	// Constraints are carried through for the enforcer; they are not
	// part of the bytecode program.
	Constraints []*ast.Constraint

	// RuleCount is the number of rule sections emitted after elimination.
	RuleCount int

	CompiledAt time.Time

	// SourceHash is the SHA-256 of the source document, hex encoded.
	SourceHash string

	// Warnings are non-fatal diagnostics accumulated during compilation.
	Warnings []*pdlErrors.Error
}

// CacheKey derives the cache identity for this compiled policy.
func (cp *CompiledPolicy) CacheKey() string {
	return cp.PolicyID + "@" + cp.Version
}

// Disassemble renders the program one instruction per line, prefixed with
// its index. Intended for debugging and the CLI inspect path.
func (cp *CompiledPolicy) Disassemble() string {
	out := ""
	for i, in := range cp.Bytecode {
		out += fmt.Sprintf("%04d  %s\n", i, in)
	}
	return out
}
