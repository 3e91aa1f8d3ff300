package vm

import (
	"fmt"
	"time"
)

// TimeoutError reports that the evaluation deadline expired before the
// program finished.
type TimeoutError struct {
	PolicyID string
	Elapsed  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("evaluation of policy %q timed out after %v", e.PolicyID, e.Elapsed)
}

// MissingFieldError reports that a field the type checker guaranteed
// present was absent at runtime. This is a data contract violation, not a
// non-match.
type MissingFieldError struct {
	PolicyID string
	Field    string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required context field %q missing during evaluation of policy %q",
		e.Field, e.PolicyID)
}

// CorruptProgramError reports a structurally invalid program: stack
// underflow, an out-of-range jump target, or an unknown opcode. It
// indicates a compiler bug or corrupted cache entry, never bad input data.
type CorruptProgramError struct {
	PolicyID string
	IP       int
	Detail   string
}

// Error implements the error interface.
func (e *CorruptProgramError) Error() string {
	return fmt.Sprintf("corrupt program for policy %q at instruction %d: %s",
		e.PolicyID, e.IP, e.Detail)
}
