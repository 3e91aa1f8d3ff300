package ast

import "fmt"

// Location is the source position of an AST node in the original PDL
// document. It enables precise error reporting with file, line, and column.
type Location struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
}

// String returns "file:line:column", or "<unknown>" when unset.
func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid returns true if the location carries file and line information.
func (l Location) IsValid() bool {
	return l.File != "" && l.Line > 0
}
