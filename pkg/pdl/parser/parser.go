package parser

import (
	"fmt"
	"os"

	"mercator-hq/saturn/pkg/pdl/ast"
	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

// Parser parses PDL policy documents into Abstract Syntax Trees.
type Parser struct {
	maxDocumentSize int64 // Maximum document size in bytes
}

// DefaultMaxDocumentSize bounds PDL documents to keep parse time
// predictable (pathological documents are a compile-time DoS vector).
const DefaultMaxDocumentSize = 1 * 1024 * 1024 // 1MB

// NewParser creates a parser with default configuration.
func NewParser() *Parser {
	return &Parser{maxDocumentSize: DefaultMaxDocumentSize}
}

// WithMaxDocumentSize sets the document size limit.
func (p *Parser) WithMaxDocumentSize(size int64) *Parser {
	p.maxDocumentSize = size
	return p
}

// Parse parses the policy document at path and returns its AST.
// It returns an *errors.ErrorList on syntax or structural failure; the AST
// is never partially constructed.
func (p *Parser) Parse(path string) (*ast.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &pdlErrors.Error{
			Code:     pdlErrors.CodeIO,
			Severity: pdlErrors.SeverityError,
			Message:  fmt.Sprintf("failed to access document: %v", err),
			Location: ast.Location{File: path},
		}
	}

	if info.Size() > p.maxDocumentSize {
		return nil, &pdlErrors.Error{
			Code:     pdlErrors.CodeSize,
			Severity: pdlErrors.SeverityError,
			Message:  fmt.Sprintf("document size %d exceeds maximum %d bytes", info.Size(), p.maxDocumentSize),
			Location: ast.Location{File: path},
		}
	}

	yp, err := parseYAMLFile(path)
	if err != nil {
		return nil, &pdlErrors.Error{
			Code:       pdlErrors.CodeSyntax,
			Severity:   pdlErrors.SeverityError,
			Message:    fmt.Sprintf("YAML parsing failed: %v", err),
			Location:   ast.Location{File: path, Line: 1, Column: 1},
			Suggestion: "check YAML syntax (indentation, colons, quotes)",
		}
	}

	return newBuilder(path).buildPolicy(yp)
}

// ParseBytes parses a policy document from memory. sourcePath is used for
// error reporting only.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.Policy, error) {
	if int64(len(data)) > p.maxDocumentSize {
		return nil, &pdlErrors.Error{
			Code:     pdlErrors.CodeSize,
			Severity: pdlErrors.SeverityError,
			Message:  fmt.Sprintf("document size %d exceeds maximum %d bytes", len(data), p.maxDocumentSize),
			Location: ast.Location{File: sourcePath},
		}
	}

	yp, err := parseYAMLBytes(data)
	if err != nil {
		return nil, &pdlErrors.Error{
			Code:       pdlErrors.CodeSyntax,
			Severity:   pdlErrors.SeverityError,
			Message:    fmt.Sprintf("YAML parsing failed: %v", err),
			Location:   ast.Location{File: sourcePath, Line: 1, Column: 1},
			Suggestion: "check YAML syntax (indentation, colons, quotes)",
		}
	}

	return newBuilder(sourcePath).buildPolicy(yp)
}
