package validator

import (
	"strings"

	"mercator-hq/saturn/pkg/pdl/ast"
)

// TypeAny marks a schema field whose type is not statically known.
// Comparisons against such fields are checked at runtime only.
const TypeAny ast.ValueType = "any"

// FieldSpec declares one attribute path in the schema.
type FieldSpec struct {
	// Type is the declared value type (TypeAny when dynamic).
	Type ast.ValueType

	// Required fields are guaranteed present in every evaluation context
	// by the caller's data contract. A required field missing at runtime
	// is an evaluation error; an optional field missing at runtime makes
	// the condition non-matching.
	Required bool
}

// Schema declares the attribute paths a policy may reference. Every
// condition field must resolve here; unresolved fields fail compilation.
type Schema struct {
	// Fields maps exact attribute paths to their specs.
	Fields map[string]FieldSpec

	// DynamicPrefixes are path prefixes under which any suffix resolves
	// with TypeAny (e.g. "context." for caller-supplied attributes).
	DynamicPrefixes []string
}

// DefaultSchema returns the attribute schema for evaluation requests:
// requester, operation, resource, time, and free-form context attributes.
func DefaultSchema() *Schema {
	return &Schema{
		Fields: map[string]FieldSpec{
			"agent.id":             {Type: ast.ValueTypeString, Required: true},
			"agent.team":           {Type: ast.ValueTypeString},
			"agent.roles":          {Type: ast.ValueTypeList},
			"operation":            {Type: ast.ValueTypeString, Required: true},
			"resource.id":          {Type: ast.ValueTypeString, Required: true},
			"resource.type":        {Type: ast.ValueTypeString, Required: true},
			"resource.sensitivity": {Type: ast.ValueTypeString},
			"resource.tags":        {Type: ast.ValueTypeList},
			"time.hour":            {Type: ast.ValueTypeNumber, Required: true},
			"time.weekday":         {Type: ast.ValueTypeNumber, Required: true},
			"time.unix":            {Type: ast.ValueTypeNumber, Required: true},
		},
		DynamicPrefixes: []string{"context."},
	}
}

// Resolve looks up a field path. The ok flag is false for undeclared paths.
func (s *Schema) Resolve(path string) (FieldSpec, bool) {
	if spec, ok := s.Fields[path]; ok {
		return spec, true
	}
	for _, prefix := range s.DynamicPrefixes {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return FieldSpec{Type: TypeAny}, true
		}
	}
	return FieldSpec{}, false
}

// IsRequired returns true if the path is declared required.
func (s *Schema) IsRequired(path string) bool {
	spec, ok := s.Fields[path]
	return ok && spec.Required
}

// DeclaredPaths returns all exactly-declared paths, for suggestions in
// error messages.
func (s *Schema) DeclaredPaths() []string {
	paths := make([]string, 0, len(s.Fields))
	for path := range s.Fields {
		paths = append(paths, path)
	}
	return paths
}
