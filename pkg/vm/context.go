package vm

// EvaluationContext is the read-only attribute map one evaluation runs
// against. Keys are dot-separated paths (agent.id, resource.sensitivity,
// context.ticket); values are strings, float64 numbers, booleans, or
// lists of those.
type EvaluationContext struct {
	values map[string]interface{}
}

// NewEvaluationContext creates an empty context.
func NewEvaluationContext() *EvaluationContext {
	return &EvaluationContext{values: make(map[string]interface{})}
}

// FromMap creates a context from an existing path-value map. Integer
// values are normalized to float64 to match compiled literals.
func FromMap(values map[string]interface{}) *EvaluationContext {
	ec := NewEvaluationContext()
	for path, value := range values {
		ec.Set(path, value)
	}
	return ec
}

// Set stores a value under a path, normalizing integer types to float64.
func (ec *EvaluationContext) Set(path string, value interface{}) {
	ec.values[path] = normalize(value)
}

// Get returns the value at a path and whether it is present.
func (ec *EvaluationContext) Get(path string) (interface{}, bool) {
	value, ok := ec.values[path]
	return value, ok
}

// Len returns the number of populated paths.
func (ec *EvaluationContext) Len() int {
	return len(ec.values)
}

func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = normalize(elem)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = elem
		}
		return out
	default:
		return value
	}
}
