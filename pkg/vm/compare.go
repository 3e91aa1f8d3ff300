package vm

import (
	"reflect"

	"mercator-hq/saturn/pkg/compiler"
)

// compare evaluates a binary comparison opcode over two operands. The
// fault flag reports a type mismatch the compiler could not rule out
// (dynamic context paths); a fault always yields false. Comparisons
// against the missing sentinel are false without being faults.
func compare(op compiler.Opcode, a, b interface{}) (bool, bool) {
	if isMissing(a) || isMissing(b) {
		return false, false
	}

	switch op {
	case compiler.OpCompareEq:
		eq, fault := equalValues(a, b)
		return eq, fault
	case compiler.OpCompareNe:
		eq, fault := equalValues(a, b)
		if fault {
			return false, true
		}
		return !eq, false
	case compiler.OpCompareLt:
		an, aok := a.(float64)
		bn, bok := b.(float64)
		if !aok || !bok {
			return false, true
		}
		return an < bn, false
	case compiler.OpCompareGt:
		an, aok := a.(float64)
		bn, bok := b.(float64)
		if !aok || !bok {
			return false, true
		}
		return an > bn, false
	default:
		return false, true
	}
}

// equalValues compares two context values. Mixed scalar types are a
// fault rather than silently unequal, so dynamic-path typos surface in
// the trace as faulted rules.
func equalValues(a, b interface{}) (bool, bool) {
	if a == nil || b == nil {
		return a == nil && b == nil, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, true
		}
		return av == bv, false
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false, true
		}
		return av == bv, false
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, true
		}
		return av == bv, false
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok {
			return false, true
		}
		return reflect.DeepEqual(av, bv), false
	default:
		return false, true
	}
}

// inList reports membership of a scalar in a literal list. Missing values
// and faulty elements never match.
func inList(value interface{}, list []interface{}) bool {
	if isMissing(value) {
		return false
	}
	for _, elem := range list {
		if eq, fault := equalValues(value, elem); eq && !fault {
			return true
		}
	}
	return false
}
