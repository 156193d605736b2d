// internal/rules/operators.go
package rules

import "github.com/solatis/ruledesk/internal/types"

/*
 * Operator comparison logic.
 *
 * Values reaching Compare are already coerced to the field type.
 *
 * Operators:
 *   - EQUALS / NOT_EQUALS: equality with numeric tolerance (cost 5)
 *   - IN: membership with equality semantics (cost 8)
 *
 * Array-valued metadata (schema arrays such as tags) uses ANY semantics:
 * EQUALS and IN match when some element matches, NOT_EQUALS matches when no
 * element equals the target. CompareAny implements that expansion.
 */

// Compare applies the operator to compare value against target.
// For IN, target is the []any set.
func Compare(op types.Operator, value, target any) bool {
	switch op {
	case types.OpEquals:
		return compareEqual(value, target)
	case types.OpNotEquals:
		return !compareEqual(value, target)
	case types.OpIn:
		return compareIn(value, target)
	default:
		return false
	}
}

// CompareAny applies op to each element of an array value.
// Non-array values are compared directly.
func CompareAny(op types.Operator, value, target any) bool {
	elems, ok := value.([]any)
	if !ok {
		return Compare(op, value, target)
	}
	if op == types.OpNotEquals {
		for _, elem := range elems {
			if compareEqual(elem, target) {
				return false
			}
		}
		return true
	}
	for _, elem := range elems {
		if Compare(op, elem, target) {
			return true
		}
	}
	return false
}

// compareEqual performs equality comparison with numeric type coercion.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	switch a.(type) {
	case map[string]any, []any:
		// uncomparable dynamic types would panic on ==
		return false
	}
	switch b.(type) {
	case map[string]any, []any:
		return false
	}
	return a == b
}

// asNumbers converts both values to float64 when both are numeric.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareIn checks if value exists in set using equality semantics.
func compareIn(value, set any) bool {
	arr, ok := set.([]any)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}
