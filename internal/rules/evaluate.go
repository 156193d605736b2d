// internal/rules/evaluate.go
package rules

import (
	"encoding/json"

	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Rule testing against JSON metadata.
 *
 * Evaluates a CompiledNode tree against a payload:
 *   - AND: every child must match; stops at the first non-match.
 *   - OR:  the first matching child wins; stops there.
 *   - condition: resolve path -> coerce to field type -> compare. A
 *     wildcard path matches when any element it reaches matches.
 *
 * Missing fields, nulls and values that cannot be coerced never match, for
 * every operator including NOT_EQUALS. A test answers "does this metadata
 * satisfy the rule", and absent metadata satisfies nothing.
 *
 * Children were cost-ordered at compile time, so short-circuiting skips the
 * expensive conditions first.
 */

// MatchedField records one condition that contributed to a match.
type MatchedField struct {
	NodeID types.NodeID `json:"-"`
	Field  string       `json:"field"`
	Path   string       `json:"path"` // resolved path, wildcards replaced
	Value  any          `json:"value"`
}

// MatchResult contains the outcome of a rule test.
type MatchResult struct {
	Matched       bool           `json:"matched"`
	MatchedFields []MatchedField `json:"matchedFields,omitempty"`
	Evaluated     int            `json:"evaluated"` // conditions evaluated before short-circuit
}

// Evaluate checks if the rule matches the given payload.
// Returns an error only when the payload is not valid JSON.
func Evaluate(node *CompiledNode, payload json.RawMessage) (MatchResult, error) {
	var parsed any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return MatchResult{}, err
	}
	return EvaluateValue(node, parsed), nil
}

// EvaluateValue is Evaluate over an already decoded payload.
func EvaluateValue(node *CompiledNode, payload any) MatchResult {
	var result MatchResult
	fields, matched := evaluateNode(node, payload, &result.Evaluated)
	result.Matched = matched
	if matched {
		result.MatchedFields = fields
	}
	return result
}

func evaluateNode(node *CompiledNode, payload any, evaluated *int) ([]MatchedField, bool) {
	switch node.Kind {
	case types.KindBase:
		*evaluated++
		field, ok := evaluateCondition(node, payload)
		if !ok {
			return nil, false
		}
		return []MatchedField{field}, true

	case types.KindAnd:
		var fields []MatchedField
		for _, child := range node.Children {
			childFields, ok := evaluateNode(child, payload, evaluated)
			if !ok {
				return nil, false
			}
			fields = append(fields, childFields...)
		}
		return fields, true

	case types.KindOr:
		for _, child := range node.Children {
			if childFields, ok := evaluateNode(child, payload, evaluated); ok {
				return childFields, true
			}
		}
		return nil, false

	default:
		return nil, false
	}
}

// evaluateCondition orchestrates resolve -> coerce -> compare. With
// wildcards, every resolved element is tried until one matches.
func evaluateCondition(node *CompiledNode, payload any) (MatchedField, bool) {
	if len(node.Path) > types.MaxPathDepth {
		return MatchedField{}, false
	}

	target := node.Value
	if node.Operator == types.OpIn {
		target = node.Values
	}

	var matched MatchedField
	ok := ResolveEach(node.Path, payload, func(resolved ResolveResult) bool {
		value, ok := coerceResolved(resolved.Value, node.FieldType)
		if !ok || !CompareAny(node.Operator, value, target) {
			return false
		}
		matched = MatchedField{
			NodeID: node.NodeID,
			Field:  node.Field,
			Path:   types.JoinPath(resolved.ResolvedPath),
			Value:  resolved.Value,
		}
		return true
	})
	return matched, ok
}

// coerceResolved coerces a scalar, or each element of an array value.
// Elements that fail coercion are dropped; an array with none left fails.
func coerceResolved(value any, ft types.FieldType) (any, bool) {
	if elems, ok := value.([]any); ok {
		out := make([]any, 0, len(elems))
		for _, elem := range elems {
			c, err := Coerce(elem, ft)
			if err != nil || c.IsNull {
				continue
			}
			out = append(out, c.Value)
		}
		return out, len(out) > 0
	}

	c, err := Coerce(value, ft)
	if err != nil || c.IsNull {
		return nil, false
	}
	return c.Value, true
}
