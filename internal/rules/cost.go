// internal/rules/cost.go
package rules

import "github.com/solatis/ruledesk/internal/types"

/*
 * Cost model for condition evaluation.
 *
 * cost = lookup_cost + (operator_cost * type_multiplier * 8^wildcards)
 *
 * Compile orders the children of every group by ascending cost so rule tests
 * short-circuit on cheap conditions first. A group costs the sum of its
 * children.
 *
 * Wildcard execution multiplier: 8^n reflects worst-case fanout per wildcard.
 * With MaxNestedWildcards=2 the ceiling is 64x.
 */

const (
	// Operator base costs
	CostEquals    = 5
	CostNotEquals = 5
	CostIn        = 8

	// Field lookup cost per key segment
	CostLookupPerSegment = 128

	// Field type multipliers
	MultiplierBool   = 1
	MultiplierNumber = 4
	MultiplierString = 48
	MultiplierAny    = 128
)

// CalculateConditionCost computes cost for a single condition.
func CalculateConditionCost(path []types.PathSegment, op types.Operator, fieldType types.FieldType) int {
	lookupCost := 0
	wildcardCount := 0
	for _, seg := range path {
		if seg.Key != "" && !seg.IsIndex {
			lookupCost += CostLookupPerSegment
		}
		if seg.Wildcard {
			wildcardCount++
		}
	}

	execMult := 1
	for i := 0; i < wildcardCount; i++ {
		execMult *= 8
	}

	return lookupCost + (operatorCost(op) * typeMultiplier(fieldType) * execMult)
}

func operatorCost(op types.Operator) int {
	switch op {
	case types.OpEquals:
		return CostEquals
	case types.OpNotEquals:
		return CostNotEquals
	case types.OpIn:
		return CostIn
	default:
		return CostEquals
	}
}

// typeMultiplier prices string and untyped comparisons above numeric and boolean ones.
func typeMultiplier(ft types.FieldType) int {
	switch ft {
	case types.FieldTypeBoolean:
		return MultiplierBool
	case types.FieldTypeNumber:
		return MultiplierNumber
	case types.FieldTypeString:
		return MultiplierString
	default:
		return MultiplierAny
	}
}
