// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Rule tree compilation.
 *
 * Compiles a types.Node tree into a CompiledNode tree ready for testing
 * against metadata payloads: field paths parsed, condition values coerced to
 * the schema type of their field, group children ordered by ascending cost.
 *
 * Compilation workflow:
 *   1. Enforce structural limits (depth, fan-out, IN list size)
 *   2. Reject shapes the editor would never save (empty groups, unknown
 *      nodes, operator/value mismatches)
 *   3. Parse field paths and coerce values using the category FieldSet
 *   4. Order group children by ascending cost (stable sort)
 *
 * Stable sort keeps equal-cost siblings in authored order so the reported
 * matched fields are identical across runs.
 */

// CompiledNode is a pre-processed rule node.
type CompiledNode struct {
	NodeID    types.NodeID
	Kind      types.NodeKind
	Field     string
	Path      []types.PathSegment
	Operator  types.Operator
	FieldType types.FieldType
	Value     any   // coerced scalar for EQUALS/NOT_EQUALS
	Values    []any // coerced set for IN
	Children  []*CompiledNode
	Cost      int
}

// Compile validates and pre-processes a rule tree.
// fields supplies the schema type of each path; paths it does not know
// compare untyped.
func Compile(node *types.Node, fields types.FieldSet) (*CompiledNode, error) {
	return compileNode(node, fields, 1)
}

func compileNode(node *types.Node, fields types.FieldSet, depth int) (*CompiledNode, error) {
	if depth > types.MaxTreeDepth {
		return nil, types.ErrTreeTooDeep
	}

	switch KindOf(node) {
	case types.KindBase:
		return compileCondition(node, fields)

	case types.KindAnd, types.KindOr:
		if len(node.Children) == 0 {
			return nil, fmt.Errorf("%w: empty %s group", types.ErrInvalidRule, node.Kind)
		}
		if len(node.Children) > types.MaxGroupChildren {
			return nil, types.ErrTooManyChildren
		}

		compiled := &CompiledNode{
			NodeID:   node.ID,
			Kind:     node.Kind,
			Children: make([]*CompiledNode, 0, len(node.Children)),
		}
		for _, child := range node.Children {
			cc, err := compileNode(child, fields, depth+1)
			if err != nil {
				return nil, err
			}
			compiled.Children = append(compiled.Children, cc)
			compiled.Cost += cc.Cost
		}

		sort.SliceStable(compiled.Children, func(i, j int) bool {
			return compiled.Children[i].Cost < compiled.Children[j].Cost
		})
		return compiled, nil

	default:
		return nil, types.ErrUnknownNodeKind
	}
}

// compileCondition parses the field path and coerces the comparison value.
func compileCondition(node *types.Node, fields types.FieldSet) (*CompiledNode, error) {
	if !node.Operator.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidOperator, node.Operator)
	}
	if node.Operator.IsArray() != node.Value.IsList() {
		return nil, fmt.Errorf("%w: operator %s on field %q requires %s value",
			types.ErrInvalidRule, node.Operator, node.Field, valueShape(node.Operator))
	}

	path, err := ParseFieldPath(node.Field)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", node.Field, err)
	}

	ft := fields.TypeOf(node.Field)
	compiled := &CompiledNode{
		NodeID:    node.ID,
		Kind:      types.KindBase,
		Field:     node.Field,
		Path:      path,
		Operator:  node.Operator,
		FieldType: ft,
		Cost:      CalculateConditionCost(path, node.Operator, ft),
	}

	if node.Operator.IsArray() {
		if len(node.Value.List) > types.MaxInOperatorValues {
			return nil, types.ErrTooManyInValues
		}
		compiled.Values = make([]any, 0, len(node.Value.List))
		for _, item := range node.Value.List {
			c, err := Coerce(item, ft)
			if err != nil {
				return nil, fmt.Errorf("field %q value %v: %w", node.Field, item, err)
			}
			compiled.Values = append(compiled.Values, c.Value)
		}
		return compiled, nil
	}

	c, err := Coerce(node.Value.Scalar, ft)
	if err != nil {
		return nil, fmt.Errorf("field %q value %v: %w", node.Field, node.Value.Scalar, err)
	}
	compiled.Value = c.Value
	return compiled, nil
}

func valueShape(op types.Operator) string {
	if op.IsArray() {
		return "a list"
	}
	return "a single"
}
