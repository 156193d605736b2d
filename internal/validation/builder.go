// Package validation derives structural validators for rule trees from a
// category's field schema and a destination's allowed operators.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Validator construction.
 *
 * Build turns (field set, allowed operators) into a tree validator:
 *   1. Operators split into single-value (EQUALS, NOT_EQUALS) and
 *      array-value (IN) partitions.
 *   2. Every known path gets one condition shape per non-empty partition:
 *      literal field, operator within the partition, value typed by the
 *      field (number, boolean, non-empty string; IN takes a non-empty
 *      list of those).
 *   3. Shapes are unioned. A node is valid when it matches a shape, or is
 *      {AND: [node, min 1]} / {OR: [node, min 1]} recursively.
 *   4. No known paths: a permissive shape accepts any field string, an
 *      allowed operator, and a string or list of strings.
 *
 * A single shape is used directly instead of wrapping it in a union.
 *
 * Union failures are reported at field level: an unknown field blames
 * "field", a known field with a disallowed operator blames "operator",
 * and otherwise the closest shape's value errors are reported.
 */

// conditionMatcher validates one condition node, writing errors relative to
// the node ("field", "operator", "value", "value.0").
type conditionMatcher interface {
	check(n *types.Node, errs FieldErrors)
}

// Validator validates rule trees. Immutable once built; safe for concurrent use.
type Validator struct {
	operators []types.Operator
	condition conditionMatcher
	shapes    int
}

// Build compiles a validator for fields and operators. An empty operator
// list means every operator is allowed.
func Build(fields types.FieldSet, operators []types.Operator) *Validator {
	if len(operators) == 0 {
		operators = types.AllOperators()
	}
	ops := append([]types.Operator(nil), operators...)

	var single, array []types.Operator
	for _, op := range ops {
		if op.IsArray() {
			array = append(array, op)
		} else {
			single = append(single, op)
		}
	}

	if fields.Empty() {
		return &Validator{operators: ops, condition: permissiveShape{operators: ops}, shapes: 1}
	}

	var shapes []conditionShape
	for _, path := range fields.Paths {
		ft := fields.TypeOf(path)
		if len(single) > 0 {
			shapes = append(shapes, conditionShape{field: path, operators: single, fieldType: ft})
		}
		if len(array) > 0 {
			shapes = append(shapes, conditionShape{field: path, operators: array, array: true, fieldType: ft})
		}
	}

	v := &Validator{operators: ops, shapes: len(shapes)}
	if len(shapes) == 1 {
		v.condition = shapes[0]
	} else {
		v.condition = newShapeUnion(shapes, ops)
	}
	return v
}

// Operators returns the operators the validator accepts.
func (v *Validator) Operators() []types.Operator {
	return append([]types.Operator(nil), v.operators...)
}

// ShapeCount returns the number of condition shapes in the union.
func (v *Validator) ShapeCount() int { return v.shapes }

// TreeResult is the outcome of validating a tree.
type TreeResult struct {
	// Errors holds every error keyed by dotted path from the tree root.
	Errors FieldErrors
	// Nodes holds each node's own errors keyed relative to the node. Nodes
	// without errors are absent.
	Nodes map[types.NodeID]FieldErrors
}

// Valid reports whether the tree had no errors.
func (r TreeResult) Valid() bool { return len(r.Errors) == 0 }

// Validate returns field errors for the tree rooted at n.
func (v *Validator) Validate(n *types.Node) FieldErrors {
	return v.ValidateTree(n).Errors
}

// ValidateTree validates n and also reports errors per node id.
func (v *Validator) ValidateTree(n *types.Node) TreeResult {
	res := TreeResult{Errors: FieldErrors{}, Nodes: map[types.NodeID]FieldErrors{}}
	v.validateNode(n, "", 0, res)
	return res
}

func (v *Validator) validateNode(n *types.Node, prefix string, depth int, res TreeResult) {
	own := FieldErrors{}
	defer func() {
		if len(own) > 0 && n != nil {
			res.Nodes[n.ID] = own
		}
		res.Errors.merge(prefix, own)
	}()

	if n == nil {
		own.add("", "rule is required")
		return
	}
	if depth >= types.MaxTreeDepth {
		own.add("", fmt.Sprintf("rule is nested deeper than %d levels", types.MaxTreeDepth))
		return
	}

	switch n.Kind {
	case types.KindBase:
		v.condition.check(n, own)

	case types.KindAnd, types.KindOr:
		key := n.Kind.String()
		switch {
		case len(n.Children) == 0:
			own.add(key, "must contain at least 1 rule")
		case len(n.Children) > types.MaxGroupChildren:
			own.add(key, fmt.Sprintf("must contain at most %d rules", types.MaxGroupChildren))
		}
		for i, child := range n.Children {
			v.validateNode(child, joinPath(prefix, key+"."+strconv.Itoa(i)), depth+1, res)
		}

	default:
		own.add("", "Unknown rule type")
	}
}

// conditionShape is one (field, operator partition) combination.
type conditionShape struct {
	field     string
	operators []types.Operator
	array     bool
	fieldType types.FieldType
}

func (s conditionShape) check(n *types.Node, errs FieldErrors) {
	if n.Field != s.field {
		errs.add("field", fmt.Sprintf("expected %q", s.field))
		return
	}
	if !containsOperator(s.operators, n.Operator) {
		errs.add("operator", operatorMessage(n.Operator, s.operators))
		return
	}
	s.checkValue(n.Value, errs)
}

func (s conditionShape) checkValue(v types.Value, errs FieldErrors) {
	if !s.array {
		if v.IsList() {
			errs.add("value", "expected "+typeLabel(s.fieldType)+", received array")
			return
		}
		if msg := checkScalar(v.Scalar, s.fieldType); msg != "" {
			errs.add("value", msg)
		}
		return
	}

	if !v.IsList() {
		errs.add("value", "expected array, received "+jsonTypeName(v.Scalar))
		return
	}
	switch {
	case len(v.List) == 0:
		errs.add("value", "must contain at least 1 value")
		return
	case len(v.List) > types.MaxInOperatorValues:
		errs.add("value", fmt.Sprintf("must contain at most %d values", types.MaxInOperatorValues))
		return
	}
	for i, item := range v.List {
		if msg := checkScalar(item, s.fieldType); msg != "" {
			errs.add("value."+strconv.Itoa(i), msg)
		}
	}
}

// checkScalar returns a message when x does not fit ft, or "".
func checkScalar(x any, ft types.FieldType) string {
	switch ft {
	case types.FieldTypeNumber:
		if _, ok := x.(float64); !ok {
			return "expected number, received " + jsonTypeName(x)
		}
	case types.FieldTypeBoolean:
		if _, ok := x.(bool); !ok {
			return "expected boolean, received " + jsonTypeName(x)
		}
	default:
		s, ok := x.(string)
		if !ok {
			return "expected string, received " + jsonTypeName(x)
		}
		if strings.TrimSpace(s) == "" {
			return "value is required"
		}
	}
	return ""
}

// shapeUnion matches a condition against every shape, indexed by field.
type shapeUnion struct {
	byField   map[string][]conditionShape
	operators []types.Operator
}

func newShapeUnion(shapes []conditionShape, ops []types.Operator) shapeUnion {
	u := shapeUnion{byField: make(map[string][]conditionShape), operators: ops}
	for _, s := range shapes {
		u.byField[s.field] = append(u.byField[s.field], s)
	}
	return u
}

func (u shapeUnion) check(n *types.Node, errs FieldErrors) {
	candidates, ok := u.byField[n.Field]
	if !ok {
		if strings.TrimSpace(n.Field) == "" {
			errs.add("field", "field is required")
		} else {
			errs.add("field", fmt.Sprintf("unknown field %q", n.Field))
		}
		// Operator problems are still worth reporting for an unknown field.
		if !containsOperator(u.operators, n.Operator) {
			errs.add("operator", operatorMessage(n.Operator, u.operators))
		}
		return
	}
	for _, s := range candidates {
		if containsOperator(s.operators, n.Operator) {
			s.checkValue(n.Value, errs)
			return
		}
	}
	errs.add("operator", operatorMessage(n.Operator, u.operators))
}

// permissiveShape is used when the category schema has no known paths.
type permissiveShape struct {
	operators []types.Operator
}

func (p permissiveShape) check(n *types.Node, errs FieldErrors) {
	if !containsOperator(p.operators, n.Operator) {
		errs.add("operator", operatorMessage(n.Operator, p.operators))
	}
	if !n.Value.IsList() {
		if _, ok := n.Value.Scalar.(string); !ok {
			errs.add("value", "expected string or array of strings, received "+jsonTypeName(n.Value.Scalar))
		}
		return
	}
	for i, item := range n.Value.List {
		if _, ok := item.(string); !ok {
			errs.add("value."+strconv.Itoa(i), "expected string, received "+jsonTypeName(item))
		}
	}
}

func containsOperator(ops []types.Operator, op types.Operator) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func operatorMessage(op types.Operator, allowed []types.Operator) string {
	names := make([]string, len(allowed))
	for i, o := range allowed {
		names[i] = "'" + string(o) + "'"
	}
	if op == "" {
		return "operator is required"
	}
	return fmt.Sprintf("invalid operator '%s', expected %s", op, strings.Join(names, " | "))
}

func typeLabel(ft types.FieldType) string {
	switch ft {
	case types.FieldTypeNumber:
		return "number"
	case types.FieldTypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

func jsonTypeName(x any) string {
	switch x.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", x)
	}
}
