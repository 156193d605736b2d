// internal/types/rules.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

/*
 * Rule tree domain types.
 *
 * A rule is a recursive tagged union: a base condition (field, operator,
 * value) or an AND/OR group holding an ordered, non-empty list of children.
 * The tag is decided once, at construction or decode time, and carried in
 * Node.Kind; nothing downstream inspects key presence again.
 *
 * JSON shape (must round-trip losslessly):
 *   - base:  {"field": "metadata.name", "operator": "EQUALS", "value": "x"}
 *   - group: {"AND": [ ... ]} / {"OR": [ ... ]}
 *
 * Objects matching none of the shapes decode to KindUnknown with their raw
 * bytes preserved, so a malformed stored rule can still be listed, rendered
 * as a placeholder and re-saved without data loss.
 *
 * Node IDs are never serialized. Decoding assigns fresh IDs.
 */

// Operator is a comparison operator of a base condition.
type Operator string

const (
	OpEquals    Operator = "EQUALS"
	OpNotEquals Operator = "NOT_EQUALS"
	OpIn        Operator = "IN"
)

// AllOperators returns every operator in canonical order.
func AllOperators() []Operator {
	return []Operator{OpEquals, OpNotEquals, OpIn}
}

// ParseOperator converts a string to a known Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToUpper(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
	return op, nil
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpIn:
		return true
	default:
		return false
	}
}

// IsArray reports whether op takes a list value.
func (op Operator) IsArray() bool {
	return op == OpIn
}

// NodeKind is the explicit tag of a rule node.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindBase
	KindAnd
	KindOr
)

// String returns the label used in views and logs.
func (k NodeKind) String() string {
	switch k {
	case KindBase:
		return "BASE"
	case KindAnd:
		return "AND"
	case KindOr:
		return "OR"
	default:
		return "UNKNOWN"
	}
}

// IsGroup reports whether k is AND or OR.
func (k NodeKind) IsGroup() bool {
	return k == KindAnd || k == KindOr
}

// Value is the comparison value of a base condition.
// Scalar holds a string, float64 or bool. When Multi is set the value is the
// list in List (never nil after construction) and Scalar is ignored.
type Value struct {
	Scalar any
	List   []any
	Multi  bool
}

// ScalarValue builds a scalar value, normalizing integers to float64 so values
// compare equal before and after a JSON round trip.
func ScalarValue(v any) Value {
	return Value{Scalar: normalizeScalar(v)}
}

// ListValue builds a list value; no items yields an empty list.
func ListValue(items ...any) Value {
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, normalizeScalar(it))
	}
	return Value{List: list, Multi: true}
}

// IsList reports whether the value is a list.
func (v Value) IsList() bool {
	return v.Multi
}

// Items returns the list elements, or the scalar as a one-element list when
// it is non-empty.
func (v Value) Items() []any {
	if v.Multi {
		return v.List
	}
	if v.IsEmpty() {
		return nil
	}
	return []any{v.Scalar}
}

// IsEmpty reports whether the value carries nothing a user typed.
func (v Value) IsEmpty() bool {
	if v.Multi {
		return len(v.List) == 0
	}
	if v.Scalar == nil {
		return true
	}
	s, ok := v.Scalar.(string)
	return ok && s == ""
}

// String renders the value for views.
func (v Value) String() string {
	if v.Multi {
		parts := make([]string, len(v.List))
		for i, it := range v.List {
			parts[i] = fmt.Sprintf("%v", it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if v.Scalar == nil {
		return ""
	}
	return fmt.Sprintf("%v", v.Scalar)
}

// MarshalJSON implements json.Marshaler.
// Lists always encode as arrays (never null) to keep the IN shape stable.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Multi {
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Scalar)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if list, ok := raw.([]any); ok {
		*v = Value{List: list, Multi: true}
		return nil
	}
	*v = Value{Scalar: raw}
	return nil
}

func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// Node is one node of a rule tree.
// Base conditions use Field/Operator/Value, groups use Children.
// Raw keeps the original bytes of a KindUnknown node.
type Node struct {
	ID       NodeID
	Kind     NodeKind
	Field    string
	Operator Operator
	Value    Value
	Children []*Node
	Raw      json.RawMessage
}

// baseWire is the JSON shape of a base condition. Field order is fixed so
// serialized rules diff cleanly.
type baseWire struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	switch n.Kind {
	case KindBase:
		return json.Marshal(baseWire{Field: n.Field, Operator: n.Operator, Value: n.Value})
	case KindAnd, KindOr:
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		return json.Marshal(map[string][]*Node{n.Kind.String(): children})
	default:
		if len(n.Raw) > 0 {
			return n.Raw, nil
		}
		return []byte("{}"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
// Discriminates by key presence exactly once: "field" -> base, "AND" -> and,
// "OR" -> or, anything else -> unknown with raw bytes preserved.
func (n *Node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		// Non-object JSON (string, number, array) is an unknown node, not a decode failure.
		var probe any
		if err2 := json.Unmarshal(trimmed, &probe); err2 != nil {
			return err
		}
		*n = Node{ID: NewNodeID(), Kind: KindUnknown, Raw: append(json.RawMessage(nil), trimmed...)}
		return nil
	}

	if _, ok := keys["field"]; ok {
		var w baseWire
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return fmt.Errorf("decode condition: %w", err)
		}
		*n = Node{ID: NewNodeID(), Kind: KindBase, Field: w.Field, Operator: w.Operator, Value: w.Value}
		return nil
	}

	for _, kind := range []NodeKind{KindAnd, KindOr} {
		raw, ok := keys[kind.String()]
		if !ok {
			continue
		}
		var children []*Node
		if err := json.Unmarshal(raw, &children); err != nil {
			return fmt.Errorf("decode %s group: %w", kind, err)
		}
		*n = Node{ID: NewNodeID(), Kind: kind, Children: children}
		return nil
	}

	*n = Node{ID: NewNodeID(), Kind: KindUnknown, Raw: append(json.RawMessage(nil), trimmed...)}
	return nil
}

// ParseNode decodes a rule tree from its JSON shape.
func ParseNode(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// PathSegment is one step of a resolved field path: an object key, an array
// index or a wildcard matching any element.
type PathSegment struct {
	Key      string
	Index    int
	IsIndex  bool
	Wildcard bool
}

// String renders the segment as it appears in a dot path.
func (s PathSegment) String() string {
	switch {
	case s.Wildcard:
		return "*"
	case s.IsIndex:
		return fmt.Sprintf("%d", s.Index)
	default:
		return s.Key
	}
}

// JoinPath renders segments as a dot path.
func JoinPath(path []PathSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}
