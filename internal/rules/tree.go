// internal/rules/tree.go
package rules

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Rule tree classification, construction and functional updates.
 *
 * Trees are immutable once built: every update returns a new root that
 * copies the nodes on the path from the root to the edit and shares every
 * untouched subtree. Snapshots held by History therefore never change under
 * an editor.
 *
 * Nodes are addressed by their stable NodeID rather than by position, so a
 * deletion elsewhere in the tree never invalidates a caller's handle.
 *
 * Empty groups are not representable through these functions. Deleting the
 * sole child of a group removes the group from its parent, recursively; when
 * the removal reaches the root, the root resets to an empty condition.
 */

// KindOf returns the node's tag. Nil nodes and unrecognized shapes are
// KindUnknown.
func KindOf(n *types.Node) types.NodeKind {
	if n == nil {
		return types.KindUnknown
	}
	switch n.Kind {
	case types.KindBase, types.KindAnd, types.KindOr:
		return n.Kind
	default:
		return types.KindUnknown
	}
}

// NewBase returns the canonical empty condition: no field, EQUALS, "".
func NewBase() *types.Node {
	return &types.Node{
		ID:       types.NewNodeID(),
		Kind:     types.KindBase,
		Operator: types.OpEquals,
		Value:    types.ScalarValue(""),
	}
}

// NewAnd returns an AND group wrapping one empty condition.
func NewAnd() *types.Node {
	return NewGroup(types.KindAnd, NewBase())
}

// NewOr returns an OR group wrapping one empty condition.
func NewOr() *types.Node {
	return NewGroup(types.KindOr, NewBase())
}

// NewCondition builds a condition node. The value is wrapped or unwrapped to
// match the operator shape.
func NewCondition(field string, op types.Operator, value types.Value) *types.Node {
	n := &types.Node{
		ID:       types.NewNodeID(),
		Kind:     types.KindBase,
		Field:    field,
		Operator: op,
		Value:    value,
	}
	n.Value = coupleValue(op, value)
	return n
}

// NewGroup builds an AND or OR group over children.
// Panics if kind is not a group kind; callers pass constants.
func NewGroup(kind types.NodeKind, children ...*types.Node) *types.Node {
	if !kind.IsGroup() {
		panic(fmt.Sprintf("rules: NewGroup called with %s", kind))
	}
	out := make([]*types.Node, len(children))
	copy(out, children)
	return &types.Node{ID: types.NewNodeID(), Kind: kind, Children: out}
}

// Clone returns a deep copy sharing no storage with n. IDs are preserved:
// they identify positions of one logical tree across history snapshots.
func Clone(n *types.Node) *types.Node {
	if n == nil {
		return nil
	}
	out := &types.Node{
		ID:       n.ID,
		Kind:     n.Kind,
		Field:    n.Field,
		Operator: n.Operator,
		Value:    cloneValue(n.Value),
	}
	if n.Raw != nil {
		out.Raw = append([]byte(nil), n.Raw...)
	}
	if n.Children != nil {
		out.Children = make([]*types.Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = Clone(child)
		}
	}
	return out
}

func cloneValue(v types.Value) types.Value {
	out := types.Value{Scalar: v.Scalar, Multi: v.Multi}
	if v.List != nil {
		out.List = append([]any(nil), v.List...)
	}
	return out
}

var equalOpts = cmp.Options{
	cmpopts.IgnoreFields(types.Node{}, "ID"),
	cmpopts.EquateEmpty(),
}

// Equal reports deep value equality, ignoring node IDs.
func Equal(a, b *types.Node) bool {
	return cmp.Equal(a, b, equalOpts)
}

// Diff returns a human-readable difference between two trees, ignoring IDs.
func Diff(a, b *types.Node) string {
	return cmp.Diff(a, b, equalOpts)
}

// Promote wraps a condition as the sole child of a new group of kind.
// The condition keeps its ID and content.
func Promote(leaf *types.Node, kind types.NodeKind) (*types.Node, error) {
	if KindOf(leaf) != types.KindBase {
		return nil, types.ErrNotACondition
	}
	if !kind.IsGroup() {
		return nil, fmt.Errorf("%w: cannot promote to %s", types.ErrNotAGroup, kind)
	}
	return NewGroup(kind, leaf), nil
}

// Find returns the node with id, or nil.
func Find(root *types.Node, id types.NodeID) *types.Node {
	var found *types.Node
	Walk(root, func(n *types.Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// ParentOf returns the group containing id and the child's index.
// ok is false when id is the root or absent.
func ParentOf(root *types.Node, id types.NodeID) (parent *types.Node, index int, ok bool) {
	Walk(root, func(n *types.Node, _ int) bool {
		if ok {
			return false
		}
		for i, child := range n.Children {
			if child != nil && child.ID == id {
				parent, index, ok = n, i, true
				return false
			}
		}
		return true
	})
	return parent, index, ok
}

// Walk visits nodes in pre-order with their depth (root = 0).
// Returning false from fn skips the node's children.
func Walk(root *types.Node, fn func(n *types.Node, depth int) bool) {
	walk(root, 0, fn)
}

func walk(n *types.Node, depth int, fn func(*types.Node, int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		walk(child, depth+1, fn)
	}
}

// Replace returns a new root where the node with id is replaced by repl.
func Replace(root *types.Node, id types.NodeID, repl *types.Node) (*types.Node, error) {
	if repl == nil {
		return nil, fmt.Errorf("%w: nil replacement", types.ErrInvalidRule)
	}
	return Update(root, id, func(*types.Node) (*types.Node, error) { return repl, nil })
}

// Update returns a new root where the node with id is replaced by fn(node).
func Update(root *types.Node, id types.NodeID, fn func(*types.Node) (*types.Node, error)) (*types.Node, error) {
	out, res := update(root, id, fn)
	if !res.found {
		return root, types.ErrNodeNotFound
	}
	if res.err != nil {
		return root, res.err
	}
	return out, nil
}

type updateResult struct {
	found bool
	err   error
}

// update copies the path from root to id and applies fn at id.
func update(n *types.Node, id types.NodeID, fn func(*types.Node) (*types.Node, error)) (*types.Node, updateResult) {
	if n == nil {
		return nil, updateResult{}
	}
	if n.ID == id {
		repl, err := fn(n)
		if err != nil {
			return n, updateResult{found: true, err: err}
		}
		return repl, updateResult{found: true}
	}
	for i, child := range n.Children {
		newChild, res := update(child, id, fn)
		if !res.found {
			continue
		}
		if res.err != nil {
			return n, res
		}
		cp := shallowCopy(n)
		cp.Children[i] = newChild
		return cp, res
	}
	return n, updateResult{}
}

// shallowCopy copies n with a fresh Children slice; children are shared.
func shallowCopy(n *types.Node) *types.Node {
	cp := *n
	if n.Children != nil {
		cp.Children = append([]*types.Node(nil), n.Children...)
	}
	return &cp
}

// AppendChild returns a new root with child appended to the group groupID.
func AppendChild(root *types.Node, groupID types.NodeID, child *types.Node) (*types.Node, error) {
	return Update(root, groupID, func(g *types.Node) (*types.Node, error) {
		if !KindOf(g).IsGroup() {
			return nil, types.ErrNotAGroup
		}
		if len(g.Children) >= types.MaxGroupChildren {
			return nil, types.ErrTooManyChildren
		}
		cp := shallowCopy(g)
		cp.Children = append(cp.Children, child)
		return cp, nil
	})
}

// DeleteOutcome describes what Delete removed.
type DeleteOutcome struct {
	Found bool
	// RootReset is set when the removal propagated to the root, which was
	// replaced by an empty condition.
	RootReset bool
	// Parent and Index locate the child slot that was removed in the
	// surviving group. Zero when RootReset.
	Parent types.NodeID
	Index  int
	// Removed lists every node id no longer in the tree, including groups
	// emptied by the deletion.
	Removed []types.NodeID
}

// Delete returns a new root without the node id. Groups left without
// children are removed from their parents in turn.
func Delete(root *types.Node, id types.NodeID) (*types.Node, DeleteOutcome) {
	var out DeleteOutcome
	if root == nil {
		return nil, out
	}
	if root.ID == id {
		out.Found = true
		out.RootReset = true
		out.Removed = subtreeIDs(root)
		return NewBase(), out
	}

	newRoot, removeRoot := deleteFrom(root, id, &out)
	if !out.Found {
		return root, out
	}
	if removeRoot {
		out.RootReset = true
		out.Parent = ""
		out.Index = 0
		return NewBase(), out
	}
	return newRoot, out
}

// deleteFrom reports removeSelf when n lost its last child.
func deleteFrom(n *types.Node, id types.NodeID, out *DeleteOutcome) (*types.Node, bool) {
	for i, child := range n.Children {
		if child == nil {
			continue
		}
		var removeChild bool
		var newChild *types.Node
		if child.ID == id {
			out.Found = true
			out.Removed = append(out.Removed, subtreeIDs(child)...)
			removeChild = true
		} else {
			newChild, removeChild = deleteFrom(child, id, out)
			if !out.Found {
				continue
			}
		}

		if removeChild {
			if len(n.Children) == 1 {
				out.Removed = append(out.Removed, n.ID)
				return nil, true
			}
			cp := shallowCopy(n)
			cp.Children = append(cp.Children[:i:i], n.Children[i+1:]...)
			out.Parent = n.ID
			out.Index = i
			return cp, false
		}

		cp := shallowCopy(n)
		cp.Children[i] = newChild
		return cp, false
	}
	return n, false
}

func subtreeIDs(n *types.Node) []types.NodeID {
	var ids []types.NodeID
	Walk(n, func(x *types.Node, _ int) bool {
		ids = append(ids, x.ID)
		return true
	})
	return ids
}

// WithOperator returns a copy of the condition with op set and the value
// reshaped to match: switching to IN wraps a non-empty scalar (else []),
// switching away from IN keeps the first element (else "").
func WithOperator(n *types.Node, op types.Operator) (*types.Node, error) {
	if KindOf(n) != types.KindBase {
		return nil, types.ErrNotACondition
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidOperator, op)
	}
	cp := shallowCopy(n)
	cp.Operator = op
	cp.Value = coupleValue(op, n.Value)
	return cp, nil
}

// WithField returns a copy of the condition with field set.
func WithField(n *types.Node, field string) (*types.Node, error) {
	if KindOf(n) != types.KindBase {
		return nil, types.ErrNotACondition
	}
	cp := shallowCopy(n)
	cp.Field = field
	return cp, nil
}

// WithValue returns a copy of the condition with value set. The value must
// already have the operator's shape.
func WithValue(n *types.Node, value types.Value) (*types.Node, error) {
	if KindOf(n) != types.KindBase {
		return nil, types.ErrNotACondition
	}
	if n.Operator.IsArray() != value.IsList() {
		return nil, fmt.Errorf("%w: operator %s requires %s value", types.ErrInvalidRule, n.Operator, valueShape(n.Operator))
	}
	cp := shallowCopy(n)
	cp.Value = cloneValue(value)
	return cp, nil
}

// coupleValue reshapes v to the operator's arity.
func coupleValue(op types.Operator, v types.Value) types.Value {
	if op.IsArray() {
		if v.IsList() {
			return cloneValue(v)
		}
		if v.IsEmpty() {
			return types.ListValue()
		}
		return types.ListValue(v.Scalar)
	}
	if !v.IsList() {
		if v.Scalar == nil {
			return types.ScalarValue("")
		}
		return v
	}
	if len(v.List) == 0 {
		return types.ScalarValue("")
	}
	return types.ScalarValue(v.List[0])
}
