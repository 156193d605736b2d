package rules

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/ruledesk/internal/types"
)

// randomTree builds an arbitrary well-formed tree: groups hold 1-3 children.
func randomTree(r *rand.Rand, depth int) *types.Node {
	if depth == 0 || r.Intn(3) == 0 {
		return randomCondition(r)
	}
	kind := types.KindAnd
	if r.Intn(2) == 0 {
		kind = types.KindOr
	}
	n := 1 + r.Intn(3)
	children := make([]*types.Node, n)
	for i := range children {
		children[i] = randomTree(r, depth-1)
	}
	return NewGroup(kind, children...)
}

func randomCondition(r *rand.Rand) *types.Node {
	fields := []string{"metadata.name", "metadata.format", "metadata.width", "metadata.public", "metadata.tags"}
	field := fields[r.Intn(len(fields))]
	switch r.Intn(4) {
	case 0:
		return NewCondition(field, types.OpEquals, types.ScalarValue(float64(r.Intn(1000))))
	case 1:
		return NewCondition(field, types.OpNotEquals, types.ScalarValue(r.Intn(2) == 0))
	case 2:
		return NewCondition(field, types.OpIn, types.ListValue("jpg", "png"))
	default:
		return NewCondition(field, types.OpEquals, types.ScalarValue("hello"))
	}
}

func TestTree_PropertyJSONRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(serialize(T)) == T", prop.ForAll(
		func(seed int64, depth int) bool {
			tree := randomTree(rand.New(rand.NewSource(seed)), depth)
			data, err := json.Marshal(tree)
			if err != nil {
				t.Logf("Marshal() error = %v", err)
				return false
			}
			back, err := types.ParseNode(data)
			if err != nil {
				t.Logf("ParseNode() error = %v", err)
				return false
			}
			if !Equal(tree, back) {
				t.Logf("round trip diff (-want +got):\n%s", Diff(tree, back))
				return false
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(0, 5),
	))

	properties.Property("kindOf is total and never confuses conditions with groups", prop.ForAll(
		func(seed int64, depth int) bool {
			ok := true
			Walk(randomTree(rand.New(rand.NewSource(seed)), depth), func(n *types.Node, _ int) bool {
				switch KindOf(n) {
				case types.KindBase:
					ok = ok && len(n.Children) == 0
				case types.KindAnd, types.KindOr:
					ok = ok && len(n.Children) > 0 && n.Field == ""
				default:
					ok = false
				}
				return true
			})
			return ok
		},
		gen.Int64(),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

func TestTree_PropertyDeleteNeverLeavesEmptyGroups(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("deleting any node keeps every group non-empty", prop.ForAll(
		func(seed int64, depth int, pick int) bool {
			tree := randomTree(rand.New(rand.NewSource(seed)), depth)
			var ids []types.NodeID
			Walk(tree, func(n *types.Node, _ int) bool {
				ids = append(ids, n.ID)
				return true
			})
			target := ids[pick%len(ids)]

			before, _ := json.Marshal(tree)
			out, outcome := Delete(tree, target)
			after, _ := json.Marshal(tree)
			if string(before) != string(after) {
				t.Logf("Delete mutated its input")
				return false
			}
			if !outcome.Found || Find(out, target) != nil {
				return false
			}

			ok := true
			Walk(out, func(n *types.Node, _ int) bool {
				if KindOf(n).IsGroup() && len(n.Children) == 0 {
					ok = false
				}
				return true
			})
			return ok
		},
		gen.Int64(),
		gen.IntRange(0, 5),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func TestConstructors(t *testing.T) {
	base := NewBase()
	if KindOf(base) != types.KindBase {
		t.Fatalf("KindOf(NewBase()) = %v, want BASE", KindOf(base))
	}
	if base.Field != "" || base.Operator != types.OpEquals || base.Value.IsList() || base.Value.Scalar != "" {
		t.Errorf("NewBase() = %+v, want empty EQUALS condition", base)
	}

	for _, tt := range []struct {
		name string
		node *types.Node
		want types.NodeKind
	}{
		{"and", NewAnd(), types.KindAnd},
		{"or", NewOr(), types.KindOr},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if KindOf(tt.node) != tt.want {
				t.Errorf("KindOf() = %v, want %v", KindOf(tt.node), tt.want)
			}
			if len(tt.node.Children) != 1 || KindOf(tt.node.Children[0]) != types.KindBase {
				t.Errorf("children = %+v, want one empty condition", tt.node.Children)
			}
		})
	}

	if KindOf(nil) != types.KindUnknown {
		t.Errorf("KindOf(nil) = %v, want UNKNOWN", KindOf(nil))
	}
	if KindOf(&types.Node{Kind: types.NodeKind(42)}) != types.KindUnknown {
		t.Errorf("KindOf(bogus) should be UNKNOWN")
	}
}

func TestClone_Independent(t *testing.T) {
	orig := NewGroup(types.KindAnd,
		NewCondition("metadata.tags", types.OpIn, types.ListValue("a", "b")),
		NewCondition("metadata.name", types.OpEquals, types.ScalarValue("x")),
	)
	cp := Clone(orig)
	if !Equal(orig, cp) {
		t.Fatalf("Clone() not equal:\n%s", Diff(orig, cp))
	}
	if cp.ID != orig.ID || cp.Children[0].ID != orig.Children[0].ID {
		t.Errorf("Clone() should preserve ids")
	}

	cp.Children[0].Value.List[0] = "mutated"
	cp.Children = append(cp.Children, NewBase())
	if orig.Children[0].Value.List[0] != "a" || len(orig.Children) != 2 {
		t.Errorf("mutating clone changed original: %+v", orig)
	}
}

func TestPromote_PreservesCondition(t *testing.T) {
	leaf := NewBase()
	promoted, err := Promote(leaf, types.KindAnd)
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	data, err := json.Marshal(promoted)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"AND":[{"field":"","operator":"EQUALS","value":""}]}`
	if string(data) != want {
		t.Errorf("Promote() JSON = %s, want %s", data, want)
	}
	if promoted.Children[0].ID != leaf.ID {
		t.Errorf("promoted child id = %v, want %v", promoted.Children[0].ID, leaf.ID)
	}

	if _, err := Promote(promoted, types.KindOr); !errors.Is(err, types.ErrNotACondition) {
		t.Errorf("Promote(group) error = %v, want %v", err, types.ErrNotACondition)
	}
	if _, err := Promote(leaf, types.KindBase); !errors.Is(err, types.ErrNotAGroup) {
		t.Errorf("Promote(leaf, BASE) error = %v, want %v", err, types.ErrNotAGroup)
	}
}

func TestWithOperator_ValueCoupling(t *testing.T) {
	tests := []struct {
		name  string
		start types.Value
		from  types.Operator
		to    types.Operator
		want  types.Value
	}{
		{"empty scalar to IN", types.ScalarValue(""), types.OpEquals, types.OpIn, types.ListValue()},
		{"scalar to IN wraps", types.ScalarValue("jpg"), types.OpEquals, types.OpIn, types.ListValue("jpg")},
		{"empty list away from IN", types.ListValue(), types.OpIn, types.OpEquals, types.ScalarValue("")},
		{"list away from IN keeps first", types.ListValue("jpg", "png"), types.OpIn, types.OpNotEquals, types.ScalarValue("jpg")},
		{"scalar to scalar unchanged", types.ScalarValue(3.0), types.OpEquals, types.OpNotEquals, types.ScalarValue(3.0)},
		{"IN to IN unchanged", types.ListValue("a"), types.OpIn, types.OpIn, types.ListValue("a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewCondition("metadata.format", tt.from, tt.start)
			got, err := WithOperator(n, tt.to)
			if err != nil {
				t.Fatalf("WithOperator() error = %v", err)
			}
			if got.Operator != tt.to {
				t.Errorf("Operator = %v, want %v", got.Operator, tt.to)
			}
			if got.Value.IsList() != tt.to.IsArray() {
				t.Errorf("Value.IsList() = %v, want %v", got.Value.IsList(), tt.to.IsArray())
			}
			want := NewCondition("metadata.format", tt.to, tt.want)
			if !Equal(got, want) {
				t.Errorf("WithOperator() diff:\n%s", Diff(want, got))
			}
		})
	}

	if _, err := WithOperator(NewAnd(), types.OpIn); !errors.Is(err, types.ErrNotACondition) {
		t.Errorf("WithOperator(group) error = %v, want %v", err, types.ErrNotACondition)
	}
	if _, err := WithOperator(NewBase(), types.Operator("LIKE")); !errors.Is(err, types.ErrInvalidOperator) {
		t.Errorf("WithOperator(LIKE) error = %v, want %v", err, types.ErrInvalidOperator)
	}
}

func TestWithValue_ShapeChecked(t *testing.T) {
	n := NewCondition("metadata.format", types.OpIn, types.ListValue())
	if _, err := WithValue(n, types.ScalarValue("jpg")); !errors.Is(err, types.ErrInvalidRule) {
		t.Errorf("WithValue(scalar on IN) error = %v, want %v", err, types.ErrInvalidRule)
	}
	got, err := WithValue(n, types.ListValue("jpg"))
	if err != nil {
		t.Fatalf("WithValue() error = %v", err)
	}
	if len(got.Value.List) != 1 || len(n.Value.List) != 0 {
		t.Errorf("WithValue() = %v, original = %v", got.Value, n.Value)
	}
}

func TestReplace_SharesUntouchedSubtrees(t *testing.T) {
	left := NewCondition("metadata.name", types.OpEquals, types.ScalarValue("a"))
	right := NewGroup(types.KindOr, NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg")))
	root := NewGroup(types.KindAnd, left, right)

	repl := NewCondition("metadata.name", types.OpEquals, types.ScalarValue("b"))
	repl.ID = left.ID
	out, err := Replace(root, left.ID, repl)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if out == root {
		t.Fatalf("Replace() returned the input root")
	}
	if out.Children[1] != right {
		t.Errorf("untouched subtree was copied")
	}
	if root.Children[0].Value.Scalar != "a" {
		t.Errorf("Replace() mutated input")
	}
	if Find(out, left.ID).Value.Scalar != "b" {
		t.Errorf("replacement not found in new root")
	}

	if _, err := Replace(root, "missing", repl); !errors.Is(err, types.ErrNodeNotFound) {
		t.Errorf("Replace(missing) error = %v, want %v", err, types.ErrNodeNotFound)
	}
}

func TestAppendChild(t *testing.T) {
	root := NewAnd()
	child := NewBase()

	out, err := AppendChild(root, root.ID, child)
	if err != nil {
		t.Fatalf("AppendChild() error = %v", err)
	}
	if len(out.Children) != 2 || len(root.Children) != 1 {
		t.Errorf("len(children) = %d (input %d), want 2 (input 1)", len(out.Children), len(root.Children))
	}

	if _, err := AppendChild(out, child.ID, NewBase()); !errors.Is(err, types.ErrNotAGroup) {
		t.Errorf("AppendChild(condition) error = %v, want %v", err, types.ErrNotAGroup)
	}

	full := NewAnd()
	for i := 1; i < types.MaxGroupChildren; i++ {
		full, _ = AppendChild(full, full.ID, NewBase())
	}
	if _, err := AppendChild(full, full.ID, NewBase()); !errors.Is(err, types.ErrTooManyChildren) {
		t.Errorf("AppendChild(full) error = %v, want %v", err, types.ErrTooManyChildren)
	}
}

func TestDelete(t *testing.T) {
	a := NewCondition("metadata.name", types.OpEquals, types.ScalarValue("a"))
	b := NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg"))
	c := NewCondition("metadata.width", types.OpEquals, types.ScalarValue(640))
	inner := NewGroup(types.KindOr, c)
	root := NewGroup(types.KindAnd, a, b, inner)

	t.Run("sibling remains", func(t *testing.T) {
		out, outcome := Delete(root, b.ID)
		if !outcome.Found || outcome.RootReset {
			t.Fatalf("outcome = %+v", outcome)
		}
		if outcome.Parent != root.ID || outcome.Index != 1 {
			t.Errorf("outcome slot = (%v, %d), want (%v, 1)", outcome.Parent, outcome.Index, root.ID)
		}
		if len(out.Children) != 2 || out.Children[1] != inner {
			t.Errorf("children = %+v", out.Children)
		}
	})

	t.Run("sole child removes group", func(t *testing.T) {
		out, outcome := Delete(root, c.ID)
		if outcome.Parent != root.ID || outcome.Index != 2 {
			t.Errorf("outcome slot = (%v, %d), want (%v, 2)", outcome.Parent, outcome.Index, root.ID)
		}
		if Find(out, inner.ID) != nil {
			t.Errorf("emptied group still present")
		}
		if len(outcome.Removed) != 2 {
			t.Errorf("Removed = %v, want condition and group", outcome.Removed)
		}
	})

	t.Run("propagates to root", func(t *testing.T) {
		single := NewGroup(types.KindAnd, NewGroup(types.KindOr, c))
		out, outcome := Delete(single, c.ID)
		if !outcome.RootReset {
			t.Fatalf("RootReset = false, want true")
		}
		if !Equal(out, NewBase()) {
			t.Errorf("root = %+v, want empty condition", out)
		}
	})

	t.Run("root itself", func(t *testing.T) {
		out, outcome := Delete(root, root.ID)
		if !outcome.RootReset || KindOf(out) != types.KindBase {
			t.Errorf("Delete(root) = %+v, %+v", out, outcome)
		}
	})

	t.Run("missing", func(t *testing.T) {
		out, outcome := Delete(root, "missing")
		if outcome.Found || out != root {
			t.Errorf("Delete(missing) = %+v", outcome)
		}
	})
}

func TestParentOf(t *testing.T) {
	a := NewBase()
	b := NewBase()
	root := NewGroup(types.KindOr, a, b)

	parent, idx, ok := ParentOf(root, b.ID)
	if !ok || parent != root || idx != 1 {
		t.Errorf("ParentOf() = (%v, %d, %v), want (root, 1, true)", parent, idx, ok)
	}
	if _, _, ok := ParentOf(root, root.ID); ok {
		t.Errorf("ParentOf(root) ok = true, want false")
	}
}
