package editor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/validation"
)

var imageFields = types.FieldSet{
	Paths: []string{"metadata.format", "metadata.name", "metadata.width"},
	Types: map[string]types.FieldType{
		"metadata.format": types.FieldTypeString,
		"metadata.name":   types.FieldTypeString,
		"metadata.width":  types.FieldTypeNumber,
	},
}

// equalsOnly mirrors destination A of partners-images.
func equalsOnly() *validation.Validator {
	return validation.Build(imageFields, []types.Operator{types.OpEquals})
}

func simpleAnd() *types.Node {
	return rules.NewGroup(types.KindAnd,
		rules.NewCondition("metadata.name", types.OpEquals, types.ScalarValue("hello")),
		rules.NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg")),
	)
}

func marshal(t *testing.T, n *types.Node) string {
	t.Helper()
	out, err := json.Marshal(n)
	require.NoError(t, err)
	return string(out)
}

func TestSession_SimpleAndIsSaveable(t *testing.T) {
	tree := simpleAnd()
	s := New(types.Rule{Name: "r", Rule: tree}, equalsOnly())

	assert.True(t, s.CanSave())
	assert.Empty(t, s.Errors())

	roll, ok := s.GroupStatus(tree.ID)
	require.True(t, ok)
	assert.Equal(t, rules.Rollup{}, roll)

	assert.JSONEq(t,
		`{"AND":[{"field":"metadata.name","operator":"EQUALS","value":"hello"},{"field":"metadata.format","operator":"EQUALS","value":"jpg"}]}`,
		marshal(t, s.Tree()))
}

func TestSession_InvalidOperator(t *testing.T) {
	tree := simpleAnd()
	second := tree.Children[1].ID
	s := New(types.Rule{Rule: tree}, equalsOnly())

	require.NoError(t, s.SetOperator(second, types.OpIn))

	assert.Equal(t, "invalid operator 'IN', expected 'EQUALS'", s.Errors()["AND.1.operator"])
	assert.False(t, s.CanSave())
	assert.Equal(t, []any{"jpg"}, rules.Find(s.Tree(), second).Value.List)

	roll, ok := s.GroupStatus(tree.ID)
	require.True(t, ok)
	assert.Equal(t, rules.Rollup{HasErrors: true, ErrorCount: 1}, roll)

	require.True(t, s.Undo())
	assert.True(t, s.CanSave())
	roll, _ = s.GroupStatus(tree.ID)
	assert.False(t, roll.HasErrors)

	require.True(t, s.Redo())
	assert.False(t, s.CanSave())
}

func TestSession_ConvertPromotesLeaf(t *testing.T) {
	base := rules.NewBase()
	s := New(types.Rule{Rule: base}, nil)

	groupID, err := s.Convert(base.ID, types.KindAnd)
	require.NoError(t, err)

	assert.JSONEq(t, `{"AND":[{"field":"","operator":"EQUALS","value":""}]}`, marshal(t, s.Tree()))
	assert.Equal(t, groupID, s.Tree().ID)
	assert.Equal(t, base.ID, s.Tree().Children[0].ID)

	_, err = s.Convert(groupID, types.KindOr)
	assert.ErrorIs(t, err, types.ErrNotACondition)

	require.True(t, s.Undo())
	assert.Equal(t, types.KindBase, s.Tree().Kind)
	_, ok := s.GroupStatus(groupID)
	assert.False(t, ok, "aggregator of an undone group is dropped")
}

func TestSession_NestedRollup(t *testing.T) {
	tree := simpleAnd()
	s := New(types.Rule{Rule: tree}, equalsOnly())

	orID, err := s.AddGroup(tree.ID, types.KindOr)
	require.NoError(t, err)
	leaf := rules.Find(s.Tree(), orID).Children[0].ID

	// A fresh condition has no field yet.
	assert.Equal(t, "field is required", s.Errors()["AND.2.OR.0.field"])
	inner, ok := s.GroupStatus(orID)
	require.True(t, ok)
	assert.Equal(t, rules.Rollup{HasErrors: true, ErrorCount: 1}, inner)
	outer, _ := s.GroupStatus(tree.ID)
	assert.Equal(t, rules.Rollup{HasErrors: true, ErrorCount: 1}, outer)

	require.NoError(t, s.SetField(leaf, "metadata.width"))
	assert.Equal(t, "expected number, received string", s.Errors()["AND.2.OR.0.value"])

	require.NoError(t, s.SetValue(leaf, types.ScalarValue(640)))
	assert.True(t, s.CanSave())
	inner, _ = s.GroupStatus(orID)
	outer, _ = s.GroupStatus(tree.ID)
	assert.False(t, inner.HasErrors)
	assert.False(t, outer.HasErrors)
}

func TestSession_AddCondition(t *testing.T) {
	tree := simpleAnd()
	s := New(types.Rule{Rule: tree}, equalsOnly())

	id, err := s.AddCondition(tree.ID)
	require.NoError(t, err)
	require.Len(t, s.Tree().Children, 3)
	assert.Equal(t, id, s.Tree().Children[2].ID)
	assert.Len(t, tree.Children, 2, "original tree is not mutated")

	_, err = s.AddCondition(id)
	assert.ErrorIs(t, err, types.ErrNotAGroup)

	_, err = s.AddGroup(tree.ID, types.KindBase)
	assert.ErrorIs(t, err, types.ErrNotAGroup)
}

func TestSession_DeletePropagates(t *testing.T) {
	inner := rules.NewGroup(types.KindOr,
		rules.NewCondition("metadata.name", types.OpEquals, types.ScalarValue("x")))
	tree := rules.NewGroup(types.KindAnd,
		rules.NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg")),
		inner,
	)
	s := New(types.Rule{Rule: tree}, equalsOnly())
	_, ok := s.GroupStatus(inner.ID)
	require.True(t, ok)

	require.NoError(t, s.Delete(inner.Children[0].ID))

	assert.Nil(t, rules.Find(s.Tree(), inner.ID), "emptied group is removed")
	assert.Len(t, s.Tree().Children, 1)
	_, ok = s.GroupStatus(inner.ID)
	assert.False(t, ok)

	require.NoError(t, s.Delete(s.Tree().Children[0].ID))
	assert.Equal(t, types.KindBase, s.Tree().Kind, "deleting the last node resets the root")

	assert.ErrorIs(t, s.Delete(types.NodeID("missing")), types.ErrNodeNotFound)
}

func TestSession_DeleteReindexes(t *testing.T) {
	tree := rules.NewGroup(types.KindAnd,
		rules.NewCondition("metadata.name", types.OpEquals, types.ScalarValue("ok")),
		rules.NewBase(),
		rules.NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg")),
	)
	s := New(types.Rule{Rule: tree}, equalsOnly())
	assert.Contains(t, s.Errors(), "AND.1.field")

	require.NoError(t, s.Delete(tree.Children[0].ID))

	errs := s.Errors()
	assert.Contains(t, errs, "AND.0.field")
	assert.NotContains(t, errs, "AND.1.field")
	roll, _ := s.GroupStatus(tree.ID)
	assert.Equal(t, rules.Rollup{HasErrors: true, ErrorCount: 1}, roll)
}

func TestSession_History(t *testing.T) {
	tree := simpleAnd()
	first := tree.Children[0].ID
	s := New(types.Rule{Rule: tree}, equalsOnly())

	// Setting a field to its current value records nothing.
	require.NoError(t, s.SetField(first, "metadata.name"))
	assert.False(t, s.CanUndo())
	assert.False(t, s.Undo(), "undo at the oldest snapshot is a no-op")

	require.NoError(t, s.SetValue(first, types.ScalarValue("one")))
	require.NoError(t, s.SetValue(first, types.ScalarValue("two")))
	require.True(t, s.Undo())
	assert.Equal(t, "one", rules.Find(s.Tree(), first).Value.Scalar)

	// A new edit after undo drops the redo branch.
	require.NoError(t, s.SetValue(first, types.ScalarValue("three")))
	assert.False(t, s.CanRedo())
	assert.False(t, s.Redo())
	assert.Equal(t, "three", rules.Find(s.Tree(), first).Value.Scalar)
}

func TestSession_HistoryLimit(t *testing.T) {
	tree := simpleAnd()
	first := tree.Children[0].ID
	s := New(types.Rule{Rule: tree}, equalsOnly(), WithHistoryLimit(2), WithLogger(zap.NewNop()))

	require.NoError(t, s.SetValue(first, types.ScalarValue("a")))
	require.NoError(t, s.SetValue(first, types.ScalarValue("b")))

	require.True(t, s.Undo())
	assert.False(t, s.Undo())
	assert.Equal(t, "a", rules.Find(s.Tree(), first).Value.Scalar)
}

func TestSession_RejectedEditsLeaveState(t *testing.T) {
	tree := simpleAnd()
	s := New(types.Rule{Rule: tree}, equalsOnly())

	assert.ErrorIs(t, s.SetField(tree.ID, "metadata.name"), types.ErrNotACondition)
	assert.ErrorIs(t, s.SetOperator(tree.Children[0].ID, types.Operator("LIKE")), types.ErrInvalidOperator)
	assert.ErrorIs(t, s.SetValue(tree.Children[0].ID, types.ListValue("a")), types.ErrInvalidRule)
	assert.ErrorIs(t, s.SetField(types.NodeID("missing"), "x"), types.ErrNodeNotFound)

	assert.Same(t, tree, s.Tree())
	assert.False(t, s.CanUndo())
}

func TestSession_ReplaceWithUnknownNode(t *testing.T) {
	s := New(types.Rule{Rule: simpleAnd()}, equalsOnly())

	tree, err := types.ParseNode([]byte(`{"AND":[{"NOT":[]},{"field":"metadata.name","operator":"EQUALS","value":"x"}]}`))
	require.NoError(t, err)
	require.NoError(t, s.Replace(tree))

	assert.Equal(t, "Unknown rule type", s.Errors()["AND.0"])
	assert.False(t, s.CanSave())
	assert.True(t, s.CanUndo())
	assert.ErrorIs(t, s.Replace(nil), types.ErrInvalidRule)
}

func TestSession_RuleCarriesTree(t *testing.T) {
	s := New(types.Rule{Name: "named", Category: "partners-images"}, nil)
	r := s.Rule()
	assert.Equal(t, "named", r.Name)
	require.NotNil(t, r.Rule)
	assert.Equal(t, types.KindBase, r.Rule.Kind)
}
