// internal/rules/compile_test.go
package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/solatis/ruledesk/internal/types"
)

var imageFields = types.FieldSet{
	Paths: []string{"metadata.name", "metadata.format", "metadata.width", "metadata.public", "metadata.tags"},
	Types: map[string]types.FieldType{
		"metadata.name":   types.FieldTypeString,
		"metadata.format": types.FieldTypeString,
		"metadata.width":  types.FieldTypeNumber,
		"metadata.public": types.FieldTypeBoolean,
		"metadata.tags":   types.FieldTypeString,
	},
}

func TestCompile_SimpleAnd(t *testing.T) {
	tree := NewGroup(types.KindAnd,
		NewCondition("metadata.name", types.OpEquals, types.ScalarValue("hello")),
		NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg")),
	)

	compiled, err := Compile(tree, imageFields)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if compiled.Kind != types.KindAnd {
		t.Errorf("Kind = %v, want AND", compiled.Kind)
	}
	if len(compiled.Children) != 2 {
		t.Fatalf("len(Children) = %v, want 2", len(compiled.Children))
	}
	if compiled.Cost != compiled.Children[0].Cost+compiled.Children[1].Cost {
		t.Errorf("group Cost = %d, want sum of children", compiled.Cost)
	}
	if compiled.NodeID != tree.ID {
		t.Errorf("NodeID = %v, want %v", compiled.NodeID, tree.ID)
	}
}

func TestCompile_CoercesValues(t *testing.T) {
	tree := NewGroup(types.KindOr,
		NewCondition("metadata.width", types.OpEquals, types.ScalarValue("640")),
		NewCondition("metadata.format", types.OpIn, types.ListValue("jpg", 3)),
	)

	compiled, err := Compile(tree, imageFields)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	byField := map[string]*CompiledNode{}
	for _, c := range compiled.Children {
		byField[c.Field] = c
	}
	if v := byField["metadata.width"].Value; v != 640.0 {
		t.Errorf("width Value = %v (%T), want 640.0", v, v)
	}
	if vs := byField["metadata.format"].Values; len(vs) != 2 || vs[1] != "3" {
		t.Errorf("format Values = %v, want [jpg 3]", vs)
	}
}

func TestCompile_CostOrdering(t *testing.T) {
	// string IN on a wildcard path is far more expensive than a boolean EQUALS.
	expensive := NewCondition("assets.*.format", types.OpIn, types.ListValue("jpg"))
	cheap := NewCondition("metadata.public", types.OpEquals, types.ScalarValue(true))
	medium := NewCondition("metadata.width", types.OpEquals, types.ScalarValue(10))
	tree := NewGroup(types.KindAnd, expensive, cheap, medium)

	compiled, err := Compile(tree, imageFields)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := []types.NodeID{cheap.ID, medium.ID, expensive.ID}
	for i, c := range compiled.Children {
		if c.NodeID != want[i] {
			t.Errorf("Children[%d] = %s, want %s", i, c.Field, Find(tree, want[i]).Field)
		}
	}
}

func TestCompile_StableOrderForEqualCost(t *testing.T) {
	first := NewCondition("metadata.name", types.OpEquals, types.ScalarValue("a"))
	second := NewCondition("metadata.format", types.OpEquals, types.ScalarValue("b"))
	compiled, err := Compile(NewGroup(types.KindOr, first, second), imageFields)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if compiled.Children[0].NodeID != first.ID {
		t.Errorf("equal-cost siblings reordered")
	}
}

func TestCompile_Errors(t *testing.T) {
	deep := NewBase()
	deep.Field = "metadata.name"
	for i := 0; i < types.MaxTreeDepth; i++ {
		deep = NewGroup(types.KindAnd, deep)
	}

	wide := NewGroup(types.KindOr)
	for i := 0; i <= types.MaxGroupChildren; i++ {
		wide.Children = append(wide.Children, NewCondition("metadata.name", types.OpEquals, types.ScalarValue("x")))
	}

	bigIn := make([]any, types.MaxInOperatorValues+1)
	for i := range bigIn {
		bigIn[i] = "v"
	}

	tests := []struct {
		name    string
		tree    *types.Node
		wantErr error
	}{
		{"unknown node", &types.Node{Kind: types.KindUnknown, Raw: []byte(`{"NOT":[]}`)}, types.ErrUnknownNodeKind},
		{"empty group", &types.Node{Kind: types.KindAnd}, types.ErrInvalidRule},
		{"too deep", deep, types.ErrTreeTooDeep},
		{"too many children", wide, types.ErrTooManyChildren},
		{"too many IN values", NewCondition("metadata.format", types.OpIn, types.ListValue(bigIn...)), types.ErrTooManyInValues},
		{"invalid operator", &types.Node{Kind: types.KindBase, Field: "metadata.name", Operator: "LIKE", Value: types.ScalarValue("x")}, types.ErrInvalidOperator},
		{"IN with scalar", &types.Node{Kind: types.KindBase, Field: "metadata.name", Operator: types.OpIn, Value: types.ScalarValue("x")}, types.ErrInvalidRule},
		{"empty field", NewBase(), types.ErrFieldNotFound},
		{"too many wildcards", NewCondition("*.*.*", types.OpEquals, types.ScalarValue("x")), types.ErrTooManyWildcards},
		{"uncoercible value", NewCondition("metadata.width", types.OpEquals, types.ScalarValue("wide")), types.ErrCoercionFailed},
		{"bool on boolean field rejects string", NewCondition("metadata.public", types.OpEquals, types.ScalarValue("yes")), types.ErrCoercionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.tree, imageFields)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalculateConditionCost(t *testing.T) {
	path, _ := ParseFieldPath("metadata.width")
	if got, want := CalculateConditionCost(path, types.OpEquals, types.FieldTypeNumber), 2*CostLookupPerSegment+CostEquals*MultiplierNumber; got != want {
		t.Errorf("cost = %d, want %d", got, want)
	}

	wild, _ := ParseFieldPath("assets.*.format")
	got := CalculateConditionCost(wild, types.OpIn, types.FieldTypeString)
	want := 2*CostLookupPerSegment + CostIn*MultiplierString*8
	if got != want {
		t.Errorf("wildcard cost = %d, want %d", got, want)
	}

	idx, _ := ParseFieldPath(strings.Join([]string{"metadata", "tags", "0"}, "."))
	if got := CalculateConditionCost(idx, types.OpEquals, types.FieldTypeAny); got != 2*CostLookupPerSegment+CostEquals*MultiplierAny {
		t.Errorf("index segments should not add lookup cost, got %d", got)
	}
}
