package validation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/types"
)

// stubSource serves a fixed catalog.
type stubSource struct {
	categories map[string]types.CategoryInfo
	fields     map[string]types.FieldSet
	revision   uint64
	failWith   error
}

func (s *stubSource) CategoryInfo(_ context.Context, category string) (types.CategoryInfo, error) {
	if s.failWith != nil {
		return types.CategoryInfo{}, s.failWith
	}
	info, ok := s.categories[category]
	if !ok {
		return types.CategoryInfo{}, fmt.Errorf("%w: %q", types.ErrUnknownCategory, category)
	}
	return info, nil
}

func (s *stubSource) Fields(_ context.Context, category string) (types.FieldSet, error) {
	f, ok := s.fields[category]
	if !ok {
		return types.FieldSet{}, types.ErrUnknownSchema
	}
	return f, nil
}

func (s *stubSource) Revision() uint64 { return s.revision }

func newStubSource() *stubSource {
	return &stubSource{
		categories: map[string]types.CategoryInfo{
			"partners-images": {
				SchemaID: "images-v1",
				Destinations: map[string]types.DestinationInfo{
					"A": {
						TypeOptions:    types.TypeOptions{FieldName: "Image type", Options: []string{"thumbnail", "banner"}},
						ValidOperators: []types.Operator{types.OpEquals},
						ExtraPropertiesSchema: map[string]any{
							"type":     "object",
							"required": []any{"quality"},
							"properties": map[string]any{
								"quality": map[string]any{"type": "integer", "minimum": 1},
							},
						},
					},
					"B": {},
				},
			},
			"schemaless": {
				SchemaID:     "missing",
				Destinations: map[string]types.DestinationInfo{"X": {}},
			},
		},
		fields: map[string]types.FieldSet{"partners-images": imageFields},
	}
}

func simpleAnd() *types.Node {
	return rules.NewGroup(types.KindAnd,
		rules.NewCondition("metadata.name", types.OpEquals, types.ScalarValue("hello")),
		rules.NewCondition("metadata.format", types.OpEquals, types.ScalarValue("jpg")),
	)
}

func TestValidateRule_SimpleAndScenario(t *testing.T) {
	cache := NewCache(newStubSource())
	rule := &types.Rule{
		Name:            "hello jpgs",
		Category:        "partners-images",
		Destination:     "A",
		Type:            "thumbnail",
		Rule:            simpleAnd(),
		ExtraProperties: map[string]any{"quality": 3},
	}

	errs, err := cache.ValidateRule(context.Background(), rule)
	if err != nil {
		t.Fatalf("ValidateRule() error = %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("ValidateRule() = %v, want valid", errs)
	}
}

func TestValidateRule_InvalidOperatorScenario(t *testing.T) {
	cache := NewCache(newStubSource())
	tree := simpleAnd()
	tree.Children[1] = rules.NewCondition("metadata.format", types.OpIn, types.ListValue("jpg"))
	rule := &types.Rule{
		Name:            "in not allowed",
		Category:        "partners-images",
		Destination:     "A",
		Type:            "banner",
		Rule:            tree,
		ExtraProperties: map[string]any{"quality": 1},
	}

	errs, err := cache.ValidateRule(context.Background(), rule)
	if err != nil {
		t.Fatalf("ValidateRule() error = %v", err)
	}
	want := FieldErrors{"rule.AND.1.operator": "invalid operator 'IN', expected 'EQUALS'"}
	if diff := cmp.Diff(want, errs); diff != "" {
		t.Errorf("ValidateRule() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRule_Metadata(t *testing.T) {
	cache := NewCache(newStubSource())

	tests := []struct {
		name string
		rule types.Rule
		want FieldErrors
	}{
		{
			name: "missing everything",
			rule: types.Rule{},
			want: FieldErrors{
				"name":        "name is required",
				"category":    "category is required",
				"destination": "destination is required",
				"rule":        "rule is required",
			},
		},
		{
			name: "unknown category",
			rule: types.Rule{Name: "x", Category: "videos", Destination: "A", Rule: simpleAnd()},
			want: FieldErrors{"category": `unknown category "videos"`},
		},
		{
			name: "unknown destination",
			rule: types.Rule{Name: "x", Category: "partners-images", Destination: "Z", Rule: simpleAnd()},
			want: FieldErrors{"destination": `unknown destination "Z"`},
		},
		{
			name: "bad type and extra properties",
			rule: types.Rule{Name: "x", Category: "partners-images", Destination: "A", Type: "poster", Rule: simpleAnd(),
				ExtraProperties: map[string]any{"quality": 0}},
			want: FieldErrors{
				"type":                    "Image type must be one of thumbnail, banner",
				"extraProperties.quality": anyMessage,
			},
		},
		{
			name: "destination without constraints",
			rule: types.Rule{Name: "x", Category: "partners-images", Destination: "B", Rule: simpleAnd()},
			want: FieldErrors{},
		},
		{
			name: "missing schema falls back to permissive",
			rule: types.Rule{Name: "x", Category: "schemaless", Destination: "X",
				Rule: rules.NewCondition("whatever", types.OpNotEquals, types.ScalarValue("x"))},
			want: FieldErrors{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := cache.ValidateRule(context.Background(), &tt.rule)
			if err != nil {
				t.Fatalf("ValidateRule() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, maskLibraryMessages(tt.want, errs)); diff != "" {
				t.Errorf("ValidateRule() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// anyMessage marks expectations whose wording comes from the JSON Schema
// library; only the path is asserted.
const anyMessage = "<any>"

func maskLibraryMessages(want, got FieldErrors) FieldErrors {
	out := FieldErrors{}
	for path, msg := range got {
		if want[path] == anyMessage {
			msg = anyMessage
		}
		out[path] = msg
	}
	return out
}

func TestValidateRule_MissingExtraProperties(t *testing.T) {
	cache := NewCache(newStubSource())
	rule := &types.Rule{Name: "x", Category: "partners-images", Destination: "A", Type: "banner", Rule: simpleAnd()}

	errs, err := cache.ValidateRule(context.Background(), rule)
	if err != nil {
		t.Fatalf("ValidateRule() error = %v", err)
	}
	if _, ok := errs["extraProperties"]; !ok {
		t.Errorf("ValidateRule() = %v, want extraProperties error", errs)
	}
}

func TestValidateRule_SourceFailure(t *testing.T) {
	src := newStubSource()
	src.failWith = errors.New("catalog unavailable")
	cache := NewCache(src)

	rule := &types.Rule{Name: "x", Category: "partners-images", Destination: "A", Rule: simpleAnd()}
	if _, err := cache.ValidateRule(context.Background(), rule); err == nil {
		t.Errorf("ValidateRule() error = nil, want catalog failure")
	}
}

func TestCache_Memoizes(t *testing.T) {
	src := newStubSource()
	cache := NewCache(src)
	ctx := context.Background()

	first, err := cache.Get(ctx, "partners-images", "A")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, _ := cache.Get(ctx, "partners-images", "A")
	if first != second || cache.Builds() != 1 {
		t.Errorf("second Get() rebuilt: builds = %d", cache.Builds())
	}

	if _, err := cache.Get(ctx, "partners-images", "B"); err != nil {
		t.Fatalf("Get(B) error = %v", err)
	}
	if cache.Builds() != 2 {
		t.Errorf("builds = %d, want 2", cache.Builds())
	}

	src.revision++
	third, _ := cache.Get(ctx, "partners-images", "A")
	if third == first || cache.Builds() != 3 {
		t.Errorf("revision bump did not rebuild: builds = %d", cache.Builds())
	}
}

func TestCache_UnknownNames(t *testing.T) {
	cache := NewCache(newStubSource())
	if _, err := cache.Get(context.Background(), "videos", "A"); !errors.Is(err, types.ErrUnknownCategory) {
		t.Errorf("Get(videos) error = %v, want %v", err, types.ErrUnknownCategory)
	}
	if _, err := cache.Get(context.Background(), "partners-images", "Q"); !errors.Is(err, types.ErrUnknownDestination) {
		t.Errorf("Get(Q) error = %v, want %v", err, types.ErrUnknownDestination)
	}
}

func TestExtraProperties(t *testing.T) {
	v, err := CompileExtraProperties(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"crop": map[string]any{
				"type":       "object",
				"properties": map[string]any{"width": map[string]any{"type": "number"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("CompileExtraProperties() error = %v", err)
	}

	errs, err := v.Validate(map[string]any{"crop": map[string]any{"width": "wide"}})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, ok := errs["crop.width"]; !ok {
		t.Errorf("Validate() = %v, want crop.width error", errs)
	}

	none, err := CompileExtraProperties(nil)
	if err != nil || none != nil {
		t.Fatalf("CompileExtraProperties(nil) = %v, %v", none, err)
	}
	if errs, _ := none.Validate(map[string]any{"anything": true}); len(errs) != 0 {
		t.Errorf("nil validator rejected input: %v", errs)
	}

	if _, err := CompileExtraProperties(map[string]any{"type": 12}); err == nil {
		t.Errorf("CompileExtraProperties(invalid) error = nil")
	}
}
