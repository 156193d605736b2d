package validation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExtraPropertiesValidator checks a rule's extra properties bag against the
// destination's JSON Schema.
type ExtraPropertiesValidator struct {
	schema *jsonschema.Schema
}

// CompileExtraProperties compiles a destination schema. A nil or empty
// schema yields a nil validator, which accepts everything.
func CompileExtraProperties(schema map[string]any) (*ExtraPropertiesValidator, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode extra properties schema: %w", err)
	}

	const url = "extra-properties.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("load extra properties schema: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile extra properties schema: %w", err)
	}
	return &ExtraPropertiesValidator{schema: s}, nil
}

// Validate returns errors keyed by dotted instance path ("" for the bag
// itself). Nil receivers accept everything.
func (v *ExtraPropertiesValidator) Validate(props map[string]any) (FieldErrors, error) {
	errs := FieldErrors{}
	if v == nil {
		return errs, nil
	}

	// The schema library only accepts decoded JSON values.
	instance, err := normalize(props)
	if err != nil {
		return nil, err
	}

	err = v.schema.Validate(instance)
	if err == nil {
		return errs, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	collectLeaves(ve, errs)
	return errs, nil
}

func normalize(props map[string]any) (any, error) {
	if props == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encode extra properties: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode extra properties: %w", err)
	}
	return out, nil
}

// collectLeaves reports the innermost causes, which name the failing
// instance location most precisely.
func collectLeaves(ve *jsonschema.ValidationError, errs FieldErrors) {
	if len(ve.Causes) == 0 {
		errs.add(pointerToPath(ve.InstanceLocation), ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, errs)
	}
}

// pointerToPath converts a JSON pointer ("/a/0/b") to a dotted path.
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
