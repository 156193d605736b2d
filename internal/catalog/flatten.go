package catalog

import (
	"sort"

	"github.com/solatis/ruledesk/internal/types"
)

// FlattenSchema lists the leaf paths of a JSON-Schema-like object document.
//
// Object nodes are traversed but not listed; arrays and scalar leaves are
// listed with dot-joined paths. Leaf types map through ParseFieldType, and
// arrays take the type of their items. Properties are visited in sorted key
// order so the path list is deterministic.
func FlattenSchema(doc map[string]any) types.FieldSet {
	fs := types.FieldSet{Types: map[string]types.FieldType{}}
	flatten(doc, "", &fs, 0)
	return fs
}

func flatten(node map[string]any, prefix string, fs *types.FieldSet, depth int) {
	if depth > types.MaxPathDepth {
		return
	}
	props, _ := node["properties"].(map[string]any)
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		child, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch schemaType(child) {
		case "object":
			flatten(child, path, fs, depth+1)
		case "array":
			itemType := "string"
			if items, ok := child["items"].(map[string]any); ok {
				itemType = schemaType(items)
			}
			fs.Paths = append(fs.Paths, path)
			fs.Types[path] = types.ParseFieldType(itemType)
		default:
			fs.Paths = append(fs.Paths, path)
			fs.Types[path] = types.ParseFieldType(schemaType(child))
		}
	}
}

// schemaType returns the node's "type", the first non-null entry of a type
// list, or "object" for untyped nodes that declare properties.
func schemaType(node map[string]any) string {
	switch t := node["type"].(type) {
	case string:
		return t
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s != "null" {
				return s
			}
		}
	}
	if _, ok := node["properties"]; ok {
		return "object"
	}
	return ""
}
