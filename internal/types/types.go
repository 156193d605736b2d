// Package types provides domain models shared across RuleDesk components.
//
// Dependency-light design: the rule tree (rules.go) and its JSON shape use only
// encoding/json so the same types can be embedded in tools that never touch the
// store. ID utilities in ids.go import uuid but are isolated.
//
// Wire format: the JSON shape produced by Node.MarshalJSON is the de facto
// serialization format shared by the store, the admin API and rule files.
package types

import "time"

// RuleID represents a UUIDv7 rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// NodeID identifies one node of a rule tree.
// Assigned at construction and never serialized; editor state is keyed by it.
type NodeID string

// Rule is a named, persisted entity wrapping a rule tree plus the
// category/destination metadata that decides how the tree is validated.
type Rule struct {
	ID              RuleID         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	Destination     string         `json:"destination" yaml:"destination"`
	Category        string         `json:"category" yaml:"category"`
	Type            string         `json:"type" yaml:"type"`
	Rule            *Node          `json:"rule" yaml:"-"`
	ExtraProperties map[string]any `json:"extraProperties,omitempty" yaml:"extraProperties,omitempty"`
	CreatedAt       time.Time      `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt       time.Time      `json:"updatedAt,omitempty" yaml:"-"`
}

// RuleDraft is a rule that has not been assigned an identifier yet.
type RuleDraft struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Destination     string         `json:"destination"`
	Category        string         `json:"category"`
	Type            string         `json:"type"`
	Rule            *Node          `json:"rule"`
	ExtraProperties map[string]any `json:"extraProperties,omitempty"`
}

// Draft strips identity and timestamps from r.
func (r Rule) Draft() RuleDraft {
	return RuleDraft{
		Name:            r.Name,
		Description:     r.Description,
		Destination:     r.Destination,
		Category:        r.Category,
		Type:            r.Type,
		Rule:            r.Rule,
		ExtraProperties: r.ExtraProperties,
	}
}

// CategoryInfo maps a category to its field schema and destinations.
type CategoryInfo struct {
	SchemaID     string                     `json:"schemaId" yaml:"schemaId"`
	Destinations map[string]DestinationInfo `json:"destinations" yaml:"destinations"`
}

// DestinationInfo constrains rules targeting one destination of a category.
// Empty ValidOperators means every operator is allowed.
type DestinationInfo struct {
	TypeOptions           TypeOptions    `json:"typeOptions" yaml:"typeOptions"`
	ValidOperators        []Operator     `json:"validOperators,omitempty" yaml:"validOperators,omitempty"`
	ExtraPropertiesSchema map[string]any `json:"extraPropertiesSchema,omitempty" yaml:"extraPropertiesSchema,omitempty"`
}

// AllowedOperators returns the destination's operators, defaulting to all.
func (d DestinationInfo) AllowedOperators() []Operator {
	if len(d.ValidOperators) == 0 {
		return AllOperators()
	}
	out := make([]Operator, len(d.ValidOperators))
	copy(out, d.ValidOperators)
	return out
}

// TypeOptions names the rule "type" field and the values it may take.
type TypeOptions struct {
	FieldName string   `json:"fieldName" yaml:"fieldName"`
	Options   []string `json:"options" yaml:"options"`
}

// FieldType is the primitive type of a schema leaf path.
// It decides the value shape a condition on that path must carry.
type FieldType string

const (
	FieldTypeAny     FieldType = ""
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
)

// ParseFieldType maps a JSON Schema "type" keyword to a FieldType.
// integer and number are numeric; boolean is boolean; everything else is text.
func ParseFieldType(schemaType string) FieldType {
	switch schemaType {
	case "integer", "number":
		return FieldTypeNumber
	case "boolean":
		return FieldTypeBoolean
	default:
		return FieldTypeString
	}
}

// FieldSet is the flattened view of a category schema: the ordered leaf
// paths conditions may reference and the primitive type of each.
type FieldSet struct {
	Paths []string             `json:"paths" yaml:"paths"`
	Types map[string]FieldType `json:"types" yaml:"types"`
}

// Has reports whether path is a known leaf path.
func (f FieldSet) Has(path string) bool {
	_, ok := f.Types[path]
	return ok
}

// TypeOf returns the type of path, or FieldTypeAny when unknown.
func (f FieldSet) TypeOf(path string) FieldType {
	if t, ok := f.Types[path]; ok {
		return t
	}
	return FieldTypeAny
}

// Empty reports whether the set has no known paths.
func (f FieldSet) Empty() bool {
	return len(f.Paths) == 0
}

// Resource limits enforced on rule trees.
const (
	// MaxTreeDepth prevents stack exhaustion in recursive validation and rendering.
	MaxTreeDepth = 16

	// MaxGroupChildren bounds the fan-out of a single AND/OR group.
	MaxGroupChildren = 64

	// MaxInOperatorValues limits IN operator list size to bound comparison cost.
	MaxInOperatorValues = 64

	// MaxNameLength bounds rule names shown in listings.
	MaxNameLength = 256

	// MaxPathDepth bounds the number of segments in a condition field path.
	MaxPathDepth = 16

	// MaxNestedWildcards bounds wildcard fan-out when testing rules against payloads.
	MaxNestedWildcards = 2
)
