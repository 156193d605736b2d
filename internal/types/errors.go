package types

import "errors"

// Sentinel errors for RuleDesk operations.
var (
	// ErrRuleNotFound indicates no rule exists with the requested ID.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidRule indicates a rule failed validation and was not persisted.
	ErrInvalidRule = errors.New("rule failed validation")

	// ErrSimulatedFailure is returned by the in-memory store when a fault is injected.
	ErrSimulatedFailure = errors.New("simulated service failure")

	// ErrUnknownCategory indicates the category is not present in the catalog.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownDestination indicates the destination is not defined for the category.
	ErrUnknownDestination = errors.New("unknown destination")

	// ErrUnknownSchema indicates a category references a schema the catalog lacks.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrUnknownNodeKind indicates a node is neither a condition nor an AND/OR group.
	ErrUnknownNodeKind = errors.New("unknown rule node kind")

	// ErrNodeNotFound indicates an editor operation referenced a missing node.
	ErrNodeNotFound = errors.New("rule node not found")

	// ErrNotAGroup indicates a group operation targeted a base condition.
	ErrNotAGroup = errors.New("rule node is not a group")

	// ErrNotACondition indicates a condition operation targeted a group.
	ErrNotACondition = errors.New("rule node is not a condition")

	// ErrInvalidOperator indicates an unknown operator name.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrTreeTooDeep indicates a tree exceeds MaxTreeDepth.
	ErrTreeTooDeep = errors.New("rule tree exceeds maximum depth")

	// ErrTooManyChildren indicates a group exceeds MaxGroupChildren.
	ErrTooManyChildren = errors.New("rule group has too many children")

	// ErrTooManyInValues indicates an IN operator exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTooManyWildcards indicates a field path exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("field path has too many wildcards")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")
)
