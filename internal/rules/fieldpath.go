// internal/rules/fieldpath.go
package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Field path parsing and resolution against JSON metadata.
 *
 * Condition fields are dot paths into a schema ("metadata.tags.0",
 * "assets.*.format"). ParseFieldPath turns them into PathSegment chains:
 * numeric segments index arrays, "*" matches any element or key.
 *
 * Resolve implements ANY semantics for wildcards (first element that
 * resolves wins). ResolveEach visits every element instead, letting rule
 * tests ask whether any element satisfies a condition. Object wildcards
 * iterate sorted keys so the same payload always resolves the same way.
 *
 * Limits: MaxPathDepth (16) segments, MaxNestedWildcards (2) wildcards.
 * Both are checked at parse and at resolution time.
 */

// ResolveResult contains the resolved value and the actual path taken.
type ResolveResult struct {
	Value        any                 // resolved value (nil if not found)
	ResolvedPath []types.PathSegment // path with wildcards replaced by actual indices
	Found        bool                // true if path resolved to a value
}

// ParseFieldPath splits a dot path into segments.
// Returns ErrPathTooDeep or ErrTooManyWildcards when limits are exceeded.
func ParseFieldPath(field string) ([]types.PathSegment, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("%w: empty field path", types.ErrFieldNotFound)
	}

	parts := strings.Split(field, ".")
	if len(parts) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}

	path := make([]types.PathSegment, 0, len(parts))
	wildcards := 0
	for _, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: empty segment in %q", types.ErrFieldNotFound, field)
		case part == "*":
			wildcards++
			path = append(path, types.PathSegment{Wildcard: true})
		default:
			if idx, err := strconv.Atoi(part); err == nil && idx >= 0 {
				path = append(path, types.PathSegment{Key: part, Index: idx, IsIndex: true})
			} else {
				path = append(path, types.PathSegment{Key: part})
			}
		}
	}
	if wildcards > types.MaxNestedWildcards {
		return nil, types.ErrTooManyWildcards
	}
	return path, nil
}

// Resolve traverses data following path segments.
// Returns ErrPathTooDeep if path exceeds MaxPathDepth.
// Returns ErrTooManyWildcards if path contains > MaxNestedWildcards wildcards.
// Returns ErrFieldNotFound if path does not exist in data.
func Resolve(path []types.PathSegment, data json.RawMessage) (ResolveResult, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ResolveResult{}, err
	}
	return ResolveValue(path, parsed)
}

// ResolveValue is Resolve over an already decoded payload.
func ResolveValue(path []types.PathSegment, data any) (ResolveResult, error) {
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrPathTooDeep
	}

	wildcardCount := 0
	for _, seg := range path {
		if seg.Wildcard {
			wildcardCount++
		}
	}
	if wildcardCount > types.MaxNestedWildcards {
		return ResolveResult{}, types.ErrTooManyWildcards
	}

	return resolveRecursive(path, data, nil)
}

// resolveRecursive traverses nested JSON structures following path segments.
// Accumulates the resolved path with actual indices/keys replacing wildcards
// so match diagnostics name the concrete element.
func resolveRecursive(path []types.PathSegment, current any, resolvedSoFar []types.PathSegment) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{
			Value:        current,
			ResolvedPath: resolvedSoFar,
			Found:        true,
		}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				resolved := appendSegment(resolvedSoFar, types.PathSegment{Key: key})
				result, err := resolveRecursive(remaining, v[key], resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		// Numeric segments also name object keys ("0" in {"0": ...}).
		val, ok := v[segmentKey(seg)]
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val, appendSegment(resolvedSoFar, seg))

	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				resolved := appendSegment(resolvedSoFar, types.PathSegment{Key: strconv.Itoa(i), Index: i, IsIndex: true})
				result, err := resolveRecursive(remaining, elem, resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if !seg.IsIndex {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if seg.Index < 0 || seg.Index >= len(v) {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, v[seg.Index], appendSegment(resolvedSoFar, seg))

	default:
		// null or scalar with path remaining
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

// ResolveEach calls fn for every value path resolves to, in deterministic
// order, until fn returns true. Wildcards fan out to every element instead of
// stopping at the first one that resolves. Returns whether fn accepted a value.
func ResolveEach(path []types.PathSegment, data any, fn func(ResolveResult) bool) bool {
	if len(path) > types.MaxPathDepth {
		return false
	}
	return resolveEach(path, data, nil, fn)
}

func resolveEach(path []types.PathSegment, current any, resolvedSoFar []types.PathSegment, fn func(ResolveResult) bool) bool {
	if len(path) == 0 {
		return fn(ResolveResult{Value: current, ResolvedPath: resolvedSoFar, Found: true})
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				if resolveEach(remaining, v[key], appendSegment(resolvedSoFar, types.PathSegment{Key: key}), fn) {
					return true
				}
			}
			return false
		}
		val, ok := v[segmentKey(seg)]
		if !ok {
			return false
		}
		return resolveEach(remaining, val, appendSegment(resolvedSoFar, seg), fn)

	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				idx := types.PathSegment{Key: strconv.Itoa(i), Index: i, IsIndex: true}
				if resolveEach(remaining, elem, appendSegment(resolvedSoFar, idx), fn) {
					return true
				}
			}
			return false
		}
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(v) {
			return false
		}
		return resolveEach(remaining, v[seg.Index], appendSegment(resolvedSoFar, seg), fn)

	default:
		return false
	}
}

func segmentKey(seg types.PathSegment) string {
	if seg.Key == "" && seg.IsIndex {
		return strconv.Itoa(seg.Index)
	}
	return seg.Key
}

// appendSegment copies before appending so sibling wildcard branches never
// share a backing array.
func appendSegment(path []types.PathSegment, seg types.PathSegment) []types.PathSegment {
	out := make([]types.PathSegment, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}
