package validation

import (
	"sort"
	"strings"
)

// FieldErrors maps a dotted field path ("AND.0.operator") to the first
// message reported for it. An empty map means valid.
type FieldErrors map[string]string

// add records msg for path unless the path already has a message.
func (e FieldErrors) add(path, msg string) {
	if _, ok := e[path]; !ok {
		e[path] = msg
	}
}

// merge copies other into e under prefix, keeping e's existing messages.
func (e FieldErrors) merge(prefix string, other FieldErrors) {
	for path, msg := range other {
		e.add(joinPath(prefix, path), msg)
	}
}

// Paths returns the failing paths in sorted order.
func (e FieldErrors) Paths() []string {
	out := make([]string, 0, len(e))
	for p := range e {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Error renders the errors as "path: message" pairs, for logs and CLI output.
func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, p := range e.Paths() {
		parts = append(parts, displayPath(p)+": "+e[p])
	}
	return strings.Join(parts, "; ")
}

func displayPath(p string) string {
	if p == "" {
		return "(root)"
	}
	return p
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}
