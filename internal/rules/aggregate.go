// internal/rules/aggregate.go
package rules

import "sort"

/*
 * Validation rollup for one group's direct children.
 *
 * Entries are keyed by child index and must stay aligned with the group's
 * children: ChildDeleted shifts every later entry down by one, and
 * ChildCountChanged drops entries past the end.
 *
 * The rollup is a pure function of the entries:
 *   HasErrors  = OR over entries
 *   ErrorCount = SUM over entries
 *
 * A group reports its own rollup to its parent as a single child status,
 * which is how the rollup recurses up the tree.
 */

// ChildStatus is the validation state reported for one child.
type ChildStatus struct {
	HasError   bool
	ErrorCount int
}

// Rollup is the group-level validation summary.
type Rollup struct {
	HasErrors  bool
	ErrorCount int
}

// Status converts a rollup to the status a group reports upward.
func (r Rollup) Status() ChildStatus {
	return ChildStatus{HasError: r.HasErrors, ErrorCount: r.ErrorCount}
}

// Aggregator is not safe for concurrent use.
type Aggregator struct {
	entries map[int]ChildStatus
}

// NewAggregator returns an aggregator with no tracked children.
func NewAggregator() *Aggregator {
	return &Aggregator{entries: make(map[int]ChildStatus)}
}

// ChildValidationChanged upserts the status at index. changed is false when
// the entry already held the same status. Negative indices are ignored.
func (a *Aggregator) ChildValidationChanged(index int, hasError bool, errorCount int) (Rollup, bool) {
	if index < 0 {
		return a.Rollup(), false
	}
	if errorCount < 0 {
		errorCount = 0
	}
	next := ChildStatus{HasError: hasError, ErrorCount: errorCount}
	if prev, ok := a.entries[index]; ok && prev == next {
		return a.Rollup(), false
	}
	a.entries[index] = next
	return a.Rollup(), true
}

// ChildDeleted removes the entry at index and shifts later entries down.
func (a *Aggregator) ChildDeleted(index int) Rollup {
	if index < 0 {
		return a.Rollup()
	}
	shifted := make(map[int]ChildStatus, len(a.entries))
	for i, st := range a.entries {
		switch {
		case i < index:
			shifted[i] = st
		case i > index:
			shifted[i-1] = st
		}
	}
	a.entries = shifted
	return a.Rollup()
}

// ChildCountChanged drops entries at indices >= n.
func (a *Aggregator) ChildCountChanged(n int) Rollup {
	for i := range a.entries {
		if i >= n {
			delete(a.entries, i)
		}
	}
	return a.Rollup()
}

// Rollup computes the group summary.
func (a *Aggregator) Rollup() Rollup {
	var r Rollup
	for _, st := range a.entries {
		r.HasErrors = r.HasErrors || st.HasError
		r.ErrorCount += st.ErrorCount
	}
	return r
}

// Status returns the tracked status of a child.
func (a *Aggregator) Status(index int) (ChildStatus, bool) {
	st, ok := a.entries[index]
	return st, ok
}

// Indices returns tracked indices in ascending order.
func (a *Aggregator) Indices() []int {
	out := make([]int, 0, len(a.entries))
	for i := range a.entries {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
