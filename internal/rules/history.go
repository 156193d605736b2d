// internal/rules/history.go
package rules

import "github.com/solatis/ruledesk/internal/types"

/*
 * Undo/redo history over rule tree snapshots.
 *
 * State: an ordered snapshot sequence and a cursor, 0 <= cursor < len.
 *   - Record appends after the cursor, discarding the redo tail.
 *   - Undo/Redo move the cursor and never change the sequence.
 *   - Recording a tree equal to the snapshot at the cursor is a no-op.
 *
 * Editors call Record explicitly at the point of each deliberate edit.
 * Because Record compares against the snapshot at the cursor, an editor that
 * echoes back the tree Undo/Redo just returned never creates an entry.
 *
 * Snapshots are deep copies, so callers may keep using the trees they pass
 * in or receive.
 */

// History is not safe for concurrent use; each editor session owns one.
type History struct {
	snapshots []*types.Node
	cursor    int
	limit     int
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithLimit bounds the number of snapshots kept; the oldest are dropped.
// Values below 2 are ignored.
func WithLimit(n int) HistoryOption {
	return func(h *History) {
		if n >= 2 {
			h.limit = n
		}
	}
}

// NewHistory starts a history holding a copy of initial.
func NewHistory(initial *types.Node, opts ...HistoryOption) *History {
	h := &History{snapshots: []*types.Node{Clone(initial)}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Record appends tree as a new snapshot. Returns false when nothing was
// recorded.
func (h *History) Record(tree *types.Node) bool {
	if Equal(tree, h.snapshots[h.cursor]) {
		return false
	}

	h.snapshots = append(h.snapshots[:h.cursor+1], Clone(tree))
	h.cursor = len(h.snapshots) - 1

	if h.limit > 0 && len(h.snapshots) > h.limit {
		drop := len(h.snapshots) - h.limit
		kept := make([]*types.Node, h.limit)
		copy(kept, h.snapshots[drop:])
		h.snapshots = kept
		h.cursor -= drop
	}
	return true
}

// Undo steps back one snapshot. Returns false at the oldest snapshot.
func (h *History) Undo() (*types.Node, bool) {
	if h.cursor == 0 {
		return nil, false
	}
	h.cursor--
	return Clone(h.snapshots[h.cursor]), true
}

// Redo steps forward one snapshot. Returns false at the newest snapshot.
func (h *History) Redo() (*types.Node, bool) {
	if h.cursor >= len(h.snapshots)-1 {
		return nil, false
	}
	h.cursor++
	return Clone(h.snapshots[h.cursor]), true
}

// Current returns a copy of the snapshot at the cursor.
func (h *History) Current() *types.Node {
	return Clone(h.snapshots[h.cursor])
}

// Len returns the number of snapshots.
func (h *History) Len() int { return len(h.snapshots) }

// Cursor returns the index of the current snapshot.
func (h *History) Cursor() int { return h.cursor }

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool { return h.cursor < len(h.snapshots)-1 }
