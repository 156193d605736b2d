// Package editor holds the in-memory state of one rule being edited: the
// current tree, its undo/redo history and the validation state derived from
// it.
//
// Every edit addresses a node by its stable id, produces a new tree through
// the functional updates in package rules, records that tree in history and
// revalidates. Validation state is keyed by node id, so deleting or moving a
// node never requires re-keying anything but the affected group's
// aggregator.
package editor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/validation"
)

// Session is not safe for concurrent use.
type Session struct {
	rule      types.Rule
	tree      *types.Node
	validator *validation.Validator
	history   *rules.History
	logger    *zap.Logger

	errors     validation.FieldErrors
	nodeErrors map[types.NodeID]validation.FieldErrors
	groups     map[types.NodeID]*rules.Aggregator
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger edits are traced to at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHistoryLimit bounds the number of undo snapshots.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.history = rules.NewHistory(s.tree, rules.WithLimit(n)) }
}

// New starts a session on rule. A rule without a tree starts from an empty
// condition. A nil validator accepts any field with string values.
func New(rule types.Rule, v *validation.Validator, opts ...Option) *Session {
	tree := rule.Rule
	if tree == nil {
		tree = rules.NewBase()
	}
	if v == nil {
		v = validation.Build(types.FieldSet{}, nil)
	}
	s := &Session{
		rule:      rule,
		tree:      tree,
		validator: v,
		logger:    zap.NewNop(),
		groups:    make(map[types.NodeID]*rules.Aggregator),
	}
	s.history = rules.NewHistory(tree)
	for _, opt := range opts {
		opt(s)
	}
	s.revalidate()
	return s
}

// Tree returns the current tree. Trees are never mutated in place, so the
// result stays valid after further edits.
func (s *Session) Tree() *types.Node { return s.tree }

// Rule returns the edited rule with the current tree.
func (s *Session) Rule() types.Rule {
	r := s.rule
	r.Rule = s.tree
	return r
}

// Errors returns every validation error keyed by path from the root.
func (s *Session) Errors() validation.FieldErrors {
	out := make(validation.FieldErrors, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// NodeErrors returns the errors reported on node id itself.
func (s *Session) NodeErrors(id types.NodeID) validation.FieldErrors {
	return s.nodeErrors[id]
}

// GroupStatus returns the rollup of group id's children.
func (s *Session) GroupStatus(id types.NodeID) (rules.Rollup, bool) {
	agg, ok := s.groups[id]
	if !ok {
		return rules.Rollup{}, false
	}
	return agg.Rollup(), true
}

// CanSave reports whether the tree has no validation errors.
func (s *Session) CanSave() bool { return len(s.errors) == 0 }

// CanUndo reports whether Undo would change the tree.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would change the tree.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// SetField sets the field path of condition id.
func (s *Session) SetField(id types.NodeID, field string) error {
	return s.edit("set-field", id, func(n *types.Node) (*types.Node, error) {
		return rules.WithField(n, field)
	})
}

// SetOperator sets the operator of condition id, reshaping its value.
func (s *Session) SetOperator(id types.NodeID, op types.Operator) error {
	return s.edit("set-operator", id, func(n *types.Node) (*types.Node, error) {
		return rules.WithOperator(n, op)
	})
}

// SetValue sets the value of condition id. The value must match the
// operator's shape.
func (s *Session) SetValue(id types.NodeID, value types.Value) error {
	return s.edit("set-value", id, func(n *types.Node) (*types.Node, error) {
		return rules.WithValue(n, value)
	})
}

// AddCondition appends an empty condition to group id and returns its id.
func (s *Session) AddCondition(groupID types.NodeID) (types.NodeID, error) {
	child := rules.NewBase()
	return child.ID, s.append(groupID, child)
}

// AddGroup appends a nested group of kind, holding one empty condition, to
// group id and returns the new group's id.
func (s *Session) AddGroup(groupID types.NodeID, kind types.NodeKind) (types.NodeID, error) {
	if !kind.IsGroup() {
		return "", fmt.Errorf("%w: cannot add %s group", types.ErrNotAGroup, kind)
	}
	child := rules.NewGroup(kind, rules.NewBase())
	return child.ID, s.append(groupID, child)
}

func (s *Session) append(groupID types.NodeID, child *types.Node) error {
	tree, err := rules.AppendChild(s.tree, groupID, child)
	if err != nil {
		return err
	}
	s.commit("append", groupID, tree)
	return nil
}

// Convert wraps condition id as the sole child of a new group of kind and
// returns the group's id.
func (s *Session) Convert(id types.NodeID, kind types.NodeKind) (types.NodeID, error) {
	var groupID types.NodeID
	err := s.edit("convert", id, func(n *types.Node) (*types.Node, error) {
		g, err := rules.Promote(n, kind)
		if err != nil {
			return nil, err
		}
		groupID = g.ID
		return g, nil
	})
	return groupID, err
}

// Delete removes node id. A group left empty is removed from its parent in
// turn; deleting the last node resets the tree to an empty condition.
func (s *Session) Delete(id types.NodeID) error {
	tree, out := rules.Delete(s.tree, id)
	if !out.Found {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	for _, removed := range out.Removed {
		delete(s.groups, removed)
	}
	if agg, ok := s.groups[out.Parent]; ok && !out.RootReset {
		agg.ChildDeleted(out.Index)
	}
	s.commit("delete", id, tree)
	return nil
}

// Replace swaps in a whole tree, as when a rule is edited as JSON.
func (s *Session) Replace(tree *types.Node) error {
	if tree == nil {
		return fmt.Errorf("%w: nil tree", types.ErrInvalidRule)
	}
	s.commit("replace", tree.ID, tree)
	return nil
}

// Undo restores the previous snapshot. It is a no-op at the oldest one.
func (s *Session) Undo() bool {
	tree, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.restore(tree)
	return true
}

// Redo reapplies the next snapshot. It is a no-op at the newest one.
func (s *Session) Redo() bool {
	tree, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.restore(tree)
	return true
}

func (s *Session) edit(op string, id types.NodeID, fn func(*types.Node) (*types.Node, error)) error {
	tree, err := rules.Update(s.tree, id, fn)
	if err != nil {
		return err
	}
	s.commit(op, id, tree)
	return nil
}

// commit installs tree, records it and revalidates.
func (s *Session) commit(op string, id types.NodeID, tree *types.Node) {
	s.tree = tree
	recorded := s.history.Record(tree)
	s.revalidate()
	s.logger.Debug("rule edited",
		zap.String("op", op),
		zap.String("node", string(id)),
		zap.Bool("recorded", recorded),
		zap.Int("errors", len(s.errors)))
}

// restore installs a history snapshot without recording it. Snapshots are
// clones that keep node ids, so aggregators stay attached to their groups.
func (s *Session) restore(tree *types.Node) {
	s.tree = tree
	s.revalidate()
}

// revalidate runs the validator and feeds every group's aggregator from the
// leaves up.
func (s *Session) revalidate() {
	res := s.validator.ValidateTree(s.tree)
	s.errors = res.Errors
	s.nodeErrors = res.Nodes

	live := make(map[types.NodeID]bool)
	s.feed(s.tree, res, live)
	for id := range s.groups {
		if !live[id] {
			delete(s.groups, id)
		}
	}
}

// feed returns the status n reports to its parent: its own error count plus,
// for groups, the rollup of its children.
func (s *Session) feed(n *types.Node, res validation.TreeResult, live map[types.NodeID]bool) rules.ChildStatus {
	if n == nil {
		return rules.ChildStatus{HasError: true, ErrorCount: 1}
	}
	own := len(res.Nodes[n.ID])
	if !n.Kind.IsGroup() {
		return rules.ChildStatus{HasError: own > 0, ErrorCount: own}
	}

	live[n.ID] = true
	agg, ok := s.groups[n.ID]
	if !ok {
		agg = rules.NewAggregator()
		s.groups[n.ID] = agg
	}
	for i, child := range n.Children {
		st := s.feed(child, res, live)
		agg.ChildValidationChanged(i, st.HasError, st.ErrorCount)
	}
	roll := agg.ChildCountChanged(len(n.Children))

	total := roll.ErrorCount + own
	return rules.ChildStatus{HasError: total > 0, ErrorCount: total}
}
