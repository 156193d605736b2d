// Package store persists rules.
//
// Two implementations share the Repository contract: MemoryStore, an
// injected in-process store with simulated latency and fault injection for
// demos and tests, and SQLStore, backed by SQLite or PostgreSQL through the
// db package.
//
// Both stores hand out copies. Mutating a returned Rule never changes what
// the store holds, and a failed operation leaves the stored state untouched.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/types"
)

// Repository is the rule persistence contract consumed by the admin API.
type Repository interface {
	// List returns every rule in creation order.
	List(ctx context.Context) ([]types.Rule, error)

	// Get returns the rule with id or types.ErrRuleNotFound.
	Get(ctx context.Context, id types.RuleID) (types.Rule, error)

	// Create assigns an id and timestamps to draft and stores it.
	Create(ctx context.Context, draft types.RuleDraft) (types.Rule, error)

	// Update replaces the content of rule id, keeping its id and creation time.
	Update(ctx context.Context, id types.RuleID, draft types.RuleDraft) (types.Rule, error)

	// Delete removes rule id.
	Delete(ctx context.Context, id types.RuleID) error
}

// checkDraft rejects drafts that could never be rendered or listed. Full
// schema validation happens before a draft reaches the store.
func checkDraft(draft types.RuleDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return fmt.Errorf("%w: name is required", types.ErrInvalidRule)
	}
	if draft.Rule == nil {
		return fmt.Errorf("%w: rule tree is required", types.ErrInvalidRule)
	}
	return nil
}

// materialize builds a stored rule from draft. Content is deep-copied.
func materialize(id types.RuleID, draft types.RuleDraft, created, updated time.Time) types.Rule {
	return types.Rule{
		ID:              id,
		Name:            draft.Name,
		Description:     draft.Description,
		Destination:     draft.Destination,
		Category:        draft.Category,
		Type:            draft.Type,
		Rule:            rules.Clone(draft.Rule),
		ExtraProperties: cloneProps(draft.ExtraProperties),
		CreatedAt:       created,
		UpdatedAt:       updated,
	}
}

func cloneRule(r types.Rule) types.Rule {
	return materialize(r.ID, r.Draft(), r.CreatedAt, r.UpdatedAt)
}

func cloneProps(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneProps(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	default:
		return v
	}
}

// stamp truncates to milliseconds, the resolution both stores persist.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
