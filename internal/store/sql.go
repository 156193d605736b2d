package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/solatis/ruledesk/internal/core/db"
	"github.com/solatis/ruledesk/internal/types"
)

// SQLStore is a Repository over the rules table.
type SQLStore struct {
	conn    *sqlx.DB
	queries *db.Queries
	now     func() time.Time
}

// NewSQLStore wraps an open, migrated connection.
func NewSQLStore(conn *sqlx.DB) (*SQLStore, error) {
	q, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &SQLStore{conn: conn, queries: q, now: time.Now}, nil
}

// ruleRow mirrors one row of the rules table.
type ruleRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Destination string `db:"destination"`
	Category    string `db:"category"`
	RuleType    string `db:"rule_type"`
	RuleJSON    string `db:"rule_json"`
	ExtraJSON   string `db:"extra_properties_json"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r ruleRow) decode() (types.Rule, error) {
	tree, err := types.ParseNode([]byte(r.RuleJSON))
	if err != nil {
		return types.Rule{}, fmt.Errorf("decode rule %s tree: %w", r.ID, err)
	}
	var extra map[string]any
	if r.ExtraJSON != "" {
		if err := json.Unmarshal([]byte(r.ExtraJSON), &extra); err != nil {
			return types.Rule{}, fmt.Errorf("decode rule %s extra properties: %w", r.ID, err)
		}
	}
	if len(extra) == 0 {
		extra = nil
	}
	return types.Rule{
		ID:              types.RuleID(r.ID),
		Name:            r.Name,
		Description:     r.Description,
		Destination:     r.Destination,
		Category:        r.Category,
		Type:            r.RuleType,
		Rule:            tree,
		ExtraProperties: extra,
		CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:       time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}

// encodeDraft returns the tree and extra-properties columns.
func encodeDraft(draft types.RuleDraft) (tree, extra string, err error) {
	treeJSON, err := json.Marshal(draft.Rule)
	if err != nil {
		return "", "", fmt.Errorf("encode rule tree: %w", err)
	}
	props := draft.ExtraProperties
	if props == nil {
		props = map[string]any{}
	}
	extraJSON, err := json.Marshal(props)
	if err != nil {
		return "", "", fmt.Errorf("encode extra properties: %w", err)
	}
	return string(treeJSON), string(extraJSON), nil
}

// List returns every rule in creation order.
func (s *SQLStore) List(ctx context.Context) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]types.Rule, 0, len(rows))
	for _, row := range rows {
		r, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Get returns rule id.
func (s *SQLStore) Get(ctx context.Context, id types.RuleID) (types.Rule, error) {
	var row ruleRow
	if err := s.queries.Get(ctx, "get-rule", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Rule{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
		}
		return types.Rule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return row.decode()
}

// Create inserts draft under a new UUIDv7.
func (s *SQLStore) Create(ctx context.Context, draft types.RuleDraft) (types.Rule, error) {
	if err := checkDraft(draft); err != nil {
		return types.Rule{}, err
	}
	tree, extra, err := encodeDraft(draft)
	if err != nil {
		return types.Rule{}, err
	}

	id := types.NewRuleID()
	now := stamp(s.now())
	if _, err := s.queries.Exec(ctx, "insert-rule",
		string(id), draft.Name, draft.Description, draft.Destination, draft.Category, draft.Type,
		tree, extra, now.UnixMilli(), now.UnixMilli(),
	); err != nil {
		return types.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	return materialize(id, draft, now, now), nil
}

// Update replaces rule id's content.
func (s *SQLStore) Update(ctx context.Context, id types.RuleID, draft types.RuleDraft) (types.Rule, error) {
	if err := checkDraft(draft); err != nil {
		return types.Rule{}, err
	}
	tree, extra, err := encodeDraft(draft)
	if err != nil {
		return types.Rule{}, err
	}

	now := stamp(s.now())
	res, err := s.queries.Exec(ctx, "update-rule",
		draft.Name, draft.Description, draft.Destination, draft.Category, draft.Type,
		tree, extra, now.UnixMilli(), string(id),
	)
	if err != nil {
		return types.Rule{}, fmt.Errorf("update rule %s: %w", id, err)
	}
	if err := requireRow(res, id); err != nil {
		return types.Rule{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes rule id.
func (s *SQLStore) Delete(ctx context.Context, id types.RuleID) error {
	res, err := s.queries.Exec(ctx, "delete-rule", string(id))
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return requireRow(res, id)
}

// Count returns the number of stored rules.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.queries.Get(ctx, "count-rules", &n); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, id types.RuleID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return nil
}
