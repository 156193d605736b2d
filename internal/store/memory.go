package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/ruledesk/internal/types"
)

// Operation names passed to a FaultInjector.
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// FaultInjector decides whether a call to op fails with
// types.ErrSimulatedFailure. It is consulted after the simulated latency and
// before any state is read or written.
type FaultInjector func(op string) bool

// FailOn fails every call to the listed operations.
func FailOn(ops ...string) FaultInjector {
	set := make(map[string]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return func(op string) bool { return set[op] }
}

// FailEvery fails every nth call, counting all operations.
func FailEvery(n int) FaultInjector {
	var mu sync.Mutex
	calls := 0
	return func(string) bool {
		if n <= 0 {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		calls++
		return calls%n == 0
	}
}

// MemoryStore is an in-process Repository. Instances are independent; tests
// construct their own rather than sharing one.
type MemoryStore struct {
	mu      sync.Mutex
	rules   []types.Rule
	index   map[types.RuleID]int
	latency time.Duration
	faults  FaultInjector
	now     func() time.Time
	logger  *zap.Logger
	seed    []types.Rule
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithLatency delays every call by d, honouring context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.latency = d }
}

// WithFaults installs a fault injector.
func WithFaults(f FaultInjector) MemoryOption {
	return func(s *MemoryStore) { s.faults = f }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithLogger sets the logger used for simulated failures.
func WithLogger(l *zap.Logger) MemoryOption {
	return func(s *MemoryStore) { s.logger = l }
}

// WithSeed preloads rules, typically from ParseFixtures. Rules without an id
// get one; missing timestamps default to the store clock.
func WithSeed(seed []types.Rule) MemoryOption {
	return func(s *MemoryStore) { s.seed = append(s.seed, seed...) }
}

// NewMemoryStore returns an empty store configured by opts.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		index:  make(map[types.RuleID]int),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range s.seed {
		s.insert(r)
	}
	s.seed = nil
	return s
}

func (s *MemoryStore) insert(r types.Rule) {
	if r.ID == "" {
		r.ID = types.NewRuleID()
	}
	now := stamp(s.now())
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if i, ok := s.index[r.ID]; ok {
		s.rules[i] = cloneRule(r)
		return
	}
	s.index[r.ID] = len(s.rules)
	s.rules = append(s.rules, cloneRule(r))
}

// enter simulates latency and faults. The lock is not held while waiting.
func (s *MemoryStore) enter(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if s.faults != nil && s.faults(op) {
		s.logger.Warn("simulated store failure", zap.String("op", op))
		return fmt.Errorf("%s: %w", op, types.ErrSimulatedFailure)
	}
	return nil
}

// List returns copies of every rule in creation order.
func (s *MemoryStore) List(ctx context.Context) ([]types.Rule, error) {
	if err := s.enter(ctx, OpList); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = cloneRule(r)
	}
	return out, nil
}

// Get returns a copy of rule id.
func (s *MemoryStore) Get(ctx context.Context, id types.RuleID) (types.Rule, error) {
	if err := s.enter(ctx, OpGet); err != nil {
		return types.Rule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return types.Rule{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return cloneRule(s.rules[i]), nil
}

// Create stores draft under a new UUIDv7.
func (s *MemoryStore) Create(ctx context.Context, draft types.RuleDraft) (types.Rule, error) {
	if err := checkDraft(draft); err != nil {
		return types.Rule{}, err
	}
	if err := s.enter(ctx, OpCreate); err != nil {
		return types.Rule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := stamp(s.now())
	r := materialize(types.NewRuleID(), draft, now, now)
	s.index[r.ID] = len(s.rules)
	s.rules = append(s.rules, r)
	return cloneRule(r), nil
}

// Update replaces rule id's content.
func (s *MemoryStore) Update(ctx context.Context, id types.RuleID, draft types.RuleDraft) (types.Rule, error) {
	if err := checkDraft(draft); err != nil {
		return types.Rule{}, err
	}
	if err := s.enter(ctx, OpUpdate); err != nil {
		return types.Rule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return types.Rule{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	r := materialize(id, draft, s.rules[i].CreatedAt, stamp(s.now()))
	s.rules[i] = r
	return cloneRule(r), nil
}

// Delete removes rule id.
func (s *MemoryStore) Delete(ctx context.Context, id types.RuleID) error {
	if err := s.enter(ctx, OpDelete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.rules); j++ {
		s.index[s.rules[j].ID] = j
	}
	return nil
}
