package rules

import (
	"encoding/json"
	"sync"

	"github.com/solatis/ruledesk/internal/types"
)

// maxCompiledEntries bounds the compiled-tree cache; it is cleared when full.
const maxCompiledEntries = 256

// Engine compiles and tests rules, caching compiled trees by category and
// tree content. Safe for concurrent use by API handlers.
type Engine struct {
	mu       sync.Mutex
	compiled map[string]*CompiledNode
}

// NewEngine creates a new rules engine instance.
func NewEngine() *Engine {
	return &Engine{compiled: make(map[string]*CompiledNode)}
}

// Test compiles rule (or reuses a cached compilation) and evaluates it
// against payload.
func (e *Engine) Test(rule *types.Rule, fields types.FieldSet, payload json.RawMessage) (MatchResult, error) {
	compiled, err := e.Compile(rule, fields)
	if err != nil {
		return MatchResult{}, err
	}
	return Evaluate(compiled, payload)
}

// Compile returns the compiled form of rule.Rule.
func (e *Engine) Compile(rule *types.Rule, fields types.FieldSet) (*CompiledNode, error) {
	tree, err := json.Marshal(rule.Rule)
	if err != nil {
		return nil, err
	}
	key := rule.Category + "\x00" + string(tree)

	e.mu.Lock()
	if c, ok := e.compiled[key]; ok {
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	c, err := Compile(rule.Rule, fields)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if len(e.compiled) >= maxCompiledEntries {
		e.compiled = make(map[string]*CompiledNode)
	}
	e.compiled[key] = c
	e.mu.Unlock()
	return c, nil
}

// Reset drops every cached compilation. Called when the catalog reloads,
// since field types feed compilation.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.compiled = make(map[string]*CompiledNode)
	e.mu.Unlock()
}
