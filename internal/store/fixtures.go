package store

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/solatis/ruledesk/internal/types"
)

// fixtureFile is the on-disk seed format. JSON documents parse too, since
// JSON is valid YAML.
//
//	rules:
//	  - name: Thumbnails
//	    category: partners-images
//	    destination: A
//	    type: thumbnail
//	    rule:
//	      AND:
//	        - {field: metadata.format, operator: EQUALS, value: jpg}
type fixtureFile struct {
	Rules []map[string]any `yaml:"rules"`
}

// ParseFixtures decodes seed rules. Each entry is re-encoded as JSON and
// decoded through types.Rule so the tree takes the same path as API input.
func ParseFixtures(data []byte) ([]types.Rule, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	out := make([]types.Rule, 0, len(f.Rules))
	for i, entry := range f.Rules {
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		var r types.Rule
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		if err := checkDraft(r.Draft()); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadFixtures reads and parses a fixture file.
func LoadFixtures(path string) ([]types.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// Seed creates each rule in repo as a new draft and returns how many were
// created. Ids and timestamps in the fixtures are not preserved.
func Seed(ctx context.Context, repo Repository, seed []types.Rule) (int, error) {
	for i, r := range seed {
		if _, err := repo.Create(ctx, r.Draft()); err != nil {
			return i, fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
	}
	return len(seed), nil
}
