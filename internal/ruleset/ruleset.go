// Package ruleset loads named rules from a YAML file and imports them into a
// rule store.
//
// File format:
//
//	rules:
//	  - name: senior-sales
//	    rule: "age > 30 AND department == 'Sales'"
//	  - name: well-paid
//	    rule: "salary >= 50000"
package ruleset

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rulekit/rulekit/rulekit"
)

// Entry is one named rule in a ruleset file.
type Entry struct {
	Name string `yaml:"name"`
	Rule string `yaml:"rule"`
}

// Set is the decoded content of a ruleset file.
type Set struct {
	Rules []Entry `yaml:"rules"`
}

// Load reads and parses the ruleset file at path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset %q: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("ruleset %q: %w", path, err)
	}
	return set, nil
}

// Parse decodes a ruleset and checks that every entry has a rule string.
// Rule syntax is checked later, when the set is imported.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}
	for i, e := range set.Rules {
		if strings.TrimSpace(e.Rule) == "" {
			return nil, fmt.Errorf("rules[%d]: rule is required", i)
		}
	}
	return &set, nil
}

// Store is the subset of *rulekit.Store used by Import.
type Store interface {
	FindByRuleString(ctx context.Context, ruleString string) (rulekit.Rule, bool, error)
	Batch(ctx context.Context, b rulekit.Batch) (rulekit.BatchResult, error)
}

// ImportResult reports what Import did.
type ImportResult struct {
	Created []rulekit.Rule
	Skipped int
}

// Import creates every rule in set whose exact rule string is not already
// stored. Stored rules are never modified. All creations run in one batch:
// a single invalid rule aborts the whole import.
func Import(ctx context.Context, store Store, set *Set) (ImportResult, error) {
	var res ImportResult
	batch := rulekit.NewBatch()
	seen := make(map[string]bool, len(set.Rules))

	for i, e := range set.Rules {
		if seen[e.Rule] {
			res.Skipped++
			continue
		}
		seen[e.Rule] = true

		_, found, err := store.FindByRuleString(ctx, e.Rule)
		if err != nil {
			return ImportResult{}, err
		}
		if found {
			res.Skipped++
			continue
		}
		if err := batch.Create(e.Rule, e.Name); err != nil {
			return ImportResult{}, fmt.Errorf("rules[%d] (%s): %w", i, e.Name, err)
		}
	}

	out, err := store.Batch(ctx, batch)
	if err != nil {
		return ImportResult{}, err
	}
	res.Created = out.Created
	return res, nil
}

// LoadAndImport is Load followed by Import.
func LoadAndImport(ctx context.Context, store Store, path string) (ImportResult, error) {
	set, err := Load(path)
	if err != nil {
		return ImportResult{}, err
	}
	return Import(ctx, store, set)
}
