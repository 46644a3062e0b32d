package rulekit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rulekit/rulekit/rulekit/rule"
)

// Rule is a stored rule. Rules are immutable: combining or re-creating
// produces a new Rule with a new ID.
type Rule struct {
	ID         string
	Name       string
	RuleString string
	AST        rule.Node
	Sources    []string // ids of the rules a combined rule was built from
	CreatedAt  time.Time
}

type ruleJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	RuleString string    `json:"rule_string"`
	AST        rule.Tree `json:"ast"`
	Sources    []string  `json:"sources,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MarshalJSON leaves '<', '>' and '&' unescaped so rule text and
// comparators stay readable.
func (r Rule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(ruleJSON{
		ID:         r.ID,
		Name:       r.Name,
		RuleString: r.RuleString,
		AST:        rule.Tree{Node: r.AST},
		Sources:    r.Sources,
		CreatedAt:  r.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var j ruleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Rule{
		ID:         j.ID,
		Name:       j.Name,
		RuleString: j.RuleString,
		AST:        j.AST.Node,
		Sources:    j.Sources,
		CreatedAt:  j.CreatedAt,
	}
	return nil
}

// StoreOptions configures store behavior
type StoreOptions struct {
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// DefaultStoreOptions returns wall-clock time, random UUIDs and the default
// logger.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Now:    time.Now,
		NewID:  uuid.NewString,
		Logger: slog.Default(),
	}
}

func (o StoreOptions) withDefaults() StoreOptions {
	d := DefaultStoreOptions()
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.NewID == nil {
		o.NewID = d.NewID
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// ListOptions selects a page of rules
type ListOptions struct {
	Name  string // exact name filter
	Limit int    // 0 means DefaultListLimit
	After string // cursor from a previous page or ""
}

// RulePage is one page of ListRules results
type RulePage struct {
	Rules      []Rule
	NextCursor string
	HasMore    bool
}
