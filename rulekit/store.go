package rulekit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rulekit/rulekit/rulekit/ops"
	"github.com/rulekit/rulekit/rulekit/rule"
	"github.com/rulekit/rulekit/rulekit/storage"
)

// Store persists rules and their trees in a SQL database.
type Store struct {
	adapter storage.Adapter
	db      *sql.DB
	opts    StoreOptions
	log     *slog.Logger
}

// Create initializes a new store
func Create(ctx context.Context, adapter storage.Adapter, opts StoreOptions) (*Store, error) {
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, Wrap(ErrIO, "connect to database", err)
	}
	if err := adapter.CreateStore(ctx, db); err != nil {
		db.Close()
		return nil, Wrap(ErrSQL, "create store", err)
	}
	return newStore(adapter, db, opts), nil
}

// Open opens an existing store
func Open(ctx context.Context, adapter storage.Adapter, opts StoreOptions) (*Store, error) {
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, Wrap(ErrIO, "connect to database", err)
	}
	if _, err := adapter.OpenStore(ctx, db); err != nil {
		db.Close()
		return nil, Wrap(ErrSQL, "open store", err)
	}
	return newStore(adapter, db, opts), nil
}

func newStore(adapter storage.Adapter, db *sql.DB, opts StoreOptions) *Store {
	opts = opts.withDefaults()
	return &Store{
		adapter: adapter,
		db:      db,
		opts:    opts,
		log:     opts.Logger.With("store", adapter.StoreID()),
	}
}

// Close closes the store
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return Wrap(ErrIO, "close database", err)
		}
	}
	return s.adapter.Close()
}

// CreateRule parses ruleString and stores it with its tree.
func (s *Store) CreateRule(ctx context.Context, ruleString, name string) (Rule, error) {
	tree, perr := parseRule(ruleString)
	if perr != nil {
		return Rule{}, perr
	}
	r, err := s.insert(ctx, s.db, ruleString, name, tree, nil)
	if err != nil {
		return Rule{}, err
	}
	s.log.DebugContext(ctx, "rule created", "id", r.ID, "name", r.Name)
	return r, nil
}

// CombineRules parses every rule string, combines the trees and stores the
// result. The stored rule text is the canonical rendering of the combined
// tree.
func (s *Store) CombineRules(ctx context.Context, ruleStrings []string, name string) (Rule, error) {
	return s.CombineRulesWith(ctx, ruleStrings, name, "")
}

// CombineRulesWith is CombineRules with an explicit joining operator; an
// empty op uses the majority vote.
func (s *Store) CombineRulesWith(ctx context.Context, ruleStrings []string, name string, op rule.LogicalOp) (Rule, error) {
	if len(ruleStrings) == 0 {
		return Rule{}, Wrap(ErrCombine, "combine rules", rule.ErrCombineEmpty)
	}
	trees := make([]rule.Node, 0, len(ruleStrings))
	for i, rs := range ruleStrings {
		tree, err := parseRule(rs)
		if err != nil {
			err.Message = fmt.Sprintf("rule %d: %s", i, err.Message)
			return Rule{}, err
		}
		trees = append(trees, tree)
	}
	return s.combineAndStore(ctx, trees, name, op, nil)
}

// CombineStored combines rules already in the store. The new rule records
// ids as its sources.
func (s *Store) CombineStored(ctx context.Context, ids []string, name string) (Rule, error) {
	if len(ids) == 0 {
		return Rule{}, Wrap(ErrCombine, "combine stored rules", rule.ErrCombineEmpty)
	}
	trees := make([]rule.Node, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRule(ctx, id)
		if err != nil {
			return Rule{}, err
		}
		trees = append(trees, r.AST)
	}
	return s.combineAndStore(ctx, trees, name, "", ids)
}

func (s *Store) combineAndStore(ctx context.Context, trees []rule.Node, name string, op rule.LogicalOp, sources []string) (Rule, error) {
	var (
		combined rule.Node
		err      error
	)
	if op == "" {
		combined, err = rule.Combine(trees)
	} else {
		combined, err = rule.CombineWith(trees, op)
	}
	if err != nil {
		return Rule{}, wrapRuleError("combine rules", err)
	}

	r, err := s.insert(ctx, s.db, rule.Format(combined), name, combined, sources)
	if err != nil {
		return Rule{}, err
	}
	s.log.DebugContext(ctx, "rules combined",
		"id", r.ID,
		"inputs", len(trees),
		"nodes", rule.Size(combined),
	)
	return r, nil
}

// EvaluateRule loads a rule and evaluates it against rec.
func (s *Store) EvaluateRule(ctx context.Context, id string, rec rule.Record) (bool, error) {
	r, err := s.GetRule(ctx, id)
	if err != nil {
		return false, err
	}
	ok, err := rule.Evaluate(r.AST, rec)
	if err != nil {
		e := wrapRuleError("evaluate rule", err)
		e.ID = id
		return false, e
	}
	return ok, nil
}

// GetRule loads a rule by id
func (s *Store) GetRule(ctx context.Context, id string) (Rule, error) {
	row, found, err := ops.GetRule(ctx, s.db, s.adapter.SQL(), id)
	if err != nil {
		return Rule{}, Wrap(ErrSQL, "get rule", err)
	}
	if !found {
		return Rule{}, NotFoundError(id)
	}
	return ruleFromRow(row)
}

// FindByRuleString returns the oldest rule stored with exactly this text.
func (s *Store) FindByRuleString(ctx context.Context, ruleString string) (Rule, bool, error) {
	row, found, err := ops.FindByRuleString(ctx, s.db, s.adapter.SQL(), ruleString)
	if err != nil {
		return Rule{}, false, Wrap(ErrSQL, "find rule", err)
	}
	if !found {
		return Rule{}, false, nil
	}
	r, err := ruleFromRow(row)
	if err != nil {
		return Rule{}, false, err
	}
	return r, true, nil
}

// ListRules returns rules in creation order, one page at a time.
func (s *Store) ListRules(ctx context.Context, lopts ListOptions) (RulePage, error) {
	limit := lopts.Limit
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit < 0:
		return RulePage{}, New(ErrInvalid, fmt.Sprintf("limit must be positive, got %d", limit))
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	hash := ops.FilterHash(lopts.Name)
	q := ops.ListQuery{Name: lopts.Name, Limit: limit}
	if lopts.After != "" {
		pos, err := ops.DecodeCursor(lopts.After, hash)
		if err != nil {
			return RulePage{}, Wrap(ErrCursor, "decode cursor", err)
		}
		q.AfterSeq = pos.Seq
	}

	rows, hasMore, err := ops.ListRules(ctx, s.db, s.adapter.SQL(), s.adapter.PlaceholderStyle(), q)
	if err != nil {
		return RulePage{}, Wrap(ErrSQL, "list rules", err)
	}

	page := RulePage{Rules: make([]Rule, 0, len(rows)), HasMore: hasMore}
	for _, row := range rows {
		r, err := ruleFromRow(row)
		if err != nil {
			return RulePage{}, err
		}
		page.Rules = append(page.Rules, r)
	}
	if hasMore && len(rows) > 0 {
		tok, err := ops.EncodeCursor(ops.CursorPayload{Seq: rows[len(rows)-1].Seq, Hash: hash})
		if err != nil {
			return RulePage{}, Wrap(ErrCursor, "encode cursor", err)
		}
		page.NextCursor = tok
	}
	return page, nil
}

// DeleteRule removes a rule; it reports false when the id was unknown.
// Rules combined from the deleted one keep their own copy of its tree.
func (s *Store) DeleteRule(ctx context.Context, id string) (bool, error) {
	deleted, err := ops.DeleteRule(ctx, s.db, s.adapter.SQL(), id)
	if err != nil {
		return false, Wrap(ErrSQL, "delete rule", err)
	}
	if deleted {
		s.log.DebugContext(ctx, "rule deleted", "id", id)
	}
	return deleted, nil
}

// Count returns the number of stored rules.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := ops.CountRules(ctx, s.db, s.adapter.SQL())
	if err != nil {
		return 0, Wrap(ErrSQL, "count rules", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return Wrap(ErrIO, "ping database", err)
	}
	return nil
}

// Optimize runs backend maintenance (VACUUM, ANALYZE).
func (s *Store) Optimize(ctx context.Context) error {
	if err := s.adapter.Optimize(ctx, s.db); err != nil {
		return Wrap(ErrSQL, "optimize", err)
	}
	return nil
}

// Adapter returns the underlying storage adapter
func (s *Store) Adapter() storage.Adapter {
	return s.adapter
}

func (s *Store) insert(ctx context.Context, db storage.Execer, ruleString, name string, tree rule.Node, sources []string) (Rule, error) {
	astJSON, err := rule.Encode(tree)
	if err != nil {
		return Rule{}, wrapRuleError("encode rule tree", err)
	}
	now := s.opts.Now()
	r := Rule{
		ID:         s.opts.NewID(),
		Name:       name,
		RuleString: ruleString,
		AST:        tree,
		Sources:    sources,
		CreatedAt:  time.UnixMilli(now.UnixMilli()).UTC(),
	}
	_, err = ops.InsertRule(ctx, db, s.adapter.SQL(), ops.RuleRow{
		ID:          r.ID,
		Name:        r.Name,
		RuleString:  r.RuleString,
		ASTJSON:     astJSON,
		Sources:     r.Sources,
		CreatedAtMS: now.UnixMilli(),
	})
	if err != nil {
		return Rule{}, Wrap(ErrSQL, "insert rule", err)
	}
	return r, nil
}

func parseRule(ruleString string) (rule.Node, *Error) {
	if len(ruleString) > MaxRuleLength {
		return nil, New(ErrInvalid, fmt.Sprintf("rule is longer than %d bytes", MaxRuleLength))
	}
	tree, err := rule.Parse(ruleString)
	if err != nil {
		return nil, wrapRuleError("parse rule", err)
	}
	return tree, nil
}

func ruleFromRow(row ops.RuleRow) (Rule, error) {
	tree, err := rule.Decode(row.ASTJSON)
	if err != nil {
		return Rule{}, CorruptASTError(row.ID, err)
	}
	var sources []string
	if len(row.Sources) > 0 {
		sources = row.Sources
	}
	return Rule{
		ID:         row.ID,
		Name:       row.Name,
		RuleString: row.RuleString,
		AST:        tree,
		Sources:    sources,
		CreatedAt:  time.UnixMilli(row.CreatedAtMS).UTC(),
	}, nil
}

// IsNotFound reports whether err is a not_found *Error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrNotFound
}
