package rulekit

import (
	"context"

	"github.com/rulekit/rulekit/rulekit/ops"
	"github.com/rulekit/rulekit/rulekit/rule"
)

type BatchOpKind int

const (
	batchCreate BatchOpKind = iota
	batchDelete
)

type BatchOp struct {
	Kind       BatchOpKind
	RuleString string    // for create
	Name       string    // for create
	tree       rule.Node // parsed when queued
	ID         string    // for delete
}

// Batch queues rule creations and deletions that run in one transaction.
type Batch struct {
	ops []BatchOp
}

func NewBatch() Batch {
	return Batch{ops: make([]BatchOp, 0)}
}

// Create queues a new rule. The rule is parsed immediately so syntax
// errors surface before anything is written.
func (b *Batch) Create(ruleString, name string) error {
	tree, err := parseRule(ruleString)
	if err != nil {
		return err
	}
	b.ops = append(b.ops, BatchOp{Kind: batchCreate, RuleString: ruleString, Name: name, tree: tree})
	return nil
}

func (b *Batch) Delete(id string) error {
	if id == "" {
		return New(ErrInvalid, "rule id cannot be empty")
	}
	b.ops = append(b.ops, BatchOp{Kind: batchDelete, ID: id})
	return nil
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) Empty() bool {
	return len(b.ops) == 0
}

// Execute is implemented on Store to keep storage access internal
func (b *Batch) Execute(ctx context.Context, s *Store) (BatchResult, error) {
	return s.Batch(ctx, *b)
}

// BatchResult reports what a batch changed.
type BatchResult struct {
	Created []Rule
	Deleted int // unknown ids are skipped and not counted
}

// Batch executes b atomically: either every operation is applied or none.
func (s *Store) Batch(ctx context.Context, b Batch) (BatchResult, error) {
	var res BatchResult
	if b.Empty() {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, Wrap(ErrSQL, "begin transaction", err)
	}
	defer tx.Rollback()

	sqlt := s.adapter.SQL()
	for _, op := range b.ops {
		switch op.Kind {
		case batchCreate:
			r, err := s.insert(ctx, tx, op.RuleString, op.Name, op.tree, nil)
			if err != nil {
				return BatchResult{}, err
			}
			res.Created = append(res.Created, r)
		case batchDelete:
			deleted, err := ops.DeleteRule(ctx, tx, sqlt, op.ID)
			if err != nil {
				return BatchResult{}, Wrap(ErrSQL, "delete rule", err)
			}
			if deleted {
				res.Deleted++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, Wrap(ErrSQL, "commit transaction", err)
	}
	s.log.DebugContext(ctx, "batch applied", "created", len(res.Created), "deleted", res.Deleted)
	return res, nil
}
