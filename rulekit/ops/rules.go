package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rulekit/rulekit/rulekit/storage"
	"github.com/rulekit/rulekit/rulekit/storage/sqlbuilder"
)

// RuleRow is one row of the rules table.
type RuleRow struct {
	Seq         int64
	ID          string
	Name        string
	RuleString  string
	ASTJSON     []byte
	Sources     []string
	CreatedAtMS int64
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(s rowScanner) (RuleRow, error) {
	var (
		r       RuleRow
		ast     string
		sources string
	)
	if err := s.Scan(&r.Seq, &r.ID, &r.Name, &r.RuleString, &ast, &sources, &r.CreatedAtMS); err != nil {
		return RuleRow{}, err
	}
	r.ASTJSON = []byte(ast)
	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return RuleRow{}, fmt.Errorf("rule %s: sources: %w", r.ID, err)
		}
	}
	return r, nil
}

// InsertRule writes a new row and returns its sequence number.
func InsertRule(ctx context.Context, db storage.Execer, sqlt storage.SQL, r RuleRow) (int64, error) {
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return 0, fmt.Errorf("marshal sources: %w", err)
	}
	var seq int64
	err = db.QueryRowContext(ctx, sqlt.InsertRule,
		r.ID, r.Name, r.RuleString, string(r.ASTJSON), string(sourcesJSON), r.CreatedAtMS,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	return seq, nil
}

// GetRule loads a rule by id; found is false when no row matches.
func GetRule(ctx context.Context, db storage.Execer, sqlt storage.SQL, id string) (row RuleRow, found bool, err error) {
	row, err = scanRule(db.QueryRowContext(ctx, sqlt.GetRuleByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RuleRow{}, false, nil
	}
	if err != nil {
		return RuleRow{}, false, fmt.Errorf("get rule: %w", err)
	}
	return row, true, nil
}

// FindByRuleString returns the oldest rule stored with exactly this text.
func FindByRuleString(ctx context.Context, db storage.Execer, sqlt storage.SQL, ruleString string) (RuleRow, bool, error) {
	row, err := scanRule(db.QueryRowContext(ctx, sqlt.FindRuleByString, ruleString))
	if errors.Is(err, sql.ErrNoRows) {
		return RuleRow{}, false, nil
	}
	if err != nil {
		return RuleRow{}, false, fmt.Errorf("find rule: %w", err)
	}
	return row, true, nil
}

// DeleteRule removes a rule by id, returns true if a row was deleted
func DeleteRule(ctx context.Context, db storage.Execer, sqlt storage.SQL, id string) (bool, error) {
	res, err := db.ExecContext(ctx, sqlt.DeleteRuleByID, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func CountRules(ctx context.Context, db storage.Execer, sqlt storage.SQL) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, sqlt.CountRules).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

// ListQuery selects one page of rules in insertion order.
type ListQuery struct {
	Name     string // exact name filter, "" for all
	AfterSeq int64  // exclusive lower bound
	Limit    int
}

// ListRules returns up to q.Limit rows after q.AfterSeq and whether more
// rows follow.
func ListRules(ctx context.Context, db storage.Execer, sqlt storage.SQL, style sqlbuilder.PlaceholderStyle, q ListQuery) ([]RuleRow, bool, error) {
	if q.Limit <= 0 {
		return nil, false, fmt.Errorf("limit must be positive, got %d", q.Limit)
	}

	b := sqlbuilder.New(style)
	if q.Name != "" {
		b.Where("name = " + b.Arg(q.Name))
	}
	if q.AfterSeq > 0 {
		b.Where("seq > " + b.Arg(q.AfterSeq))
	}
	// one extra row tells us whether another page exists
	query := sqlt.ListRulesBase + b.WhereSQL() + " ORDER BY seq LIMIT " + b.Arg(q.Limit+1)

	rows, err := db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, false, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []RuleRow
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate rows: %w", err)
	}

	hasMore := len(out) > q.Limit
	if hasMore {
		out = out[:q.Limit]
	}
	return out, hasMore, nil
}
