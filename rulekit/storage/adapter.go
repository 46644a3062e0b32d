package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rulekit/rulekit/rulekit/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Meta keys written by CreateStore and checked by OpenStore.
const (
	MetaMagicKey   = "rulekit_magic"
	MetaVersionKey = "rulekit_version"
	MagicValue     = "rulekit"
	SchemaVersion  = "1"
)

// ErrNotRuleStore is returned by OpenStore when the database was not
// created by CreateStore.
var ErrNotRuleStore = errors.New("not a rulekit store")

// Adapter abstracts database-specific operations
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	StoreID() string

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error

	CreateStore(ctx context.Context, db *sql.DB) error
	OpenStore(ctx context.Context, db *sql.DB) (version string, err error)
	Optimize(ctx context.Context, db *sql.DB) error

	SQL() SQL
}

// SQL holds the statement templates for one backend. Every template uses
// positional placeholders in the backend's style.
type SQL struct {
	// MetaTableExists counts meta tables visible to the connection (0 or 1).
	MetaTableExists string
	GetMeta         string
	SetMeta         string

	// InsertRule takes id, name, rule_string, ast_json, sources_json, created_at.
	InsertRule string
	// GetRuleByID and FindRuleByString select ruleColumns.
	GetRuleByID      string
	FindRuleByString string
	DeleteRuleByID   string
	CountRules       string

	// ListRulesBase selects ruleColumns with no WHERE clause; callers append
	// filters, ordering and a limit through sqlbuilder.
	ListRulesBase string
}

// RuleColumns is the column order every rule SELECT returns.
const RuleColumns = "seq, id, name, rule_string, ast_json, sources_json, created_at"

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WriteMeta stores the magic and version keys.
func WriteMeta(ctx context.Context, db Execer, sqlt SQL) error {
	if _, err := db.ExecContext(ctx, sqlt.SetMeta, MetaMagicKey, MagicValue); err != nil {
		return fmt.Errorf("write meta %s: %w", MetaMagicKey, err)
	}
	if _, err := db.ExecContext(ctx, sqlt.SetMeta, MetaVersionKey, SchemaVersion); err != nil {
		return fmt.Errorf("write meta %s: %w", MetaVersionKey, err)
	}
	return nil
}

// CheckMeta verifies the magic key and returns the stored version. Only a
// missing meta table or magic key yields ErrNotRuleStore; other failures are
// returned as they are.
func CheckMeta(ctx context.Context, db Execer, sqlt SQL) (string, error) {
	var tables int
	if err := db.QueryRowContext(ctx, sqlt.MetaTableExists).Scan(&tables); err != nil {
		return "", fmt.Errorf("look up meta table: %w", err)
	}
	if tables == 0 {
		return "", ErrNotRuleStore
	}

	var magic string
	err := db.QueryRowContext(ctx, sqlt.GetMeta, MetaMagicKey).Scan(&magic)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotRuleStore
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", MetaMagicKey, err)
	}
	if magic != MagicValue {
		return "", ErrNotRuleStore
	}
	var version string
	if err := db.QueryRowContext(ctx, sqlt.GetMeta, MetaVersionKey).Scan(&version); err != nil {
		return "", fmt.Errorf("read meta %s: %w", MetaVersionKey, err)
	}
	if version != SchemaVersion {
		return version, fmt.Errorf("unsupported store version %q (want %s)", version, SchemaVersion)
	}
	return version, nil
}
