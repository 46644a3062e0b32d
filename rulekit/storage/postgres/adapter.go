package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/rulekit/rulekit/rulekit/storage"
	"github.com/rulekit/rulekit/rulekit/storage/sqlbuilder"
)

type Adapter struct {
	DSN    string
	Schema string // dedicated schema, pinned through search_path
}

func New(dsn, schema string) *Adapter {
	return &Adapter{DSN: dsn, Schema: schema}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func (a *Adapter) StoreID() string { return "postgres:" + a.Schema }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) SQL() storage.SQL { return SQLTemplates }

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidSchemaName reports whether name can be used as the store schema.
func ValidSchemaName(name string) bool {
	return schemaNameRe.MatchString(name)
}

func quoteIdent(ident string) string {
	// callers validate ident against schemaNameRe first
	return `"` + ident + `"`
}

func (a *Adapter) ensureSchema(ctx context.Context, db *sql.DB) error {
	if !ValidSchemaName(a.Schema) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}
	_, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(a.Schema))
	return err
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	if !ValidSchemaName(a.Schema) {
		return nil, fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}

	// the schema has to exist before search_path can point at it
	cfg0, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	db0 := stdlib.OpenDB(*cfg0)
	if err := db0.PingContext(ctx); err != nil {
		_ = db0.Close()
		return nil, err
	}
	if err := a.ensureSchema(ctx, db0); err != nil {
		_ = db0.Close()
		return nil, err
	}
	_ = db0.Close()

	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(a.Schema))

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) CreateStore(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return storage.WriteMeta(ctx, db, a.SQL())
}

func (a *Adapter) OpenStore(ctx context.Context, db *sql.DB) (string, error) {
	return storage.CheckMeta(ctx, db, a.SQL())
}

func (a *Adapter) Optimize(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "ANALYZE rules")
	return err
}
