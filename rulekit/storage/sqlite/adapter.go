package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rulekit/rulekit/rulekit/storage"
	"github.com/rulekit/rulekit/rulekit/storage/sqlbuilder"
)

// Driver names understood by the adapter. DriverModernc is registered by
// importing modernc.org/sqlite, DriverMattn by github.com/mattn/go-sqlite3.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: DriverModernc}
}

func NewWithDriver(path, driver string) *Adapter {
	if driver == "" {
		driver = DriverModernc
	}
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) StoreID() string {
	return a.Path
}

// dsn appends busy timeout and foreign key settings in the syntax of the
// selected driver.
func (a *Adapter) dsn() string {
	params := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if a.DriverName == DriverMattn {
		params = "_busy_timeout=5000&_foreign_keys=on"
	}
	if strings.Contains(a.Path, "?") {
		return a.Path + "&" + params
	}
	return a.Path + "?" + params
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(a.DriverName, a.dsn())
	if err != nil {
		return nil, err
	}
	// one writer at a time; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", a.Path, err)
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) SQL() storage.SQL {
	return SQLTemplates
}

func (a *Adapter) CreateStore(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

	return storage.WriteMeta(ctx, db, a.SQL())
}

func (a *Adapter) OpenStore(ctx context.Context, db *sql.DB) (string, error) {
	return storage.CheckMeta(ctx, db, a.SQL())
}

func (a *Adapter) Optimize(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "VACUUM")
	return err
}
