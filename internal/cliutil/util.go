package cliutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/config"
	"github.com/rulekit/rulekit/internal/logging"
	"github.com/rulekit/rulekit/internal/sqldriver"
	"github.com/rulekit/rulekit/rulekit"
	"github.com/rulekit/rulekit/rulekit/storage"
	"github.com/rulekit/rulekit/rulekit/storage/postgres"
	"github.com/rulekit/rulekit/rulekit/storage/sqlite"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case FormatJSON:
		return FormatJSON
	default:
		return FormatPretty
	}
}

func PrintJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// LoadConfig reads the config file named by --config (if any), applies
// RULEKIT_* environment overrides and finally the non-empty global flags.
func LoadConfig(g cliopt.GlobalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(g.Config)
	if err != nil {
		return nil, err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Storage.Backend, g.Backend)
	override(&cfg.Storage.SQLite.Path, g.SQLitePath)
	override(&cfg.Storage.SQLite.Driver, g.SQLiteDriver)
	override(&cfg.Storage.Postgres.DSN, g.PostgresDSN)
	override(&cfg.Storage.Postgres.Schema, g.PostgresSchema)
	override(&cfg.Logging.Level, g.LogLevel)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewAdapter builds the storage adapter selected by cfg.
func NewAdapter(cfg config.StorageConfig) (storage.Adapter, error) {
	switch strings.ToLower(cfg.Backend) {
	case "postgres", "pg":
		return postgres.New(cfg.Postgres.DSN, cfg.Postgres.Schema), nil
	case "sqlite", "":
		if cfg.SQLite.Driver == sqlite.DriverMattn && !sqldriver.MattnAvailable {
			return nil, errors.New("sqlite driver sqlite3 requires a cgo build; use --sqlite-driver sqlite")
		}
		return sqlite.NewWithDriver(cfg.SQLite.Path, cfg.SQLite.Driver), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Env is what a command needs after global options are resolved.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
}

func NewEnv(g cliopt.GlobalOptions) (*Env, error) {
	cfg, err := LoadConfig(g)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: g.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return &Env{Config: cfg, Logger: logger}, nil
}

func (e *Env) storeOptions() rulekit.StoreOptions {
	opts := rulekit.DefaultStoreOptions()
	opts.Logger = e.Logger
	return opts
}

// CreateStore initializes a new rule store.
func (e *Env) CreateStore(ctx context.Context) (*rulekit.Store, error) {
	adapter, err := NewAdapter(e.Config.Storage)
	if err != nil {
		return nil, err
	}
	return rulekit.Create(ctx, adapter, e.storeOptions())
}

// OpenStore opens an existing rule store.
func (e *Env) OpenStore(ctx context.Context) (*rulekit.Store, error) {
	adapter, err := NewAdapter(e.Config.Storage)
	if err != nil {
		return nil, err
	}
	return rulekit.Open(ctx, adapter, e.storeOptions())
}

// OpenOrCreateStore opens the store, creating it when the database has no
// rule store yet.
func (e *Env) OpenOrCreateStore(ctx context.Context) (*rulekit.Store, error) {
	s, err := e.OpenStore(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, storage.ErrNotRuleStore) {
		return nil, err
	}
	return e.CreateStore(ctx)
}

// ReadRecord decodes --data: inline JSON, "@file" or "-" for stdin.
func ReadRecord(arg string, stdin io.Reader) (map[string]any, error) {
	var r io.Reader
	switch {
	case arg == "-":
		r = stdin
	case strings.HasPrefix(arg, "@"):
		f, err := os.Open(arg[1:])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	default:
		r = strings.NewReader(arg)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec == nil {
		return nil, errors.New("record must be a JSON object")
	}
	return rec, nil
}

// StringList is a repeatable string flag.
type StringList []string

func (s *StringList) String() string { return strings.Join(*s, ",") }
func (s *StringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
