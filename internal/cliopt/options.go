package cliopt

import (
	"flag"
	"io"
	"os"
)

// GlobalOptions are parsed once at the CLI root and passed to subcommands.
// Empty storage and logging fields leave the config file (or its defaults)
// in charge.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command router and per-command code.
type GlobalOptions struct {
	Config string

	Backend        string
	SQLitePath     string
	SQLiteDriver   string
	PostgresDSN    string
	PostgresSchema string

	LogLevel string
	Format   string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Format: "pretty",
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func BindGlobalFlags(fs *flag.FlagSet, g *GlobalOptions) {
	fs.StringVar(&g.Config, "config", g.Config, "YAML config file")

	fs.StringVar(&g.Backend, "backend", g.Backend, "backend: sqlite|postgres")
	fs.StringVar(&g.SQLitePath, "sqlite-path", g.SQLitePath, "sqlite database file")
	fs.StringVar(&g.SQLiteDriver, "sqlite-driver", g.SQLiteDriver, "sqlite driver: sqlite (pure Go) or sqlite3 (cgo)")
	fs.StringVar(&g.PostgresDSN, "pg-dsn", g.PostgresDSN, "postgres DSN")
	fs.StringVar(&g.PostgresSchema, "pg-schema", g.PostgresSchema, "postgres schema")

	fs.StringVar(&g.LogLevel, "log-level", g.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&g.Format, "format", g.Format, "output format: pretty|json")
}
