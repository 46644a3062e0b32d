// Package config loads the rulekit YAML configuration file.
//
// Loading runs in a fixed order: defaults, then the file, then environment
// overrides (RULEKIT_SECTION_FIELD), then validation. Command-line flags are
// applied by the CLI on top of the result.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Storage selects and configures the rule store backend.
	Storage StorageConfig `yaml:"storage"`

	// Server configures the HTTP API started by "rulekit serve".
	Server ServerConfig `yaml:"server"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Ruleset points at a YAML file of rules imported at startup.
	Ruleset RulesetConfig `yaml:"ruleset"`
}

// StorageConfig selects the rule store backend.
type StorageConfig struct {
	// Backend is "sqlite" or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	// Path is the database file.
	// Default: "rules.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver name: "sqlite" (pure Go) or
	// "sqlite3" (cgo builds only).
	// Default: "sqlite"
	Driver string `yaml:"driver"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`

	// Schema is the dedicated schema the tables live in.
	// Default: "rulekit"
	Schema string `yaml:"schema"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// ListenAddress is "host:port".
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the work done for a single request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes limits request bodies.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

type RulesetConfig struct {
	// Path is a ruleset YAML file; empty disables import.
	Path string `yaml:"path"`

	// Watch re-imports the file when it changes while serving.
	Watch bool `yaml:"watch"`

	// Debounce is how long to wait after the last change before importing.
	Debounce time.Duration `yaml:"debounce"`
}
