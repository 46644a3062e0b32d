package config

import "time"

// Default values for configuration fields.
const (
	DefaultBackend        = "sqlite"
	DefaultSQLitePath     = "rules.db"
	DefaultSQLiteDriver   = "sqlite"
	DefaultPostgresSchema = "rulekit"

	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)

	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "rulekit"

	DefaultRulesetDebounce = 250 * time.Millisecond
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields. Booleans are left alone since
// false is a legitimate setting; Default and LoadConfig seed them instead.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.Postgres.Schema == "" {
		cfg.Storage.Postgres.Schema = DefaultPostgresSchema
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	if cfg.Ruleset.Debounce == 0 {
		cfg.Ruleset.Debounce = DefaultRulesetDebounce
	}
}
