package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path, e.g. "server.listen_address".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate returns a ValidationError listing every invalid field, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateRuleset(&cfg.Ruleset)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateStorage(s *StorageConfig) []FieldError {
	var errs []FieldError
	switch s.Backend {
	case "sqlite":
		if s.SQLite.Path == "" {
			errs = append(errs, FieldError{"storage.sqlite.path", "is required for the sqlite backend"})
		}
		switch s.SQLite.Driver {
		case "sqlite", "sqlite3":
		default:
			errs = append(errs, FieldError{"storage.sqlite.driver", fmt.Sprintf("must be sqlite or sqlite3, got %q", s.SQLite.Driver)})
		}
	case "postgres":
		if s.Postgres.DSN == "" {
			errs = append(errs, FieldError{"storage.postgres.dsn", "is required for the postgres backend"})
		}
		if !identRe.MatchString(s.Postgres.Schema) {
			errs = append(errs, FieldError{"storage.postgres.schema", fmt.Sprintf("invalid schema name %q", s.Postgres.Schema)})
		}
	default:
		errs = append(errs, FieldError{"storage.backend", fmt.Sprintf("must be sqlite or postgres, got %q", s.Backend)})
	}
	return errs
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("must be host:port: %v", err)})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, FieldError{"server.request_timeout", "must not be negative"})
	}
	if s.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{"server.max_body_bytes", "must be positive"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("unknown level %q", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("must be json or text, got %q", l.Format)})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) []FieldError {
	var errs []FieldError
	if !m.Enabled {
		return nil
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, FieldError{"metrics.path", "must start with /"})
	}
	if !identRe.MatchString(m.Namespace) {
		errs = append(errs, FieldError{"metrics.namespace", fmt.Sprintf("invalid metric namespace %q", m.Namespace)})
	}
	return errs
}

func validateRuleset(r *RulesetConfig) []FieldError {
	var errs []FieldError
	if r.Watch && r.Path == "" {
		errs = append(errs, FieldError{"ruleset.watch", "requires ruleset.path"})
	}
	if r.Debounce < 0 {
		errs = append(errs, FieldError{"ruleset.debounce", "must not be negative"})
	}
	return errs
}
