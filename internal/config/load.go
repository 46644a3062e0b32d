package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields absent from the file keep their defaults. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads the file (or only defaults when path is
// empty), applies RULEKIT_SECTION_FIELD environment variables and validates
// the result. Environment variables take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}

	setString("RULEKIT_STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("RULEKIT_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString("RULEKIT_STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	setString("RULEKIT_STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	setString("RULEKIT_STORAGE_POSTGRES_SCHEMA", &cfg.Storage.Postgres.Schema)

	setString("RULEKIT_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("RULEKIT_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("RULEKIT_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("RULEKIT_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("RULEKIT_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setDuration("RULEKIT_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	if val := os.Getenv("RULEKIT_SERVER_MAX_BODY_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}

	setString("RULEKIT_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("RULEKIT_LOGGING_FORMAT", &cfg.Logging.Format)

	setBool("RULEKIT_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("RULEKIT_METRICS_PATH", &cfg.Metrics.Path)
	setString("RULEKIT_METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	setString("RULEKIT_RULESET_PATH", &cfg.Ruleset.Path)
	setBool("RULEKIT_RULESET_WATCH", &cfg.Ruleset.Watch)
	setDuration("RULEKIT_RULESET_DEBOUNCE", &cfg.Ruleset.Debounce)
}
