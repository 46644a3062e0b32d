package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rulekit.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres
  postgres:
    dsn: postgres://localhost/rules
    schema: tenant_a
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 5s
  request_timeout: 2s
  max_body_bytes: 4096
logging:
  level: debug
  format: text
metrics:
  enabled: false
ruleset:
  path: rules.yaml
  watch: true
  debounce: 1s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Storage.Backend != "postgres" {
		t.Errorf("Storage.Backend = %q, want postgres", cfg.Storage.Backend)
	}
	if cfg.Storage.Postgres.Schema != "tenant_a" {
		t.Errorf("Storage.Postgres.Schema = %q, want tenant_a", cfg.Storage.Postgres.Schema)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("Server.ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("Server.WriteTimeout = %v, want default %v", cfg.Server.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.Server.MaxBodyBytes != 4096 {
		t.Errorf("Server.MaxBodyBytes = %d, want 4096", cfg.Server.MaxBodyBytes)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default", cfg.Metrics.Path)
	}
	if !cfg.Ruleset.Watch || cfg.Ruleset.Debounce != time.Second {
		t.Errorf("Ruleset = %+v", cfg.Ruleset)
	}
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Storage.Backend != DefaultBackend {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, DefaultBackend)
	}
	if cfg.Storage.SQLite.Path != DefaultSQLitePath {
		t.Errorf("Storage.SQLite.Path = %q, want %q", cfg.Storage.SQLite.Path, DefaultSQLitePath)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want default true")
	}
	if cfg.Ruleset.Debounce != DefaultRulesetDebounce {
		t.Errorf("Ruleset.Debounce = %v", cfg.Ruleset.Debounce)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapping os.ErrNotExist", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "storage: [unclosed")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse configuration file") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: mysql
logging:
  level: loud
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("got %d field errors, want 2: %v", len(verr.Errors), verr)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  sqlite:
    path: from-file.db
logging:
  level: info
`)

	t.Setenv("RULEKIT_STORAGE_SQLITE_PATH", "from-env.db")
	t.Setenv("RULEKIT_LOGGING_LEVEL", "warn")
	t.Setenv("RULEKIT_SERVER_REQUEST_TIMEOUT", "3s")
	t.Setenv("RULEKIT_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Storage.SQLite.Path != "from-env.db" {
		t.Errorf("Storage.SQLite.Path = %q, want from-env.db", cfg.Storage.SQLite.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 3s", cfg.Server.RequestTimeout)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false from env")
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("RULEKIT_STORAGE_BACKEND", "postgres")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected validation error for postgres without dsn")
	}
	if !strings.Contains(err.Error(), "storage.postgres.dsn") {
		t.Errorf("error = %v, want mention of storage.postgres.dsn", err)
	}
}
