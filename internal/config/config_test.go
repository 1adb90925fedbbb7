package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ReadsDotEnvForDB(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()

	d := t.TempDir()
	if err := os.WriteFile(filepath.Join(d, ".env"), []byte(
		"# reporting db\nTERMWATCH_DB_DRIVER=postgres\nTERMWATCH_DB=\"postgres://u:p@localhost:5432/reporting?sslmode=disable\"\nTERMWATCH_LOG_LEVEL=debug\nTERMWATCH_QUERY_TIMEOUT=3s\n",
	), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(d); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TERMWATCH_DB", "")
	t.Setenv("TERMWATCH_DB_DRIVER", "")
	t.Setenv("TERMWATCH_LOG_LEVEL", "")
	t.Setenv("TERMWATCH_QUERY_TIMEOUT", "")

	cfg := Load()
	if cfg.DBDSN != "postgres://u:p@localhost:5432/reporting?sslmode=disable" {
		t.Fatalf("expected TERMWATCH_DB from .env, got %q", cfg.DBDSN)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("expected driver from .env, got %q", cfg.DBDriver)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected TERMWATCH_LOG_LEVEL from .env, got %q", cfg.LogLevel)
	}
	if cfg.QueryTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.QueryTimeout)
	}
}

func TestLoad_EnvironmentWinsOverDotEnv(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()

	d := t.TempDir()
	if err := os.WriteFile(filepath.Join(d, ".env"), []byte("TERMWATCH_BIND_ADDR=:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(d); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TERMWATCH_BIND_ADDR", ":7070")
	t.Setenv("TERMWATCH_QUERY_TIMEOUT", "not-a-duration")
	t.Setenv("TERMWATCH_DB_DRIVER", "")
	t.Setenv("TERMWATCH_CORS_ORIGIN", "")

	cfg := Load()
	if cfg.BindAddr != ":7070" {
		t.Fatalf("expected env to win, got %q", cfg.BindAddr)
	}
	if cfg.QueryTimeout != 15*time.Second {
		t.Fatalf("expected default timeout for bad value, got %v", cfg.QueryTimeout)
	}
	if cfg.DBDriver != "sqlite" || cfg.CORSOrigin != "*" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}
