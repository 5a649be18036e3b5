package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"campuscore/internal/core"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "CAMPUSCORE_") || key == "OTEL_SERVICE_NAME" {
			t.Setenv(key, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Storage.Driver != core.StorageSQLite || cfg.Reports.Backend != ReportsMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "campuscore.yaml")
	body := `
http:
  addr: ":9000"
log:
  level: debug
storage:
  driver: memory
reports:
  backend: s3
  queue_size: 4
  url_expiry: 30m
  s3:
    bucket: reports
    path_style: true
gemini:
  model: gemini-test
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CAMPUSCORE_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("CAMPUSCORE_GEMINI_API_KEY", "secret")
	t.Setenv("CAMPUSCORE_REPORTS_QUEUE_SIZE", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:7000" {
		t.Fatalf("expected env override, got %s", cfg.HTTP.Addr)
	}
	if cfg.Storage.Driver != core.StorageMemory || cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("unexpected file values %+v", cfg)
	}
	if cfg.Reports.S3.Bucket != "reports" || !cfg.Reports.S3.PathStyle || cfg.Reports.QueueSize != 8 || cfg.Reports.URLExpiry != 30*time.Minute {
		t.Fatalf("unexpected reports config %+v", cfg.Reports)
	}
	if cfg.Gemini.APIKey != "secret" || cfg.Gemini.Model != "gemini-test" {
		t.Fatalf("unexpected gemini config %+v", cfg.Gemini)
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected default shutdown timeout to survive, got %v", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoadRejectsUnknownFieldsAndBadValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("bogus: 1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(unknown); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}

	t.Setenv("CAMPUSCORE_STORAGE_DRIVER", "postgres")
	t.Setenv("CAMPUSCORE_REPORTS_BACKEND", "s3")
	t.Setenv("CAMPUSCORE_LOG_LEVEL", "loud")
	_, err := Load("")
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"postgres_dsn", "reports.s3.bucket", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Reports.QueueSize != 32 {
		t.Fatalf("expected default queue size, got %d", cfg.Reports.QueueSize)
	}
}
