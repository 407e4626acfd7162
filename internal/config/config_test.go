package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PASSPORTFLOW_ENV_FILE", filepath.Join(dir, "missing.env"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Collaborator.Watermark {
		t.Fatal("expected watermark on by default")
	}
	if cfg.Session.Backend != SessionBackendMemory || cfg.Preview.Backend != PreviewBackendMemory {
		t.Fatalf("unexpected backends %q %q", cfg.Session.Backend, cfg.Preview.Backend)
	}
	if cfg.Collaborator.PathPrefix != "/api" || cfg.Collaborator.Timeout().Seconds() != 60 {
		t.Fatalf("unexpected collaborator config %+v", cfg.Collaborator)
	}
}

func TestLoadLayersFileDotEnvAndEnvironment(t *testing.T) {
	dir := isolate(t)

	tomlPath := filepath.Join(dir, "passportflow.toml")
	writeFile(t, tomlPath, `
[collaborator]
base_url = "http://processor.internal:5000/"
timeout_seconds = 15

[session]
backend = "Redis"

[logging]
level = "debug"
`)

	envPath := filepath.Join(dir, "test.env")
	writeFile(t, envPath, "MINIO_BUCKET=from-dotenv\nPASSPORTFLOW_LOG_LEVEL=warn\n")
	t.Setenv("PASSPORTFLOW_ENV_FILE", envPath)
	t.Setenv("PASSPORTFLOW_LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("MINIO_BUCKET") })

	cfg, err := Load(tomlPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Collaborator.BaseURL != "http://processor.internal:5000" {
		t.Fatalf("expected trimmed base url from file, got %q", cfg.Collaborator.BaseURL)
	}
	if cfg.Collaborator.TimeoutSeconds != 15 {
		t.Fatalf("expected timeout from file, got %d", cfg.Collaborator.TimeoutSeconds)
	}
	if cfg.Session.Backend != SessionBackendRedis {
		t.Fatalf("expected normalized backend, got %q", cfg.Session.Backend)
	}
	if cfg.Storage.Bucket != "from-dotenv" {
		t.Fatalf("expected bucket from .env, got %q", cfg.Storage.Bucket)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("expected environment to win over .env and file, got %q", cfg.Logging.Level)
	}
	if !cfg.Collaborator.Watermark {
		t.Fatal("expected default watermark to survive a file that omits it")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("PASSPORTFLOW_SESSION_BACKEND", "sqlite")
	t.Setenv("PASSPORTFLOW_LOG_FORMAT", "xml")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"session.backend", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected missing config file to fail")
	}
}

func TestRateLimitValidation(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Capacity = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected zero capacity to fail when enabled")
	}
	cfg.RateLimit.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled limiter to skip checks, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
