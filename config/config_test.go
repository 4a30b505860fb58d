package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "webget.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":3637" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if cfg.ActionTimeout != 5*time.Second || cfg.NavTimeout != 10*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.ActionTimeout, cfg.NavTimeout)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.Level())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webget.yaml")
	content := `
addr: ":4000"
workers: 2
data_dir: /var/lib/webget
nav_timeout: 30s
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":4000" || cfg.Workers != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DataDir != "/var/lib/webget" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("nav timeout = %v", cfg.NavTimeout)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.Level())
	}
	// Unset fields still pick up defaults.
	if cfg.ActionTimeout != 5*time.Second {
		t.Errorf("action timeout = %v", cfg.ActionTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webget.yaml")
	if err := os.WriteFile(path, []byte(`addr: ":4000"`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEBGET_ADDR", ":5000")
	t.Setenv("WEBGET_WORKERS", "3")
	t.Setenv("WEBGET_ACTION_TIMEOUT", "2s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":5000" || cfg.Workers != 3 || cfg.ActionTimeout != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvRejectsBadValues(t *testing.T) {
	t.Setenv("WEBGET_WORKERS", "many")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for non-numeric WEBGET_WORKERS")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webget.yaml")
	if err := os.WriteFile(path, []byte("addr: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestServerURL(t *testing.T) {
	cfg := &Config{Addr: ":3637"}
	if got := cfg.ServerURL(); got != "http://127.0.0.1:3637" {
		t.Errorf("url = %q", got)
	}
	cfg.Addr = "0.0.0.0:8080"
	if got := cfg.ServerURL(); got != "http://0.0.0.0:8080" {
		t.Errorf("url = %q", got)
	}
}
