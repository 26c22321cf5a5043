// ABOUTME: Tests for configuration loading
// ABOUTME: Tests file formats, env overrides, and validation
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cms-dev/timeview-go/internal/display"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mode != "elapsed" {
		t.Errorf("expected default mode elapsed, got %s", cfg.Mode)
	}
	if cfg.LogFile != "timeview.log" {
		t.Errorf("expected default log file, got %s", cfg.LogFile)
	}
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "timeview.yaml", `
time_url: http://ranking.local/time
mode: remaining
timezone: Europe/Rome
no_tui: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.TimeURL != "http://ranking.local/time" {
		t.Errorf("unexpected time_url %s", cfg.TimeURL)
	}
	if !cfg.NoTUI {
		t.Error("expected no_tui")
	}
	if cfg.LogFile != "timeview.log" {
		t.Error("expected unset fields to keep defaults")
	}

	mode, err := cfg.DisplayMode()
	if err != nil || mode != display.Remaining {
		t.Errorf("expected Remaining, got %v (%v)", mode, err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "timeview.toml", `
ws_url = "ws://ranking.local/time/ws"
debug = true
metrics_addr = ":9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WSURL != "ws://ranking.local/time/ws" || !cfg.Debug || cfg.MetricsAddr != ":9100" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	path := write(t, "timeview.ini", "x=1")
	if _, err := Load(path); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TIMEVIEW_TIME_URL", "http://env/time")
	t.Setenv("TIMEVIEW_NO_TUI", "true")
	t.Setenv("TIMEVIEW_DEBUG", "not-a-bool")

	cfg := Default()
	cfg.Debug = true
	cfg.ApplyEnv()

	if cfg.TimeURL != "http://env/time" {
		t.Errorf("expected env time url, got %s", cfg.TimeURL)
	}
	if !cfg.NoTUI {
		t.Error("expected NoTUI from env")
	}
	if !cfg.Debug {
		t.Error("expected invalid bool to keep the previous value")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := write(t, ".env", "TIMEVIEW_MODE=current\n")
	os.Unsetenv("TIMEVIEW_MODE")
	t.Cleanup(func() { os.Unsetenv("TIMEVIEW_MODE") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("dotenv failed: %v", err)
	}

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Mode != "current" {
		t.Errorf("expected mode from .env, got %s", cfg.Mode)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without a time source")
	}

	cfg.TimeURL = "http://x/time"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.Mode = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bad mode")
	}

	cfg.Mode = "current"
	cfg.Timezone = "Nowhere/Special"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bad timezone")
	}
}
