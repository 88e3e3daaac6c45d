package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/tally/internal/config"
)

func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("TALLY_SERVER", "")
	t.Setenv("TALLY_TOKEN", "")
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_NotFound(t *testing.T) {
	home := setupTestHome(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if want := filepath.Join(home, ".config", "tally", "tally.db"); cfg.Server.Database != want {
		t.Errorf("Database = %q, expected %q", cfg.Server.Database, want)
	}
	if cfg.Client.InactivityTimeout.Duration != 10*time.Minute {
		t.Errorf("InactivityTimeout = %v", cfg.Client.InactivityTimeout)
	}
	if cfg.Client.PollInterval.Duration != time.Minute {
		t.Errorf("PollInterval = %v", cfg.Client.PollInterval)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, `
[server]
addr = ":9000"
timezone = "UTC"

[client]
token = "tly_abc"
inactivity-timeout = "5m"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("undefined keys should keep defaults, LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Client.Token != "tly_abc" {
		t.Errorf("Token = %q", cfg.Client.Token)
	}
	if cfg.Client.InactivityTimeout.Duration != 5*time.Minute {
		t.Errorf("InactivityTimeout = %v", cfg.Client.InactivityTimeout)
	}
	if cfg.Client.PromptGrace.Duration != time.Minute {
		t.Errorf("PromptGrace = %v", cfg.Client.PromptGrace)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location = %v, %v", loc, err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, `
[client]
server-url = "http://file:1"
token = "from-file"
`)
	t.Setenv("TALLY_SERVER", "http://env:2")
	t.Setenv("TALLY_TOKEN", "from-env")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Client.ServerURL != "http://env:2" || cfg.Client.Token != "from-env" {
		t.Errorf("env should win: %+v", cfg.Client)
	}
}

func TestLoad_Invalid(t *testing.T) {
	setupTestHome(t)
	tests := map[string]string{
		"syntax":      "[server\naddr = 1",
		"duration":    "[client]\npoll-interval = \"soon\"",
		"unknown key": "[server]\nport = 1",
		"timezone":    "[server]\ntimezone = \"Mars/Olympus\"",
		"zero poll":   "[client]\npoll-interval = \"0s\"",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	d := config.Duration{Duration: 90 * time.Second}
	b, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "1m30s") {
		t.Fatalf("unexpected text %q", b)
	}
}
