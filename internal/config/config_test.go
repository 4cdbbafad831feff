package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"quill/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PORT", "")
	t.Setenv("UPLOADS_PATH", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "quill")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.UploadsDir != filepath.Join(wantData, "uploads") {
		t.Fatalf("unexpected uploads dir: %q", cfg.Paths.UploadsDir)
	}
	if cfg.Server.Bind != "127.0.0.1:8000" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Server.PageSize != 10 {
		t.Fatalf("unexpected page size: %d", cfg.Server.PageSize)
	}
	if cfg.Worker.Mode {
		t.Fatal("expected worker mode disabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "quill.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadParsesFileAndAppliesEnvOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PORT", "9001")
	t.Setenv("WORKER_MODE", "true")
	t.Setenv("UPLOADS_PATH", filepath.Join(tempHome, "media"))

	path := filepath.Join(tempHome, "quill.toml")
	contents := `
[server]
bind = "0.0.0.0:8000"

[admin]
username = "chris"
email = "chris@example.com"

[import]
wordpress_host = "example.wordpress.com"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Server.Bind != "0.0.0.0:9001" {
		t.Fatalf("PORT override not applied: %q", cfg.Server.Bind)
	}
	if !cfg.Worker.Mode {
		t.Fatal("WORKER_MODE override not applied")
	}
	if cfg.Paths.UploadsDir != filepath.Join(tempHome, "media") {
		t.Fatalf("UPLOADS_PATH override not applied: %q", cfg.Paths.UploadsDir)
	}
	if cfg.Admin.Username != "chris" {
		t.Fatalf("unexpected admin username: %q", cfg.Admin.Username)
	}
	if cfg.Import.WordPressHost != "example.wordpress.com" {
		t.Fatalf("unexpected wordpress host: %q", cfg.Import.WordPressHost)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PORT", "not-a-port")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error for invalid PORT")
	}
	if !strings.Contains(err.Error(), "PORT") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad bind", func(c *config.Config) { c.Server.Bind = "nope" }, "server.bind"},
		{"bad email", func(c *config.Config) { c.Admin.Email = "nope" }, "admin.email"},
		{"heartbeat ordering", func(c *config.Config) {
			c.Worker.HeartbeatInterval = 30
			c.Worker.HeartbeatTimeout = 30
		}, "heartbeat_timeout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.Bind = "127.0.0.1:8000"
			cfg.Logging.Format = "console"
			cfg.Logging.Level = "info"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
}
