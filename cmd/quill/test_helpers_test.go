package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quill/internal/store"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
	dbPath     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	dataDir := filepath.Join(base, "data")
	configPath := filepath.Join(homeDir, ".config", "quill", "config.toml")
	writeTestConfig(t, configPath, base)

	return &cliTestEnv{
		configPath: configPath,
		baseDir:    base,
		dbPath:     filepath.Join(dataDir, "quill.db"),
	}
}

// openEnvStore connects to the same database the CLI commands use so tests
// can seed and inspect rows around invocations.
func (env *cliTestEnv) openEnvStore(t *testing.T) *store.Store {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(env.dbPath), 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	st, err := store.Open(env.dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path, baseDir string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
uploads_dir = %q
log_dir = %q
import_drop_dir = %q

[server]
bind = "127.0.0.1:0"
session_secret = "cli-test-secret"

[admin]
username = "admin"
email = "admin@example.com"
password = "cli-test-password"

[import]
export_path = %q
`,
		filepath.Join(baseDir, "data"),
		filepath.Join(baseDir, "uploads"),
		filepath.Join(baseDir, "logs"),
		filepath.Join(baseDir, "import"),
		filepath.Join(baseDir, "missing-export.xml"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
