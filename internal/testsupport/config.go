package testsupport

import (
	"path/filepath"
	"testing"

	"quill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ImportDropDir = filepath.Join(base, "import")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.SessionSecret = "test-session-secret"
	cfgVal.Admin.Password = "test-password"
	cfgVal.Cache.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithExportPath points the import config at a WordPress export file.
func WithExportPath(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.ExportPath = path
	}
}

// WithWordPressHost overrides the origin host used for media URL rewrites.
func WithWordPressHost(host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.WordPressHost = host
	}
}

// WithCache enables the embedded cache for tests that exercise it.
func WithCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
