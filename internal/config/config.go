package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	UploadsDir    string `toml:"uploads_dir"`
	LogDir        string `toml:"log_dir"`
	ImportDropDir string `toml:"import_drop_dir"`
}

// Server contains HTTP server configuration.
type Server struct {
	Bind          string `toml:"bind"`
	BaseURL       string `toml:"base_url"`
	SessionSecret string `toml:"session_secret"`
	PageSize      int    `toml:"page_size"`
}

// Admin contains the bootstrap superuser credentials.
type Admin struct {
	Username string `toml:"username"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// Import contains WordPress export import configuration.
type Import struct {
	ExportPath    string `toml:"export_path"`
	WordPressHost string `toml:"wordpress_host"`
}

// Worker contains background job worker configuration.
type Worker struct {
	Mode               bool `toml:"mode"`
	PollInterval       int  `toml:"poll_interval"`
	ErrorRetryInterval int  `toml:"error_retry_interval"`
	HeartbeatInterval  int  `toml:"heartbeat_interval"`
	HeartbeatTimeout   int  `toml:"heartbeat_timeout"`
	MaxAttempts        int  `toml:"max_attempts"`
	DownloadTimeout    int  `toml:"download_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Cache contains configuration for the embedded response cache.
type Cache struct {
	Enabled    bool `toml:"enabled"`
	TTLSeconds int  `toml:"ttl_seconds"`
}

// Config encapsulates all configuration values for quill.
//
// Sections by subsystem:
//   - Paths: data, uploads, log, and import-drop directories
//   - Server: bind address, external base URL, sessions, pagination
//   - Admin: bootstrap superuser credentials
//   - Import: WordPress export location and origin host
//   - Worker: job polling intervals, heartbeats, retry limits
//   - Logging: log format and level
//   - Cache: embedded sidebar/page cache
type Config struct {
	Paths   Paths   `toml:"paths"`
	Server  Server  `toml:"server"`
	Admin   Admin   `toml:"admin"`
	Import  Import  `toml:"import"`
	Worker  Worker  `toml:"worker"`
	Logging Logging `toml:"logging"`
	Cache   Cache   `toml:"cache"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/quill/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is applied to the process environment first, matching the
// deployment convention the server is launched under. The returned config has
// all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/quill/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("quill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories quill needs at runtime. The
// uploads directory matches the fixed permissions the deployment expects.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ImportDropDir) != "" {
		if err := os.MkdirAll(c.Paths.ImportDropDir, 0o755); err != nil {
			return fmt.Errorf("create import drop directory %q: %w", c.Paths.ImportDropDir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "quill.db")
}

// CachePath returns the embedded cache directory inside the data directory.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.DataDir, "cache")
}

// LockPath returns the worker lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "quill-worker.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
