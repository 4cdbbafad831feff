package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeAdmin()
	if err := c.normalizeImport(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("UPLOADS_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Paths.UploadsDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("QUILL_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.UploadsDir, err = expandPath(c.Paths.UploadsDir); err != nil {
		return fmt.Errorf("paths.uploads_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImportDropDir) != "" {
		if c.Paths.ImportDropDir, err = expandPath(c.Paths.ImportDropDir); err != nil {
			return fmt.Errorf("paths.import_drop_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}

	// PORT is what PaaS platforms inject; it overrides the configured bind.
	if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT environment variable %q is not a valid port", value)
		}
		host, _, splitErr := net.SplitHostPort(c.Server.Bind)
		if splitErr != nil {
			host = ""
		}
		c.Server.Bind = net.JoinHostPort(host, strconv.Itoa(port))
	}

	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}

	if c.Server.SessionSecret == "" {
		if value, ok := os.LookupEnv("SECRET_KEY"); ok {
			c.Server.SessionSecret = strings.TrimSpace(value)
		}
	}

	if c.Server.PageSize <= 0 {
		c.Server.PageSize = defaultPageSize
	}
	return nil
}

func (c *Config) normalizeAdmin() {
	if value, ok := os.LookupEnv("QUILL_ADMIN_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.Admin.Username = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("QUILL_ADMIN_EMAIL"); ok && strings.TrimSpace(value) != "" {
		c.Admin.Email = strings.TrimSpace(value)
	}
	if c.Admin.Password == "" {
		if value, ok := os.LookupEnv("QUILL_ADMIN_PASSWORD"); ok {
			c.Admin.Password = value
		}
	}
	c.Admin.Username = strings.TrimSpace(c.Admin.Username)
	c.Admin.Email = strings.TrimSpace(c.Admin.Email)
}

func (c *Config) normalizeImport() error {
	if value, ok := os.LookupEnv("QUILL_WORDPRESS_EXPORT"); ok && strings.TrimSpace(value) != "" {
		c.Import.ExportPath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Import.ExportPath) != "" {
		expanded, err := expandPath(c.Import.ExportPath)
		if err != nil {
			return fmt.Errorf("import.export_path: %w", err)
		}
		c.Import.ExportPath = expanded
	}
	c.Import.WordPressHost = strings.TrimSpace(c.Import.WordPressHost)
	return nil
}

func (c *Config) normalizeWorker() {
	if value, ok := os.LookupEnv("WORKER_MODE"); ok {
		c.Worker.Mode = isTruthy(value)
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = defaultWorkerPollInterval
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		c.Worker.ErrorRetryInterval = defaultWorkerErrorRetryInterval
	}
	if c.Worker.HeartbeatInterval <= 0 {
		c.Worker.HeartbeatInterval = defaultWorkerHeartbeatInterval
	}
	if c.Worker.HeartbeatTimeout <= 0 {
		c.Worker.HeartbeatTimeout = defaultWorkerHeartbeatTimeout
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = defaultWorkerMaxAttempts
	}
	if c.Worker.DownloadTimeout <= 0 {
		c.Worker.DownloadTimeout = defaultWorkerDownloadTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
