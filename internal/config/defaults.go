package config

const (
	defaultDataDir       = "~/.local/share/quill"
	defaultUploadsDir    = "~/.local/share/quill/uploads"
	defaultLogDir        = "~/.local/share/quill/logs"
	defaultImportDropDir = "~/.local/share/quill/import"

	defaultBind     = "127.0.0.1:8000"
	defaultBaseURL  = "http://localhost:8000"
	defaultPageSize = 10

	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@localhost"

	defaultExportPath = "wordpress-export.xml"

	defaultWorkerPollInterval       = 5
	defaultWorkerErrorRetryInterval = 10
	defaultWorkerHeartbeatInterval  = 15
	defaultWorkerHeartbeatTimeout   = 120
	defaultWorkerMaxAttempts        = 3
	defaultWorkerDownloadTimeout    = 30

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"

	defaultCacheTTLSeconds = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			UploadsDir:    defaultUploadsDir,
			LogDir:        defaultLogDir,
			ImportDropDir: defaultImportDropDir,
		},
		Server: Server{
			Bind:     defaultBind,
			BaseURL:  defaultBaseURL,
			PageSize: defaultPageSize,
		},
		Admin: Admin{
			Username: defaultAdminUsername,
			Email:    defaultAdminEmail,
		},
		Import: Import{
			ExportPath: defaultExportPath,
		},
		Worker: Worker{
			PollInterval:       defaultWorkerPollInterval,
			ErrorRetryInterval: defaultWorkerErrorRetryInterval,
			HeartbeatInterval:  defaultWorkerHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkerHeartbeatTimeout,
			MaxAttempts:        defaultWorkerMaxAttempts,
			DownloadTimeout:    defaultWorkerDownloadTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Cache: Cache{
			Enabled:    true,
			TTLSeconds: defaultCacheTTLSeconds,
		},
	}
}
