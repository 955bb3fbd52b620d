package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path                  string        `mapstructure:"path"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
	EnableWAL             bool          `mapstructure:"enable_wal"`
	EnableForeignKeys     bool          `mapstructure:"enable_foreign_keys"`
	LogQueries            bool          `mapstructure:"log_queries"`
}

// IngestConfig contains feed parsing settings
type IngestConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MaxFeedSize    int64         `mapstructure:"max_feed_size"`
	UpdateExisting bool          `mapstructure:"update_existing"`
}

// RefreshConfig contains background refresh settings
type RefreshConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Workers        int           `mapstructure:"workers"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

// DownloadsConfig contains media download settings
type DownloadsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	AutoDownload bool          `mapstructure:"auto_download"`
	MediaDir     string        `mapstructure:"media_dir"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxFileSize  int64         `mapstructure:"max_file_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	EnableCORS        bool     `mapstructure:"enable_cors"`
	CORSOrigins       []string `mapstructure:"cors_origins"`
	CORSMethods       []string `mapstructure:"cors_methods"`
	CORSHeaders       []string `mapstructure:"cors_headers"`
	RateLimitPerMin   int      `mapstructure:"rate_limit_per_min"`
	MaxRequestBody    int64    `mapstructure:"max_request_body"`
	EnableRecovery    bool     `mapstructure:"enable_recovery"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	EnableCaller bool   `mapstructure:"enable_caller"`
}
