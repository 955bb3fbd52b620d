package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once    sync.Once
	initErr error
)

// Init initializes the configuration system
// This should be called once at application startup
func Init() error {
	once.Do(func() {
		setDefaults()

		// Environment overrides, e.g. FEEDSYNC_SERVER_PORT=9090
		viper.SetEnvPrefix("FEEDSYNC")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		configPath := filepath.Clean("./config/settings.yaml")
		viper.SetConfigFile(configPath)

		if err := viper.ReadInConfig(); err != nil {
			// A missing config file is fine; defaults and env vars apply.
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
		}

		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
		}
	})

	return initErr
}

// GetConfig returns the current configuration as a struct
// Init() must be called before using this
func GetConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a config value by key using Viper directly
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a time.Duration config value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	if viper.GetString("database.path") == "" {
		return fmt.Errorf("database path is required")
	}

	// Auto-correct invalid worker counts
	if viper.GetInt("refresh.workers") <= 0 {
		viper.Set("refresh.workers", 4)
	}
	if viper.GetInt("downloads.workers") <= 0 {
		viper.Set("downloads.workers", 2)
	}
	if viper.GetInt("downloads.queue_size") <= 0 {
		viper.Set("downloads.queue_size", 64)
	}

	return nil
}

// Validate validates a Config struct (for testing)
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Refresh.Workers <= 0 {
		c.Refresh.Workers = 4
	}
	if c.Downloads.Workers <= 0 {
		c.Downloads.Workers = 2
	}
	if c.Downloads.QueueSize <= 0 {
		c.Downloads.QueueSize = 64
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_header_bytes", 1048576)

	// Database defaults
	viper.SetDefault("database.path", "./data/feedsync.db")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.max_idle_connections", 5)
	viper.SetDefault("database.connection_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.enable_wal", true)
	viper.SetDefault("database.enable_foreign_keys", true)
	viper.SetDefault("database.log_queries", false)

	// Ingest defaults
	viper.SetDefault("ingest.user_agent", "feedsync/1.0")
	viper.SetDefault("ingest.fetch_timeout", 30*time.Second)
	viper.SetDefault("ingest.max_feed_size", 10485760)
	viper.SetDefault("ingest.update_existing", false)

	// Refresh defaults
	viper.SetDefault("refresh.interval", 1*time.Hour)
	viper.SetDefault("refresh.workers", 4)
	viper.SetDefault("refresh.requests_per_sec", 2)

	// Downloads defaults
	viper.SetDefault("downloads.enabled", true)
	viper.SetDefault("downloads.auto_download", false)
	viper.SetDefault("downloads.media_dir", "./data/media")
	viper.SetDefault("downloads.workers", 2)
	viper.SetDefault("downloads.queue_size", 64)
	viper.SetDefault("downloads.max_file_size", 524288000)
	viper.SetDefault("downloads.timeout", 5*time.Minute)

	// Security defaults
	viper.SetDefault("security.enable_cors", true)
	viper.SetDefault("security.cors_origins", []string{"*"})
	viper.SetDefault("security.cors_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors_headers", []string{"Content-Type", "Authorization"})
	viper.SetDefault("security.rate_limit_per_min", 120)
	viper.SetDefault("security.max_request_body", 1048576)
	viper.SetDefault("security.enable_recovery", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.enable_caller", false)
}
