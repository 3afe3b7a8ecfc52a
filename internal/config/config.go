// Package config provides application configuration loaded from the
// environment with sensible defaults.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance.
// If the configuration has not been initialized, it will return an error.
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	Database     DatabaseConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Connectivity ConnectivityConfig
	configDir    string // Internal: Directory where config was loaded from
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	CacheSize       int           // Cache size in KiB
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// ServerConfig represents the remote field-data service configuration
type ServerConfig struct {
	URL        string        // Base URL of the remote service
	Timeout    time.Duration // Per-request timeout for remote calls
	MaxRetries int           // Maximum number of retries for transient failures
}

// ConnectivityConfig represents connectivity probing configuration
type ConnectivityConfig struct {
	Freshness     time.Duration // How long a cached probe result stays valid
	ProbeTimeout  time.Duration // Bounded timeout for each reachability probe
	FallbackURL   string        // Well-known external host used as a secondary signal
	CheckInterval time.Duration // Interval for the periodic background check
}

// New creates a configuration populated with defaults
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			JournalMode:     "WAL",
			SynchronousMode: "NORMAL",
			BusyTimeout:     5000,
			CacheSize:       -4000,
			ForeignKeys:     true,
			ConnMaxLife:     time.Hour,
			QueryTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			AddSource:  false,
			TimeFormat: time.RFC3339,
		},
		Server: ServerConfig{
			URL:        "https://eport.dealpusher.com",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Connectivity: ConnectivityConfig{
			Freshness:     10 * time.Second,
			ProbeTimeout:  3 * time.Second,
			FallbackURL:   "https://www.google.com",
			CheckInterval: 30 * time.Second,
		},
	}
}

// ConfigDir returns the directory configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ParseLogLevel converts a string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
