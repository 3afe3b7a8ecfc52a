package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables.
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".fieldsync")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	// Default database path is in the config directory
	cfg.Database.Path = filepath.Join(configDir, "fieldsync.db")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try the config directory first, then the current directory
		if err := godotenv.Load(configFilePath); err != nil {
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("FIELDSYNC_DB_PATH", cfg.Database.Path),
		JournalMode:     getEnvString("FIELDSYNC_DB_JOURNAL_MODE", cfg.Database.JournalMode),
		SynchronousMode: getEnvString("FIELDSYNC_DB_SYNCHRONOUS", cfg.Database.SynchronousMode),
		BusyTimeout:     getEnvInt("FIELDSYNC_DB_BUSY_TIMEOUT", cfg.Database.BusyTimeout),
		CacheSize:       getEnvInt("FIELDSYNC_DB_CACHE_SIZE", cfg.Database.CacheSize),
		ForeignKeys:     getEnvBool("FIELDSYNC_DB_FOREIGN_KEYS", cfg.Database.ForeignKeys),
		ConnMaxLife:     getEnvDuration("FIELDSYNC_DB_CONN_MAX_LIFE", cfg.Database.ConnMaxLife),
		QueryTimeout:    getEnvDuration("FIELDSYNC_DB_QUERY_TIMEOUT", cfg.Database.QueryTimeout),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("FIELDSYNC_LOG_LEVEL", cfg.Logging.Level),
		Format:     getEnvString("FIELDSYNC_LOG_FORMAT", cfg.Logging.Format),
		Output:     getEnvString("FIELDSYNC_LOG_OUTPUT", filepath.Join(configDir, "fieldsync.log")),
		AddSource:  getEnvBool("FIELDSYNC_LOG_ADD_SOURCE", cfg.Logging.AddSource),
		TimeFormat: getEnvString("FIELDSYNC_LOG_TIME_FORMAT", cfg.Logging.TimeFormat),
	}

	cfg.Server = ServerConfig{
		URL:        getEnvString("FIELDSYNC_SERVER_URL", cfg.Server.URL),
		Timeout:    getEnvDuration("FIELDSYNC_SERVER_TIMEOUT", cfg.Server.Timeout),
		MaxRetries: getEnvInt("FIELDSYNC_SERVER_MAX_RETRIES", cfg.Server.MaxRetries),
	}

	cfg.Connectivity = ConnectivityConfig{
		Freshness:     getEnvDuration("FIELDSYNC_CONNECTIVITY_FRESHNESS", cfg.Connectivity.Freshness),
		ProbeTimeout:  getEnvDuration("FIELDSYNC_CONNECTIVITY_PROBE_TIMEOUT", cfg.Connectivity.ProbeTimeout),
		FallbackURL:   getEnvString("FIELDSYNC_CONNECTIVITY_FALLBACK_URL", cfg.Connectivity.FallbackURL),
		CheckInterval: getEnvDuration("FIELDSYNC_CONNECTIVITY_CHECK_INTERVAL", cfg.Connectivity.CheckInterval),
	}

	return cfg, nil
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
