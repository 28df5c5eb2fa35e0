// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ballastd/ballast/internal/modules/settings"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for all databases (always absolute)
	Port        int
	LogLevel    string
	DevMode     bool
	FrontendURL string // Origin allowed by CORS in addition to localhost

	// Cloudflare R2 credentials for off-site database backups.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check BALLAST_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("BALLAST_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("BALLAST_PORT", 8090),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:          getEnv("R2_BUCKET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// This should be called after the config database is initialized.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	keys := []struct {
		name string
		dst  *string
	}{
		{"r2_account_id", &c.R2AccountID},
		{"r2_access_key_id", &c.R2AccessKeyID},
		{"r2_secret_access_key", &c.R2SecretAccessKey},
		{"r2_bucket", &c.R2Bucket},
	}

	for _, k := range keys {
		value, err := settingsRepo.Get(k.name)
		if err != nil {
			return fmt.Errorf("failed to get %s from settings: %w", k.name, err)
		}
		// Only use the settings DB value if it is non-empty; otherwise keep
		// the env var value (if any) as fallback.
		if value != nil && *value != "" {
			*k.dst = *value
		}
	}

	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// BackupConfigured reports whether R2 backup credentials are present.
// Backups are optional; the scheduler skips backup jobs when this is false.
func (c *Config) BackupConfigured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
