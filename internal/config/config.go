package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultMaxWait           = 10 * time.Minute
	DefaultRequestsPerSecond = 10.0
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken  string
	GitHubAPIURL string // empty for api.github.com

	// Storage
	StorageType string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string
	OutputDir   string

	// Harvest defaults
	MaxWait           time.Duration
	RequestsPerSecond float64
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	maxWait, err := time.ParseDuration(getEnv("HARVEST_MAX_WAIT", DefaultMaxWait.String()))
	if err != nil {
		return nil, &ConfigError{Field: "HARVEST_MAX_WAIT", Message: err.Error()}
	}
	rps, err := strconv.ParseFloat(getEnv("HARVEST_REQUESTS_PER_SECOND", "10"), 64)
	if err != nil {
		return nil, &ConfigError{Field: "HARVEST_REQUESTS_PER_SECOND", Message: err.Error()}
	}

	return &Config{
		GitHubToken:       getEnv("GITHUB_TOKEN", os.Getenv("API_GITHUB_TOKEN")),
		GitHubAPIURL:      getEnv("GITHUB_API_URL", ""),
		StorageType:       getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:        getEnv("SQLITE_PATH", "./harvest.db"),
		PostgresURL:       getEnv("POSTGRES_URL", ""),
		APIPort:           getEnv("API_PORT", "8080"),
		APIHost:           getEnv("API_HOST", "localhost"),
		APIEndpoint:       getEnv("API_ENDPOINT", "http://localhost:8080"),
		OutputDir:         getEnv("HARVEST_OUTPUT_DIR", "."),
		MaxWait:           maxWait,
		RequestsPerSecond: rps,
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return &ConfigError{Field: "GITHUB_TOKEN", Message: "GitHub token is required"}
	}
	return c.ValidateStorage()
}

// ValidateStorage checks only the storage settings; commands that never
// touch GitHub use it instead of Validate.
func (c *Config) ValidateStorage() error {
	if c.StorageType != "sqlite" && c.StorageType != "postgres" {
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.MaxWait <= 0 {
		return &ConfigError{Field: "HARVEST_MAX_WAIT", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
