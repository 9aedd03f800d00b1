package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	API       APIConfig
	Worker    WorkerConfig
	Nurture   NurtureConfig
	Actions   ActionsConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// APIConfig holds API server settings
type APIConfig struct {
	Port string
	Host string
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
}

// NurtureConfig holds nurturing pass scheduling settings
type NurtureConfig struct {
	// CronSpec controls how often the worker runs a full nurturing pass
	CronSpec string
}

// ActionsConfig holds the action delivery client settings
type ActionsConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Enabled      bool
	SharedSecret string
}

// RateLimitConfig holds webhook rate limiting settings
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "crm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		API: APIConfig{
			Port: getEnv("API_PORT", "8080"),
			Host: getEnv("API_HOST", "0.0.0.0"),
		},
		Worker: WorkerConfig{
			PollInterval: parseDuration(getEnv("WORKER_POLL_INTERVAL", "5s"), 5*time.Second),
			Concurrency:  parseInt(getEnv("WORKER_CONCURRENCY", "5"), 5),
		},
		Nurture: NurtureConfig{
			CronSpec: getEnv("NURTURE_CRON", "@hourly"),
		},
		Actions: ActionsConfig{
			URL:     getEnv("ACTIONS_API_URL", ""),
			Token:   getEnv("ACTIONS_API_TOKEN", ""),
			Timeout: parseDuration(getEnv("ACTIONS_API_TIMEOUT", "30s"), 30*time.Second),
		},
		Auth: AuthConfig{
			Enabled:      parseBool(getEnv("ENABLE_AUTH", "false")),
			SharedSecret: getEnv("SHARED_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat(getEnv("RATE_LIMIT_RPS", "10"), 10),
			Burst:             parseInt(getEnv("RATE_LIMIT_BURST", "20"), 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration fields are set
func (c *Config) Validate() error {
	if c.Actions.URL == "" {
		return fmt.Errorf("ACTIONS_API_URL is required")
	}
	if c.Auth.Enabled && c.Auth.SharedSecret == "" {
		return fmt.Errorf("SHARED_SECRET is required when ENABLE_AUTH is true")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(value string, defaultValue int) int {
	var result int
	_, err := fmt.Sscanf(value, "%d", &result)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseFloat(value string, defaultValue float64) float64 {
	var result float64
	_, err := fmt.Sscanf(value, "%g", &result)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseBool(value string) bool {
	return value == "true" || value == "1" || value == "yes"
}
