package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv    string
	Port       string
	JWTSecret  string
	Database   DatabaseConfig
	Redis      RedisConfig
	Summarizer SummarizerConfig
	Retention  RetentionConfig
	Messaging  MessagingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// RedisConfig holds the optional job-queue backend.
// An empty URL means queued work degrades to inline execution.
type RedisConfig struct {
	URL string
}

// SummarizerConfig selects the digest provider
type SummarizerConfig struct {
	Provider string // "local" or "gemini"
	APIKey   string
	Model    string
	MaxWords int
}

// RetentionConfig controls the recently-deleted lifecycle
type RetentionConfig struct {
	Window        time.Duration
	SweepInterval time.Duration
}

// MessagingConfig holds delivery-pipeline tunables
type MessagingConfig struct {
	EditWindow      time.Duration
	HistoryPageSize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "bakbak"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Summarizer: SummarizerConfig{
			Provider: getEnv("SUMMARIZER_PROVIDER", "local"),
			APIKey:   os.Getenv("GEMINI_API_KEY"),
			Model:    getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
			MaxWords: getEnvInt("SUMMARY_MAX_WORDS", 60),
		},
		Retention: RetentionConfig{
			Window:        time.Duration(getEnvInt("RECENTLY_DELETED_RETENTION_DAYS", 30)) * 24 * time.Hour,
			SweepInterval: time.Duration(getEnvInt("RETENTION_SWEEP_MINUTES", 60)) * time.Minute,
		},
		Messaging: MessagingConfig{
			EditWindow:      time.Duration(getEnvInt("EDIT_WINDOW_MINUTES", 15)) * time.Minute,
			HistoryPageSize: getEnvInt("HISTORY_PAGE_SIZE", 50),
		},
	}, nil
}

// getEnv returns the env value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the env value parsed as int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
