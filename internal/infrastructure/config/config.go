// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// PostgreSQL (client associations, topic autocomplete)
	PostgresURI string

	// Portal
	PortalBaseURL  string
	PortalUsername string
	PortalPassword string
	PollInterval   time.Duration
	RequestTimeout time.Duration

	// Bulk history crawl
	HistoryPageCap   int
	HistoryBatchSize int

	// Draft persistence
	DraftSaveDelay time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "callwatch"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		PostgresURI: getEnv("POSTGRES_DSN", ""),

		PortalBaseURL:  getEnv("PORTAL_BASE_URL", ""),
		PortalUsername: getEnv("PORTAL_USERNAME", ""),
		PortalPassword: getEnv("PORTAL_PASSWORD", ""),
		PollInterval:   time.Duration(getEnvAsInt("POLL_INTERVAL", 10)) * time.Second,
		RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 30)) * time.Second,

		HistoryPageCap:   getEnvAsInt("HISTORY_PAGE_CAP", 20),
		HistoryBatchSize: getEnvAsInt("HISTORY_BATCH_SIZE", 5),

		DraftSaveDelay: time.Duration(getEnvAsInt("DRAFT_SAVE_DELAY_MS", 800)) * time.Millisecond,
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
