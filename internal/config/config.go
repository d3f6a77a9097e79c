package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	StaticDirectory   string
	LogDirectory      string
	ProcessingDelay   time.Duration // Fixed per-image delay of the simulated engine
	MaxUploadSize     int64         // Bytes accepted per upload request
	SessionTTL        time.Duration // Idle sessions older than this are evicted
	SessionSweepEvery time.Duration
	DatabasePath      string // Empty disables run history
	ScenesFile        string // Optional TOML override of the scene catalog
	HistoryLimit      int
}

// Load reads .env (when present) and the process environment into a Config.
func Load() *Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	return &Config{
		Port:              getEnvAsInt("PORT", 8080),
		StaticDirectory:   getEnv("STATIC_DIR", filepath.Join(".", "static")),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		ProcessingDelay:   time.Duration(getEnvAsNonNegativeInt("PROCESSING_DELAY_MS", 500)) * time.Millisecond,
		MaxUploadSize:     int64(getEnvAsPositiveInt("MAX_UPLOAD_MB", 50)) << 20,
		SessionTTL:        time.Duration(getEnvAsPositiveInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		SessionSweepEvery: time.Duration(getEnvAsPositiveInt("SESSION_SWEEP_SECONDS", 60)) * time.Second,
		DatabasePath:      getEnv("DB_PATH", ""),
		ScenesFile:        getEnv("SCENES_FILE", ""),
		HistoryLimit:      getEnvAsPositiveInt("HISTORY_LIMIT", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsPositiveInt falls back to the default for zero or negative values.
func getEnvAsPositiveInt(key string, defaultValue int) int {
	if v := getEnvAsInt(key, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

func getEnvAsNonNegativeInt(key string, defaultValue int) int {
	if v := getEnvAsInt(key, defaultValue); v >= 0 {
		return v
	}
	return defaultValue
}
