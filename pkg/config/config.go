package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	UserID   string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string

	// API server
	APIAddr string

	// Scheduling
	ScoringStrategy  string
	ScoringWeights   map[string]float64
	MaxScheduleTasks int
	AvailableHours   float64

	// ML
	ModelDir        string
	MinTrainingRows int
	ValidationSplit float64
	TrainingLockTTL time.Duration
}

// Load loads configuration from environment variables.
// It attempts to load a .env file first but doesn't fail if it's missing.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		UserID:   getEnv("STUDYLOOP_USER_ID", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		APIAddr: getEnv("STUDYLOOP_API_ADDR", ":8080"),

		ScoringStrategy:  getEnv("STUDYLOOP_SCORING_STRATEGY", "curve"),
		ScoringWeights:   getWeightsEnv("STUDYLOOP_SCORING_WEIGHTS"),
		MaxScheduleTasks: getIntEnv("STUDYLOOP_MAX_SCHEDULE_TASKS", 8),
		AvailableHours:   getFloatEnv("STUDYLOOP_AVAILABLE_HOURS", 4.0),

		ModelDir:        getEnv("STUDYLOOP_MODEL_DIR", "models"),
		MinTrainingRows: getIntEnv("STUDYLOOP_MIN_TRAINING_ROWS", 100),
		ValidationSplit: getFloatEnv("STUDYLOOP_VALIDATION_SPLIT", 0.2),
		TrainingLockTTL: getDurationEnv("STUDYLOOP_TRAINING_LOCK_TTL", 10*time.Minute),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getWeightsEnv parses "name=value,name=value" pairs. Returns nil when the
// variable is unset or malformed; the engine then keeps its strategy defaults.
func getWeightsEnv(key string) map[string]float64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	weights := make(map[string]float64)
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		weights[name] = parsed
	}
	return weights
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
