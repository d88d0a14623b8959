package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env             string
	LogLevel        string
	OpsPort         string
	WorkerCount     int
	SessionsPath    string
	DefaultLanguage string

	// Booking calendar
	BookingWindowDays int
	OpeningHour       int
	ClosingHour       int

	// Reminders
	ReminderLead time.Duration

	// Assistant (free-form text generator)
	GeminiAPIKey     string
	GeminiModelID    string
	AssistantTimeout time.Duration
	HistoryLimit     int

	// Redis (conversation history + durable reminder jobs)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		OpsPort:         getEnv("OPS_PORT", "8080"),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		SessionsPath:    getEnv("SESSIONS_PATH", "user_sessions.json"),
		DefaultLanguage: strings.ToLower(getEnv("DEFAULT_LANGUAGE", "en")),

		BookingWindowDays: getEnvAsInt("BOOKING_WINDOW_DAYS", 7),
		OpeningHour:       getEnvAsInt("OPENING_HOUR", 9),
		ClosingHour:       getEnvAsInt("CLOSING_HOUR", 18),

		ReminderLead: getEnvAsDuration("REMINDER_LEAD", 24*time.Hour),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		AssistantTimeout: getEnvAsDuration("ASSISTANT_TIMEOUT", 30*time.Second),
		HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 40),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
