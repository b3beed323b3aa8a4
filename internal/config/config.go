package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"skillswap-backend/internal/logger"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Sessions
	SessionTimezone     string
	ReminderSchedule    string
	ReminderLeadMinutes int

	// Workers
	WorkerConcurrency int

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// SMTP
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", ""),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		LogOutput:            getEnvOrDefault("LOG_OUTPUT", "stdout"),
		SessionTimezone:      getEnvOrDefault("SESSION_TIMEZONE", "Asia/Kolkata"),
		ReminderSchedule:     getEnvOrDefault("REMINDER_SCHEDULE", "*/5 * * * *"),
		ReminderLeadMinutes:  getEnvAsIntOrDefault("REMINDER_LEAD_MINUTES", 60),
		WorkerConcurrency:    getEnvAsIntOrDefault("WORKER_CONCURRENCY", 3),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", ""),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		SMTPHost:             getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:             getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser:             getEnvOrDefault("SMTP_USER", ""),
		SMTPPass:             getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom:             getEnvOrDefault("SMTP_FROM", "noreply@skillswap.app"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func (c *Config) Logger() *logger.Config {
	return &logger.Config{Level: c.LogLevel, Format: c.LogFormat, Output: c.LogOutput}
}

// Location resolves SESSION_TIMEZONE, the zone slot HH:MM times are read in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.SessionTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TIMEZONE %q: %w", c.SessionTimezone, err)
	}
	return loc, nil
}

func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadMinutes) * time.Minute
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
