package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SanityCheck/internal/database"
	"github.com/Alias1177/SanityCheck/internal/model"
)

// Config holds all application configuration
type Config struct {
	// Thresholds are the defaults for the command line threshold flags
	Thresholds       model.Thresholds
	ExcludedReasons  []string `env:"SANITY_EXCLUDED_REASONS" envDefault:"penalty"`
	LogLevel         string   `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout   int      `env:"REQUEST_TIMEOUT" envDefault:"60"` // seconds
	RequestsPerSec   int      `env:"REQUESTS_PER_SEC" envDefault:"5"`
	LoadConcurrency  int      `env:"LOAD_CONCURRENCY" envDefault:"4"`
	TelegramBotToken string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64    `env:"TELEGRAM_CHAT_ID"`
	NotifyOnSuccess  bool     `env:"NOTIFY_ON_SUCCESS" envDefault:"false"`
	Database         database.ConnectionParams
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	defaults := model.DefaultThresholds()

	var cfg Config
	cfg.Thresholds = model.Thresholds{
		CorrelationThreshold:      getEnvFloatWithDefault("SANITY_CORRELATION_THRESHOLD", defaults.CorrelationThreshold),
		ScoreThreshold:            getEnvFloatWithDefault("SANITY_SCORE_THRESHOLD", defaults.ScoreThreshold),
		MinAbsoluteDeviationRatio: getEnvFloatWithDefault("SANITY_MIN_ABSOLUTE_DEVIATION", defaults.MinAbsoluteDeviationRatio),
	}
	cfg.ExcludedReasons = getEnvListWithDefault("SANITY_EXCLUDED_REASONS", []string{"penalty"})
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 60)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)
	cfg.LoadConcurrency = getEnvIntWithDefault("LOAD_CONCURRENCY", 4)
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = int64(getEnvIntWithDefault("TELEGRAM_CHAT_ID", 0))
	cfg.NotifyOnSuccess = getEnvBoolWithDefault("NOTIFY_ON_SUCCESS", false)
	cfg.Database = database.ConnectionParams{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	return &cfg, nil
}

// TelegramEnabled reports whether alerts can be sent
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// DatabaseEnabled reports whether reports should be persisted
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != "" && c.Database.DBName != ""
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number, using default")
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvListWithDefault reads a comma separated list. A set but blank value
// yields an empty list.
func getEnvListWithDefault(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
