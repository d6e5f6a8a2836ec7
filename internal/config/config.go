// Package config loads runtime configuration from the environment.
// A .env file is honored when present; required variables fail fast.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration shared by the bot and scraper services.
type Config struct {
	BotToken     string
	DatabaseDSN  string
	RedisAddr    string
	KafkaBrokers string
	KafkaTopic   string

	// Scraper defaults
	BaseURL         string
	DefaultCategory string
	RequestTimeout  int // seconds
	MaxRetries      int
	RetentionDays   int
	MaxNotifyPerRun int
}

// Load reads the environment (and .env, if found) and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Env file is not found")
	}

	cfg := &Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:      os.Getenv("KAFKA_TOPIC"),
		BaseURL:         os.Getenv("MARKET_BASE_URL"),
		DefaultCategory: os.Getenv("DEFAULT_CATEGORY"),
	}

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = "host=localhost user=postgres password=password dbname=ram_hunter port=5432 sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.KafkaBrokers == "" {
		cfg.KafkaBrokers = "localhost:9092"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "hunter-events"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.kleinanzeigen.de"
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = "c225"
	}

	cfg.RequestTimeout = intEnv("REQUEST_TIMEOUT", 30)
	cfg.MaxRetries = intEnv("MAX_RETRIES", 3)
	cfg.RetentionDays = intEnv("RETENTION_DAYS", 30)
	cfg.MaxNotifyPerRun = intEnv("MAX_NOTIFY_PER_RUN", 10)

	if cfg.RequestTimeout < 1 || cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT and MAX_RETRIES must be positive")
	}

	return cfg, nil
}

func intEnv(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, s, fallback)
		return fallback
	}
	return v
}
