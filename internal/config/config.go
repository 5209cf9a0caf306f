package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	AppEnv       string
	Port         string
	LogLevel     string
	LogFormat    string
	CMCAPIKey    string
	CMCBaseURL   string
	FearGreedURL string
	// CMCRateLimit caps provider calls per minute across all callers.
	CMCRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		CMCAPIKey:    getEnv("CMC_API_KEY", ""),
		CMCBaseURL:   getEnv("CMC_BASE_URL", "https://pro-api.coinmarketcap.com/v1"),
		FearGreedURL: getEnv("FEAR_GREED_URL", "https://api.alternative.me/fng/"),
	}

	if cfg.CMCAPIKey == "" {
		return nil, fmt.Errorf("CMC_API_KEY is required")
	}

	rateLimit := getEnv("CMC_RATE_LIMIT", "25")
	limit, err := strconv.Atoi(rateLimit)
	if err != nil {
		return nil, fmt.Errorf("CMC_RATE_LIMIT must be an integer: %w", err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("CMC_RATE_LIMIT must be positive, got %d", limit)
	}
	cfg.CMCRateLimit = limit

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
