package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port             int
	DevMode          bool
	LogLevel         string
	DatabasePath     string
	MarketDataURL    string
	RiskFreeRate     float64 // Annual, as decimal (0.05 = 5%)
	QuoteCacheTTL    time.Duration
	FetchConcurrency int // Parallel per-symbol market data fetches
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvAsInt("PORT", 8003),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/marketcache.db"),
		MarketDataURL:    getEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
		RiskFreeRate:     getEnvAsFloat("RISK_FREE_RATE", 0.05),
		QuoteCacheTTL:    time.Duration(getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 300)) * time.Second,
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 8),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.RiskFreeRate < 0 || c.RiskFreeRate > 0.5 {
		return fmt.Errorf("RISK_FREE_RATE %.4f outside sane range [0, 0.5]", c.RiskFreeRate)
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
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

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
