// Package config reads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir          string  // directory for the returns and results databases
	Port             int     // HTTP API port
	LogLevel         string  // zerolog level name
	DevMode          bool    // pretty console logging
	RiskFreeRate     float64 // annual, used for Sharpe/Sortino
	EstimationWindow int     // months per rolling window
	StartYear        int
	EndYear          int
	ReturnsCSV       string // optional static dataset; empty means Yahoo + cache
	SyncSchedule     string // cron expression for the monthly returns sync
	SyncEnabled      bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:          getEnv("DATA_DIR", "./data"),
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		RiskFreeRate:     getEnvAsFloat("RISK_FREE_RATE", 0.042),
		EstimationWindow: getEnvAsInt("ESTIMATION_WINDOW", 36),
		StartYear:        getEnvAsInt("START_YEAR", 2010),
		EndYear:          getEnvAsInt("END_YEAR", 2024),
		ReturnsCSV:       getEnv("RETURNS_CSV", ""),
		SyncSchedule:     getEnv("SYNC_SCHEDULE", "0 6 1 * *"), // 06:00 on the 1st
		SyncEnabled:      getEnvAsBool("SYNC_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.EstimationWindow < 2 {
		return fmt.Errorf("estimation window must be at least 2, got %d", c.EstimationWindow)
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("start year %d after end year %d", c.StartYear, c.EndYear)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
