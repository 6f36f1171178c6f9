package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port               string
	AllowedOrigins     []string
	LogLevel           string
	ReservationTimeout time.Duration // default offer window when a queue sets none
	DispatchInterval   time.Duration // how often the dispatch loop matches items to agents
	SchedulerInterval  time.Duration // poll granularity of the loader scheduler
	HistoryCapacity    int           // ring buffer size of the in-memory state history
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	reservationSecs, err := strconv.Atoi(getEnv("RESERVATION_TIMEOUT_SECS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESERVATION_TIMEOUT_SECS: %w", err)
	}
	config.ReservationTimeout = time.Duration(reservationSecs) * time.Second

	dispatchSecs, err := strconv.Atoi(getEnv("DISPATCH_INTERVAL_SECS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_INTERVAL_SECS: %w", err)
	}
	config.DispatchInterval = time.Duration(dispatchSecs) * time.Second

	schedulerSecs, err := strconv.Atoi(getEnv("SCHEDULER_INTERVAL_SECS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL_SECS: %w", err)
	}
	config.SchedulerInterval = time.Duration(schedulerSecs) * time.Second

	config.HistoryCapacity, err = strconv.Atoi(getEnv("HISTORY_CAPACITY", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_CAPACITY: %w", err)
	}

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
