// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	AllowedOrigin string

	// Inference mediation.
	MLBaseURL    string
	MLTimeout    time.Duration
	HistoryLimit int

	// Chat backend, consumed by the client.
	APIBaseURL string
	WSBaseURL  string

	// Client-side state.
	TokenFile      string
	DBPath         string
	ReconnectDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		MLBaseURL:      getEnv("MHCHAT_ML_API_BASE", "http://localhost:8001"),
		MLTimeout:      getEnvMillis("MHCHAT_ML_TIMEOUT_MS", 8000),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 10),
		APIBaseURL:     getEnv("MHCHAT_API_BASE", "http://localhost:8000"),
		WSBaseURL:      getEnv("MHCHAT_WS_BASE", "ws://localhost:8000"),
		TokenFile:      getEnv("MHCHAT_TOKEN_FILE", "./data/tokens.json"),
		DBPath:         getEnv("DB_PATH", "./data/chat.db"),
		ReconnectDelay: getEnvMillis("RECONNECT_DELAY_MS", 1500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MLBaseURL == "" {
		return fmt.Errorf("MHCHAT_ML_API_BASE cannot be empty")
	}
	if c.MLTimeout <= 0 {
		return fmt.Errorf("MHCHAT_ML_TIMEOUT_MS must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY_MS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AllowedOrigin == "" ||
		c.AllowedOrigin == "*" ||
		strings.Contains(c.AllowedOrigin, "localhost") ||
		strings.Contains(c.AllowedOrigin, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
