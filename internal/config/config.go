// Package config reads engine configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the engine's wiring needs.
type Config struct {
	DBConnString      string
	GeminiAPIKey      string
	ScreeningURL      string
	UBOThreshold      float64
	ExtractionTimeout time.Duration
	ExtractionRetries int
	ScreeningTimeout  time.Duration
	ScreeningRetries  int
}

// Load builds the configuration from environment variables with local
// development defaults.
func Load() Config {
	return Config{
		DBConnString:      envString("DB_CONN_STRING", "postgres://localhost:5432/postgres?sslmode=disable"),
		GeminiAPIKey:      geminiAPIKey(),
		ScreeningURL:      envString("SCREENING_URL", "http://localhost:8091"),
		UBOThreshold:      envFloat("UBO_THRESHOLD", 25.0),
		ExtractionTimeout: envDuration("EXTRACTION_TIMEOUT_SECONDS", 20*time.Second),
		ExtractionRetries: envInt("EXTRACTION_RETRIES", 2),
		ScreeningTimeout:  envDuration("SCREENING_TIMEOUT_SECONDS", 30*time.Second),
		ScreeningRetries:  envInt("SCREENING_RETRIES", 2),
	}
}

// geminiAPIKey looks for GEMINI_API_KEY first, then falls back to
// GOOGLE_API_KEY.
func geminiAPIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func envString(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if value := os.Getenv(name); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if value := os.Getenv(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if value := os.Getenv(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return fallback
}
