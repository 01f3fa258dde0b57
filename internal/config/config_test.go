package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"DB_CONN_STRING", "GEMINI_API_KEY", "GOOGLE_API_KEY", "SCREENING_URL",
		"UBO_THRESHOLD", "EXTRACTION_TIMEOUT_SECONDS", "EXTRACTION_RETRIES",
		"SCREENING_TIMEOUT_SECONDS", "SCREENING_RETRIES",
	} {
		t.Setenv(name, "")
	}

	cfg := Load()
	if cfg.UBOThreshold != 25.0 {
		t.Errorf("default UBO threshold should be 25.0, got %f", cfg.UBOThreshold)
	}
	if cfg.ExtractionTimeout != 20*time.Second {
		t.Errorf("default extraction timeout should be 20s, got %s", cfg.ExtractionTimeout)
	}
	if cfg.ScreeningTimeout != 30*time.Second {
		t.Errorf("default screening timeout should be 30s, got %s", cfg.ScreeningTimeout)
	}
	if cfg.GeminiAPIKey != "" {
		t.Errorf("no key configured; expected empty, got %q", cfg.GeminiAPIKey)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_CONN_STRING", "postgres://db.internal:5432/onboarding")
	t.Setenv("UBO_THRESHOLD", "10")
	t.Setenv("SCREENING_RETRIES", "5")
	t.Setenv("EXTRACTION_TIMEOUT_SECONDS", "45")

	cfg := Load()
	if cfg.DBConnString != "postgres://db.internal:5432/onboarding" {
		t.Errorf("unexpected conn string %q", cfg.DBConnString)
	}
	if cfg.UBOThreshold != 10 {
		t.Errorf("expected threshold 10, got %f", cfg.UBOThreshold)
	}
	if cfg.ScreeningRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.ScreeningRetries)
	}
	if cfg.ExtractionTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %s", cfg.ExtractionTimeout)
	}
}

func TestGeminiKeyFallsBackToGoogleKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	if cfg := Load(); cfg.GeminiAPIKey != "google-key" {
		t.Errorf("expected fallback to GOOGLE_API_KEY, got %q", cfg.GeminiAPIKey)
	}

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	if cfg := Load(); cfg.GeminiAPIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should take precedence, got %q", cfg.GeminiAPIKey)
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("UBO_THRESHOLD", "a lot")
	t.Setenv("EXTRACTION_RETRIES", "-")
	t.Setenv("SCREENING_TIMEOUT_SECONDS", "-3")

	cfg := Load()
	if cfg.UBOThreshold != 25.0 {
		t.Errorf("malformed float should fall back, got %f", cfg.UBOThreshold)
	}
	if cfg.ExtractionRetries != 2 {
		t.Errorf("malformed int should fall back, got %d", cfg.ExtractionRetries)
	}
	if cfg.ScreeningTimeout != 30*time.Second {
		t.Errorf("non-positive duration should fall back, got %s", cfg.ScreeningTimeout)
	}
}
