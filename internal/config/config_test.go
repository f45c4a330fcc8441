package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LISTEN_ADDR", "PREDICT_API_URL", "SESSION_SECRET", "SESSION_TTL", "SHUTDOWN_TIMEOUT", "LOG_LEVEL", "SESSION_COOKIE_SECURE", "MAX_SESSIONS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("expected defaults, got error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.PredictAPIURL != "http://localhost:8000" {
		t.Fatalf("unexpected predict url: %s", cfg.PredictAPIURL)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl: %s", cfg.SessionTTL)
	}
	if cfg.SessionCookieSecure || cfg.MaxSessions != 1000 {
		t.Fatalf("unexpected session defaults: secure=%v max=%d", cfg.SessionCookieSecure, cfg.MaxSessions)
	}
}

func TestLoadSessionSettings(t *testing.T) {
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("MAX_SESSIONS", "25")

	cfg, err := LoadFiles()
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !cfg.SessionCookieSecure || cfg.MaxSessions != 25 {
		t.Fatalf("unexpected session settings: secure=%v max=%d", cfg.SessionCookieSecure, cfg.MaxSessions)
	}

	t.Setenv("MAX_SESSIONS", "0")
	if _, err := LoadFiles(); err == nil {
		t.Fatal("expected error for non-positive MAX_SESSIONS")
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	// godotenv only fills keys that are absent, so unset them after
	// registering the restore.
	for _, key := range []string{"PREDICT_API_URL", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("LISTEN_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), ".env")
	content := "PREDICT_API_URL=https://classifier.example.com/\nSHUTDOWN_TIMEOUT=3s\nLISTEN_ADDR=:7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	cfg, err := LoadFiles(path)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if cfg.PredictAPIURL != "https://classifier.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PredictAPIURL)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("expected environment to win, got %s", cfg.ListenAddr)
	}
}

func TestLoadRejectsBadPredictURL(t *testing.T) {
	t.Setenv("PREDICT_API_URL", "ftp://classifier")

	if _, err := LoadFiles(); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
