package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the web client.
type Config struct {
	ListenAddr    string
	PredictAPIURL string
	SessionSecret string
	SessionTTL    time.Duration
	// SessionCookieSecure marks the session cookie HTTPS-only.
	SessionCookieSecure bool
	MaxSessions         int
	ShutdownTimeout     time.Duration
	LogLevel            string
}

// Load reads an optional .env file from the working directory and then the
// process environment. Values already present in the environment win.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit .env paths. Missing files are ignored.
func LoadFiles(paths ...string) (*Config, error) {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := &Config{
		ListenAddr:          getEnv("LISTEN_ADDR", ":8080"),
		PredictAPIURL:       strings.TrimRight(getEnv("PREDICT_API_URL", "http://localhost:8000"), "/"),
		SessionSecret:       getEnv("SESSION_SECRET", "dev-secret"),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		SessionCookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", false),
		MaxSessions:         getEnvAsInt("MAX_SESSIONS", 1000),
		ShutdownTimeout:     getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.PredictAPIURL)
	if err != nil {
		return fmt.Errorf("PREDICT_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PREDICT_API_URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("PREDICT_API_URL: missing host")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.MaxSessions <= 0 {
		return errors.New("MAX_SESSIONS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}
