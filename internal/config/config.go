// config.go

// Environment variable loading and validation for both ferry processes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSessionSecretLength is the shortest SESSION_SECRET accepted.
const MinSessionSecretLength = 32

// FrontendConfig holds all env configuration vars for the session-holding web process.
type FrontendConfig struct {
	// OIDCIssuer is OIDC_DOMAIN with a scheme, e.g. "https://tenant.auth0.com".
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	// OIDCAudience is the API audience requested at login. Empty means the
	// provider issues no API access token and the identity tier is used instead.
	OIDCAudience string

	SessionSecret string
	AppBaseURL    string
	BackendURL    string
	Port          string
	LogLevel      slog.Level

	// RedisURL is optional; empty keeps sessions in process memory.
	RedisURL string

	// Defaults: 24h TTL, 10000 in-memory sessions.
	SessionTTL        time.Duration
	SessionMemorySize int
}

// BackendConfig holds all env configuration vars for the resource server.
type BackendConfig struct {
	// DatabaseURL is optional; empty keeps users in process memory (development only).
	DatabaseURL string
	// OIDCAudience is not enforced, only reported so mismatches show up in logs.
	OIDCAudience       string
	CORSAllowedOrigins []string
	Port               string
	LogLevel           slog.Level
}

// LoadFrontendConfig reads environment variables and returns a validated FrontendConfig.
// Returns an error if any required variable is missing or SESSION_SECRET is too short.
func LoadFrontendConfig() (*FrontendConfig, error) {
	loadDotEnv()

	cfg := &FrontendConfig{}

	domain, err := required("OIDC_DOMAIN")
	if err != nil {
		return nil, err
	}
	cfg.OIDCIssuer = issuerURL(domain)

	if cfg.OIDCClientID, err = required("OIDC_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.OIDCClientSecret, err = required("OIDC_CLIENT_SECRET"); err != nil {
		return nil, err
	}
	cfg.OIDCAudience = os.Getenv("OIDC_AUDIENCE")

	if cfg.SessionSecret, err = required("SESSION_SECRET"); err != nil {
		return nil, err
	}
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength)
	}

	if cfg.AppBaseURL, err = required("APP_BASE_URL"); err != nil {
		return nil, err
	}
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")

	if cfg.BackendURL, err = required("BACKEND_URL"); err != nil {
		return nil, err
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	cfg.Port = envString("PORT", "3000")
	cfg.LogLevel = logLevel()
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.SessionTTL = envDuration("SESSION_TTL", 24*time.Hour)
	cfg.SessionMemorySize = envInt("SESSION_MEMORY_SIZE", 10000)

	return cfg, nil
}

// LoadBackendConfig reads environment variables and returns a BackendConfig.
// Nothing is required; every field has a development default.
func LoadBackendConfig() (*BackendConfig, error) {
	loadDotEnv()

	cfg := &BackendConfig{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		OIDCAudience: os.Getenv("OIDC_AUDIENCE"),
		Port:         envString("PORT", "8000"),
		LogLevel:     logLevel(),
	}

	// Fall back to the frontend origin so a single .env serves both processes.
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		origins = os.Getenv("APP_BASE_URL")
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

// LogAudience reports the configured API audience at startup.
// A missing or mismatched audience is the usual reason the API-credential tier
// never appears, so it is worth a warning rather than silence.
func LogAudience(process, audience string) {
	if audience == "" {
		slog.Warn("OIDC_AUDIENCE not set; API access tokens will not be issued, identity tokens are used instead",
			"process", process)
		return
	}
	slog.Info("oidc audience configured", "process", process, "audience", audience)
}

// loadDotEnv loads ./.env if present. Real environment variables win.
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env", "error", err)
	}
}

// required returns the value of key or an error naming it.
func required(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// issuerURL prepends https:// to bare provider domains.
func issuerURL(domain string) string {
	if strings.HasPrefix(domain, "https://") || strings.HasPrefix(domain, "http://") {
		return strings.TrimRight(domain, "/")
	}
	return "https://" + strings.TrimRight(domain, "/")
}

// logLevel parses LOG_LEVEL, default info.
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envString reads an env var, returning def if missing.
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
