package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL string
	RedisURL    string

	StripeSecretKey      string
	StripeWebhookSecret  string
	WebhookAllowUnsigned bool
	ClientBaseURL        string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthCallbackURL   string
	SessionTTL         time.Duration

	CORSAllowedOrigins []string

	UploadDir      string
	UploadMaxBytes int64
	BodyLimitBytes int64

	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:               valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                 valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:          strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:             strings.TrimSpace(k.String("REDIS_URL")),
		StripeSecretKey:      strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeWebhookSecret:  strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		WebhookAllowUnsigned: parseBool(k.String("WEBHOOK_ALLOW_UNSIGNED")),
		ClientBaseURL:        valueOrDefault(strings.TrimRight(k.String("CLIENT_BASE_URL"), "/"), "http://localhost:3000"),
		GoogleClientID:       strings.TrimSpace(k.String("GOOGLE_CLIENT_ID")),
		GoogleClientSecret:   strings.TrimSpace(k.String("GOOGLE_CLIENT_SECRET")),
		OAuthCallbackURL:     strings.TrimSpace(k.String("OAUTH_CALLBACK_URL")),
		SessionTTL:           parseDuration(k.String("SESSION_TTL"), "168h"),
		CORSAllowedOrigins:   splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		UploadDir:            valueOrDefault(k.String("UPLOAD_DIR"), "uploads"),
		UploadMaxBytes:       parseInt64(k.String("UPLOAD_MAX_BYTES"), 5<<20),
		BodyLimitBytes:       parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),
		RateLimitWindow:      parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:         int(parseInt64(k.String("RATE_LIMIT_MAX"), 30)),
	}

	return cfg, nil
}

// WarnDegraded logs a warning for every optional dependency that is not
// configured. Missing payment or store credentials disable the corresponding
// feature instead of crashing the process.
func (c *Config) WarnDegraded(logger zerolog.Logger) {
	if c.StripeSecretKey == "" {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set; donation endpoints disabled")
	}
	if c.StripeWebhookSecret == "" {
		if c.WebhookAllowUnsigned {
			logger.Warn().Msg("webhook signature verification disabled; never enable WEBHOOK_ALLOW_UNSIGNED in production")
		} else {
			logger.Warn().Msg("STRIPE_WEBHOOK_SECRET not set; webhook endpoint will reject deliveries")
		}
	}
	if c.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set; persistence disabled")
	}
	if c.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; sessions and rate limiting disabled")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		logger.Warn().Msg("Google OAuth credentials not set; login disabled")
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
