package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                   string
	Port                     string
	DatabaseURL              string
	SupabaseURL              string
	SupabaseAnonKey          string
	SupabaseJWTSecret        string
	LemonSqueezyAPIKey       string
	LemonSqueezyBaseURL      string
	LemonSqueezyWebhookKey   string
	GeoIPDBPath              string
	DefaultLocale            string
	AllowedOrigins           []string
	CookieSecure             bool
	HTTPReadTimeout          time.Duration
	HTTPWriteTimeout         time.Duration
	HTTPIdleTimeout          time.Duration
	SubscriptionFetchTimeout time.Duration
	ClientIdleTTL            time.Duration
	ClientMax                int
	RateLimitPerMin          int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Missing connection settings fail fast instead of producing a half-wired server.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		Port:                     getEnv("PORT", "8080"),
		DatabaseURL:              strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SupabaseURL:              strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey:          strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		SupabaseJWTSecret:        strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET")),
		LemonSqueezyAPIKey:       strings.TrimSpace(os.Getenv("LEMONSQUEEZY_API_KEY")),
		LemonSqueezyBaseURL:      getEnv("LEMONSQUEEZY_BASE_URL", "https://api.lemonsqueezy.com/v1"),
		LemonSqueezyWebhookKey:   strings.TrimSpace(os.Getenv("LEMONSQUEEZY_WEBHOOK_SECRET")),
		GeoIPDBPath:              os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:            getEnv("DEFAULT_LOCALE", "en"),
		AllowedOrigins:           splitList(os.Getenv("ALLOWED_ORIGINS")),
		CookieSecure:             getEnvBool("COOKIE_SECURE", false),
		HTTPReadTimeout:          time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:         time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:          time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		SubscriptionFetchTimeout: time.Second * time.Duration(getEnvInt("SUBSCRIPTION_TIMEOUT_SECONDS", 5)),
		ClientIdleTTL:            time.Minute * time.Duration(getEnvInt("CLIENT_IDLE_TTL_MINUTES", 30)),
		ClientMax:                getEnvInt("CLIENT_MAX", 10000),
		RateLimitPerMin:          getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	required := []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"SUPABASE_URL", cfg.SupabaseURL},
		{"SUPABASE_ANON_KEY", cfg.SupabaseAnonKey},
		{"LEMONSQUEEZY_API_KEY", cfg.LemonSqueezyAPIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%s is required", r.key)
		}
	}

	if cfg.SubscriptionFetchTimeout <= 0 {
		cfg.SubscriptionFetchTimeout = 5 * time.Second
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
