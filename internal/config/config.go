package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	AuthJWTSecret      string
	AuthIssuer         string
	CORSAllowedOrigins []string

	// PricingTaxRateBPS is the authoritative tax rate in basis points
	// supplied to every session; the core never hardcodes it.
	PricingTaxRateBPS int
	CurrencyCode      string

	CompanyName    string
	CompanyAddress string
	CompanyPhone   string

	SessionCartTTL  time.Duration
	IdempotencyTTL  time.Duration
	CatalogCacheTTL time.Duration
	PromoCacheTTL   time.Duration
	ReportCacheTTL  time.Duration

	RateLimitPerMinute int
	BodyLimitBytes     int64

	ReceiptWebhookURL     string
	WebhookRequestTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		AuthJWTSecret:      k.String("AUTH_JWT_SECRET"),
		AuthIssuer:         valueOrDefault(k.String("AUTH_ISSUER"), "kasir-api"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PricingTaxRateBPS: intOrDefault(k.String("PRICING_TAX_RATE_BPS"), 1100),
		CurrencyCode:      valueOrDefault(k.String("CURRENCY_CODE"), "IDR"),

		CompanyName:    valueOrDefault(k.String("COMPANY_NAME"), "Toko Kasir Kita"),
		CompanyAddress: k.String("COMPANY_ADDRESS"),
		CompanyPhone:   k.String("COMPANY_PHONE"),

		SessionCartTTL:  parseDuration(k.String("SESSION_CART_TTL"), "12h"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		PromoCacheTTL:   parseDuration(k.String("PROMO_CACHE_TTL"), "1m"),
		ReportCacheTTL:  parseDuration(k.String("REPORT_CACHE_TTL"), "10m"),

		RateLimitPerMinute: intOrDefault(k.String("RATE_LIMIT_PER_MINUTE"), 300),
		BodyLimitBytes:     int64(intOrDefault(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		ReceiptWebhookURL:     k.String("RECEIPT_WEBHOOK_URL"),
		WebhookRequestTimeout: parseDuration(k.String("WEBHOOK_REQUEST_TIMEOUT"), "10s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	if cfg.PricingTaxRateBPS < 0 || cfg.PricingTaxRateBPS > 10000 {
		return nil, fmt.Errorf("PRICING_TAX_RATE_BPS out of range: %d", cfg.PricingTaxRateBPS)
	}

	return cfg, nil
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
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
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

func intOrDefault(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
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

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(envVars map[string]string) (*Config, error) {
	original := make(map[string]string, len(envVars))
	for key := range envVars {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, envVars[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
