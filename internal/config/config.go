package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                string
	Port                  string
	RedisURL              string
	CORSAllowedOrigins    []string
	CurrencyCode          string
	DeliveryFee           int64
	FreeShippingThreshold *int64
	QuoteTTL              time.Duration
	CouponCatalogPath     string
	QuoteBodyLimitBytes   int64
	QuoteRateLimitMax     int
	QuoteRateLimitWindow  time.Duration
	QuoteCouponParallel   int
	SecurityHeaders       bool
	HSTSEnable            bool
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
		RedisURL:             strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins:   splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:         strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "KRW")),
		QuoteTTL:             parseDuration(k.String("QUOTE_TTL"), "15m"),
		CouponCatalogPath:    strings.TrimSpace(k.String("COUPON_CATALOG_PATH")),
		QuoteRateLimitWindow: parseDuration(k.String("QUOTE_RATE_LIMIT_WINDOW"), "1m"),
		SecurityHeaders:      parseBool(valueOrDefault(k.String("SECURITY_HEADERS_ENABLE"), "true")),
		HSTSEnable:           parseBool(k.String("SECURITY_HSTS_ENABLE")),
	}

	var err error
	if cfg.DeliveryFee, err = parseInt64(k.String("DELIVERY_FEE"), 3000); err != nil {
		return nil, fmt.Errorf("DELIVERY_FEE: %w", err)
	}
	if cfg.DeliveryFee < 0 {
		return nil, errors.New("DELIVERY_FEE must not be negative")
	}
	if raw := strings.TrimSpace(k.String("FREE_SHIPPING_THRESHOLD")); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("FREE_SHIPPING_THRESHOLD: %w", err)
		}
		if threshold < 0 {
			return nil, errors.New("FREE_SHIPPING_THRESHOLD must not be negative")
		}
		cfg.FreeShippingThreshold = &threshold
	}
	if cfg.QuoteBodyLimitBytes, err = parseInt64(k.String("QUOTE_BODY_LIMIT_BYTES"), 65536); err != nil {
		return nil, fmt.Errorf("QUOTE_BODY_LIMIT_BYTES: %w", err)
	}
	rateMax, err := parseInt64(k.String("QUOTE_RATE_LIMIT_MAX"), 120)
	if err != nil {
		return nil, fmt.Errorf("QUOTE_RATE_LIMIT_MAX: %w", err)
	}
	cfg.QuoteRateLimitMax = int(rateMax)
	parallel, err := parseInt64(k.String("QUOTE_COUPON_CONCURRENCY"), 4)
	if err != nil {
		return nil, fmt.Errorf("QUOTE_COUPON_CONCURRENCY: %w", err)
	}
	if parallel < 1 {
		parallel = 1
	}
	cfg.QuoteCouponParallel = int(parallel)

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

func parseInt64(value string, fallback int64) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	return strconv.ParseInt(trimmed, 10, 64)
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
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
