// Package config provides centralized configuration loading for the Flixsy server.
// All settings come from environment variables; a local .env file is loaded
// first when present (development convenience, never required in production).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all Flixsy service configuration.
type Config struct {
	// Core
	Port    string
	BaseURL string
	Env     string // "development" or "production"

	// Database
	PostgresURL string

	// Redis (optional — rate limiting degrades to allow-all without it)
	RedisURL string

	// Stripe
	StripeSecretKey string
	PremiumPriceID  string

	// Auth
	JWTSecret     string
	WebhookSecret string // shared secret for identity-provider webhooks

	// Catalog
	TMDBAPIKey string

	// Telemetry
	SentryDSN string

	// Credits
	DailyCredits int
}

// defaultDailyCredits is the free allowance granted per calendar day.
const defaultDailyCredits = 5

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first if one exists (existing env vars win).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("FLIXSY_PORT", "8085"),
		BaseURL:         getEnv("FLIXSY_BASE_URL", "http://localhost:8085"),
		Env:             getEnv("FLIXSY_ENV", "development"),
		PostgresURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		PremiumPriceID:  os.Getenv("STRIPE_PREMIUM_PRICE_ID"),
		JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
		WebhookSecret:   os.Getenv("AUTH_WEBHOOK_SECRET"),
		TMDBAPIKey:      os.Getenv("TMDB_API_KEY"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		DailyCredits:    defaultDailyCredits,
	}

	if v := os.Getenv("FLIXSY_DAILY_CREDITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: FLIXSY_DAILY_CREDITS must be a positive integer, got %q", v)
		}
		cfg.DailyCredits = n
	}

	return cfg, cfg.Validate()
}

// Validate checks that required settings are present.
// Stripe and TMDB keys are optional at startup — the services that need them
// degrade gracefully and report 503 on the affected endpoints.
func (c *Config) Validate() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: AUTH_JWT_SECRET is required")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns an env var with a fallback.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
