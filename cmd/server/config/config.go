// Package config reads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig holds the listen address and ingress rate limiting settings.
type HTTPConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
	ShutdownTimeout   time.Duration
}

// PricingConfig holds the daily R1 discount quota cap.
type PricingConfig struct {
	MaxR1Discounts int
}

// HolidayConfig holds the remote holiday calendar settings. An empty URL
// disables the remote lookup; the static fallback table is used alone.
type HolidayConfig struct {
	URL           string
	APIKey        string
	Country       string
	Timeout       time.Duration
	RetryAttempts int
}

// RedisConfig holds the quota store backend settings. An empty URL selects
// the in-memory quota store.
type RedisConfig struct {
	URL         string
	PingTimeout time.Duration
}

// LoadHTTP reads HTTP server settings from env.
func LoadHTTP() (HTTPConfig, error) {
	cfg := HTTPConfig{
		Addr: optionalString("HTTP_ADDR", ":8080"),
	}

	var err error
	if cfg.RateLimitInterval, err = optionalDuration("HTTP_RATE_LIMIT_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = optionalInt("HTTP_RATE_LIMIT_BURST", 0); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = optionalDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadPricing reads pricing settings from env.
func LoadPricing() (PricingConfig, error) {
	max, err := optionalInt("PRICING_MAX_R1_DISCOUNTS", 100)
	if err != nil {
		return PricingConfig{}, err
	}
	return PricingConfig{MaxR1Discounts: max}, nil
}

// LoadHoliday reads holiday lookup settings from env.
func LoadHoliday() (HolidayConfig, error) {
	cfg := HolidayConfig{
		URL:     optionalString("HOLIDAY_API_URL", ""),
		APIKey:  optionalString("HOLIDAY_API_KEY", ""),
		Country: optionalString("HOLIDAY_API_COUNTRY", "IN"),
	}
	if cfg.URL != "" && cfg.APIKey == "" {
		return cfg, fmt.Errorf("HOLIDAY_API_KEY is required when HOLIDAY_API_URL is set")
	}

	var err error
	if cfg.Timeout, err = optionalDuration("HOLIDAY_API_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.RetryAttempts, err = optionalInt("HOLIDAY_API_RETRY_ATTEMPTS", 2); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadRedis reads quota backend settings from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL: optionalString("REDIS_URL", ""),
	}
	var err error
	if cfg.PingTimeout, err = optionalDuration("REDIS_PING_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func optionalString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func optionalInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func optionalDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
