package config

import (
	"testing"
	"time"
)

func TestLoadHTTP_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("HTTP_RATE_LIMIT_INTERVAL", "")
	t.Setenv("HTTP_RATE_LIMIT_BURST", "")

	cfg, err := LoadHTTP()
	if err != nil {
		t.Fatalf("LoadHTTP: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.RateLimitInterval != 0 || cfg.RateLimitBurst != 0 {
		t.Fatalf("rate limiting must default off: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.ShutdownTimeout)
	}
}

func TestLoadHTTP_RateLimit(t *testing.T) {
	t.Setenv("HTTP_RATE_LIMIT_INTERVAL", "100ms")
	t.Setenv("HTTP_RATE_LIMIT_BURST", "5")

	cfg, err := LoadHTTP()
	if err != nil {
		t.Fatalf("LoadHTTP: %v", err)
	}
	if cfg.RateLimitInterval != 100*time.Millisecond || cfg.RateLimitBurst != 5 {
		t.Fatalf("unexpected rate limit settings: %+v", cfg)
	}
}

func TestLoadHTTP_InvalidDuration(t *testing.T) {
	t.Setenv("HTTP_RATE_LIMIT_INTERVAL", "not-a-duration")

	if _, err := LoadHTTP(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadPricing_Default(t *testing.T) {
	t.Setenv("PRICING_MAX_R1_DISCOUNTS", "")

	cfg, err := LoadPricing()
	if err != nil {
		t.Fatalf("LoadPricing: %v", err)
	}
	if cfg.MaxR1Discounts != 100 {
		t.Fatalf("unexpected quota cap: %d", cfg.MaxR1Discounts)
	}
}

func TestLoadPricing_Negative(t *testing.T) {
	t.Setenv("PRICING_MAX_R1_DISCOUNTS", "-1")

	if _, err := LoadPricing(); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestLoadHoliday_RequiresKeyWithURL(t *testing.T) {
	t.Setenv("HOLIDAY_API_URL", "https://calendar.example.com/v2/holidays")
	t.Setenv("HOLIDAY_API_KEY", "")

	if _, err := LoadHoliday(); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestLoadHoliday_Defaults(t *testing.T) {
	t.Setenv("HOLIDAY_API_URL", "")
	t.Setenv("HOLIDAY_API_COUNTRY", "")
	t.Setenv("HOLIDAY_API_TIMEOUT", "")

	cfg, err := LoadHoliday()
	if err != nil {
		t.Fatalf("LoadHoliday: %v", err)
	}
	if cfg.Country != "IN" || cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRedis_EmptyURLSelectsMemory(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("LoadRedis: %v", err)
	}
	if cfg.URL != "" {
		t.Fatalf("unexpected url: %s", cfg.URL)
	}
}
