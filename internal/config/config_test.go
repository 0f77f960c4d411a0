package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HoldTTL != time.Hour || cfg.OfferWindow != 30*time.Minute {
		t.Fatalf("unexpected defaults: hold %s offer %s", cfg.HoldTTL, cfg.OfferWindow)
	}
	if cfg.LockBackend != "memory" || cfg.DB.Path != "booking.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Cache.Methods["GET"] || !cfg.Cache.Methods["HEAD"] || len(cfg.Cache.Methods) != 2 {
		t.Fatalf("unexpected cache methods %v", cfg.Cache.Methods)
	}
	if cfg.RateLimit.Capacity != 5 || cfg.RateLimit.RefillInterval != 2*time.Second || cfg.RateLimit.TTL < 10*time.Second {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("LOCK_BACKEND", "etcd")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DB_DRIVER", "LOCK_BACKEND"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestRedisAddress(t *testing.T) {
	if got := (RedisConfig{Addr: "cache:6379"}).Address(); got != "cache:6379" {
		t.Fatalf("Address = %q", got)
	}
	if got := (RedisConfig{Host: "r", Port: "7000", Addr: "x:1"}).Address(); got != "r:7000" {
		t.Fatalf("Address = %q", got)
	}
}

func TestRequireJWTSecret(t *testing.T) {
	if err := (Config{}).RequireJWTSecret(); err == nil {
		t.Fatal("expected missing secret error")
	}
	if err := (Config{JWTSecret: "s"}).RequireJWTSecret(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
