// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.
type Config struct {
	// APP_ENV is informational (dev/test/prod).
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port string `env:"APP_PORT" envDefault:"8080"`

	DB DBConfig

	JWTSecret string `env:"JWT_SECRET"`

	// Engine timings.  HOLD_TTL and OFFER_WINDOW apply when neither the
	// session nor its tenant sets a value.  RECONCILE_EVERY=0 disables the
	// reconciliation pass.
	HoldTTL        time.Duration `env:"HOLD_TTL" envDefault:"1h"`
	OfferWindow    time.Duration `env:"OFFER_WINDOW" envDefault:"30m"`
	SchedInterval  time.Duration `env:"SCHED_INTERVAL" envDefault:"30s"`
	ReconcileEvery int           `env:"RECONCILE_EVERY" envDefault:"10"`

	// LOCK_BACKEND is memory (single process) or redis (shared).
	LockBackend string        `env:"LOCK_BACKEND" envDefault:"memory"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	LockWait    time.Duration `env:"LOCK_WAIT" envDefault:"5s"`

	RabbitURL      string `env:"RABBITMQ_URL"`
	NotifyEnabled  bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	NotifyConsumer bool   `env:"NOTIFY_CONSUMER" envDefault:"false"`
	NotifyLogPath  string `env:"NOTIFY_LOG_PATH" envDefault:"logs/notifications.log"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	DirectoryCacheSize int           `env:"DIRECTORY_CACHE_SIZE" envDefault:"1024"`
	DirectoryCacheTTL  time.Duration `env:"DIRECTORY_CACHE_TTL" envDefault:"5m"`

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// DBConfig selects and addresses the database.  DB_PATH is used by the
// sqlite driver only.
type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"mysql"`
	User   string `env:"DB_USER"`
	Pass   string `env:"DB_PASS"`
	Host   string `env:"DB_HOST" envDefault:"localhost"`
	Port   string `env:"DB_PORT" envDefault:"3306"`
	Name   string `env:"DB_NAME"`
	Path   string `env:"DB_PATH" envDefault:"booking.db"`
}

// Load reads an optional .env file and then the environment.  Values
// already present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RateLimit.normalize()
	cfg.Cache.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var problems []string
	switch strings.ToLower(c.DB.Driver) {
	case "mysql", "postgres":
		if c.DB.User == "" || c.DB.Name == "" {
			problems = append(problems, "DB_USER and DB_NAME are required for "+c.DB.Driver)
		}
	case "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	switch c.LockBackend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unsupported LOCK_BACKEND %q", c.LockBackend))
	}
	if c.HoldTTL <= 0 || c.OfferWindow <= 0 || c.SchedInterval <= 0 {
		problems = append(problems, "HOLD_TTL, OFFER_WINDOW and SCHED_INTERVAL must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireJWTSecret fails when no signing secret is configured.  Only the
// commands that verify or mint tokens need it.
func (c Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("missing required env var: JWT_SECRET")
	}
	return nil
}
