// Package config loads process-wide settings from the environment, with an
// optional .env file for local development. Invalid values fail Load at
// startup, never at request time.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Requests      int           `env:"RATE_LIMIT_REQUESTS" envDefault:"5"`
	WindowSeconds int           `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	Store         string        `env:"RATE_LIMIT_STORE" envDefault:"memory"`
	StoreTimeout  time.Duration `env:"RATE_LIMIT_STORE_TIMEOUT" envDefault:"2s"`
	FailOpen      bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"false"`

	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	Port string `env:"PORT" envDefault:"8080"`
}

// Window returns the configured window length as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func Load() (Config, error) {
	// The .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.Requests)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive, got %d", c.WindowSeconds)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("RATE_LIMIT_STORE_TIMEOUT must be positive, got %v", c.StoreTimeout)
	}
	switch c.Store {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_STORE: %q", c.Store)
	}
	if c.Store == "postgres" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required when RATE_LIMIT_STORE=postgres")
	}
	return nil
}
