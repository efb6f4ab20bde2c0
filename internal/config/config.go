// Package config loads bookdist settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type Config struct {
	App     AppConfig
	Server  ServerConfig
	DB      DBConfig
	Rabbit  RabbitConfig
	Pricing PricingConfig
}

type AppConfig struct {
	Env         string
	SessionTTL  time.Duration
	SeedOnStart bool
}

type ServerConfig struct {
	HTTPAddr    string
	GRPCAddr    string
	CORSOrigins []string
}

type DBConfig struct {
	Driver string
	Path   string // sqlite drivers
	DSN    string // pgx
}

type RabbitConfig struct {
	URL          string
	Exchange     string
	ReorderQueue string
}

type PricingConfig struct {
	DefaultCreditLimit money.Money
	TaxRate            decimal.Decimal
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Env:         getEnv("APP_ENV", "dev"),
			SessionTTL:  getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			SeedOnStart: getEnv("SEED_ON_START", "false") == "true",
		},
		Server: ServerConfig{
			HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),
			CORSOrigins: splitAndTrim(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		},
		DB: DBConfig{
			Driver: getEnv("DB_DRIVER", store.DriverSQLite),
			Path:   getEnv("DB_PATH", "./data/bookdist.db"),
			DSN:    getEnv("DB_DSN", ""),
		},
		Rabbit: RabbitConfig{
			URL:          getEnv("RABBIT_URL", ""),
			Exchange:     getEnv("RABBIT_EXCHANGE", "bookdist_events"),
			ReorderQueue: getEnv("REORDER_QUEUE", "bookdist.reorder"),
		},
	}

	var err error
	if cfg.Pricing.DefaultCreditLimit, err = money.Parse(getEnv("DEFAULT_CREDIT_LIMIT", "1000")); err != nil {
		return nil, fmt.Errorf("DEFAULT_CREDIT_LIMIT: %w", err)
	}
	if cfg.Pricing.TaxRate, err = decimal.NewFromString(getEnv("TAX_RATE", "0")); err != nil {
		return nil, fmt.Errorf("TAX_RATE: %w", err)
	}
	return cfg, cfg.validate()
}

// Target is what store.Open expects for the configured driver.
func (d DBConfig) Target() string {
	if d.Driver == store.DriverPgx {
		return d.DSN
	}
	return d.Path
}

func (a AppConfig) IsProd() bool { return a.Env == "prod" || a.Env == "production" }

func (c *Config) validate() error {
	switch c.DB.Driver {
	case store.DriverSQLite, store.DriverSQLite3:
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH is required for %s", c.DB.Driver)
		}
	case store.DriverPgx:
		if c.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required for pgx")
		}
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.DB.Driver)
	}
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return fmt.Errorf("at least one of HTTP_ADDR and GRPC_ADDR is required")
	}
	if c.App.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Pricing.DefaultCreditLimit < 0 {
		return fmt.Errorf("DEFAULT_CREDIT_LIMIT cannot be negative")
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("TAX_RATE must be a percentage between 0 and 100")
	}
	if c.Rabbit.URL != "" && c.Rabbit.Exchange == "" {
		return fmt.Errorf("RABBIT_EXCHANGE is required when RABBIT_URL is set")
	}
	return nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if val := strings.TrimSpace(p); val != "" {
			out = append(out, val)
		}
	}
	return out
}
