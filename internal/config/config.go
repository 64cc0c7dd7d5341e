package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port          int    `mapstructure:"PORT" validate:"min=1,max=65535"`
	Env           string `mapstructure:"APP_ENV" validate:"oneof=development production test"`
	LogLevel      string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	AllowedOrigin string `mapstructure:"ALLOWED_ORIGIN"`

	// Storage
	KVBackend   string `mapstructure:"KV_BACKEND" validate:"oneof=memory redis postgres"`
	RedisURL    string `mapstructure:"REDIS_URL" validate:"required_if=KVBackend redis"`
	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required_if=KVBackend postgres"`

	// Tenancy
	DefaultTenantID string `mapstructure:"DEFAULT_TENANT_ID" validate:"required,excludesall=: "`
	RequireTenant   bool   `mapstructure:"REQUIRE_TENANT"`

	// Sale rules
	MaxBasketItems     int     `mapstructure:"MAX_BASKET_ITEMS" validate:"min=1"`
	MinPayment         float64 `mapstructure:"MIN_PAYMENT" validate:"gte=0"`
	DefaultTaxRate     float64 `mapstructure:"DEFAULT_TAX_RATE" validate:"gte=0,lte=1"`
	DefaultMinStock    int     `mapstructure:"DEFAULT_MIN_STOCK" validate:"gte=0"`
	TargetLookbackDays int     `mapstructure:"TARGET_LOOKBACK_DAYS" validate:"min=1,max=366"`

	// Auth and throttling
	AuthSecret          string  `mapstructure:"AUTH_SECRET"`
	CommitRatePerSecond float64 `mapstructure:"COMMIT_RATE_PER_SECOND" validate:"gte=0"`
	CommitBurst         int     `mapstructure:"COMMIT_BURST" validate:"gte=0"`

	SeedDemoInventory bool `mapstructure:"SEED_DEMO_INVENTORY"`
}

// Load reads the environment and an optional .env file in the working
// directory. Auth secrets get no default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("KV_BACKEND", "memory")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DEFAULT_TENANT_ID", "main-store")
	v.SetDefault("REQUIRE_TENANT", false)
	v.SetDefault("MAX_BASKET_ITEMS", 100)
	v.SetDefault("MIN_PAYMENT", 0)
	v.SetDefault("DEFAULT_TAX_RATE", 0.15)
	v.SetDefault("DEFAULT_MIN_STOCK", 5)
	v.SetDefault("TARGET_LOOKBACK_DAYS", 7)
	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("COMMIT_RATE_PER_SECOND", 10)
	v.SetDefault("COMMIT_BURST", 20)
	v.SetDefault("SEED_DEMO_INVENTORY", false)

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.KVBackend = strings.ToLower(strings.TrimSpace(cfg.KVBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
