// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/warp/gp-ledger/factory"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	DBPath           string   `mapstructure:"DB_PATH"`
	PracticeName     string   `mapstructure:"PRACTICE_NAME"`
	AdminAddress     string   `mapstructure:"ADMIN_ADDRESS"`
	AdminName        string   `mapstructure:"ADMIN_NAME"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	RabbitURL        string   `mapstructure:"RABBIT_URL"`
	EventsExchange   string   `mapstructure:"EVENTS_EXCHANGE"`
	RefundPolicyFile string   `mapstructure:"REFUND_POLICY_FILE"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	InitialFunding   string   `mapstructure:"INITIAL_FUNDING"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DB_PATH", "PRACTICE_NAME", "ADMIN_ADDRESS", "ADMIN_NAME",
	"JWT_SECRET", "RABBIT_URL", "EVENTS_EXCHANGE", "REFUND_POLICY_FILE", "CORS_ORIGINS",
	"INITIAL_FUNDING",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "./data/gp.db")
	v.SetDefault("PRACTICE_NAME", "GP Practice")
	v.SetDefault("ADMIN_NAME", "Practice Admin")
	v.SetDefault("EVENTS_EXCHANGE", "gp.events")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("INITIAL_FUNDING", "0")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is required, because the caller-address header is only
// honoured in development.
func (c *Config) Validate() error {
	if c.AdminAddress == "" {
		return fmt.Errorf("ADMIN_ADDRESS is required")
	}
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if _, err := c.Funding(); err != nil {
		return err
	}
	return nil
}

// Funding returns INITIAL_FUNDING as an amount.
func (c *Config) Funding() (generic.Amount, error) {
	if c.InitialFunding == "" {
		return generic.Amount{}, nil
	}
	a, err := generic.ParseAmount(c.InitialFunding)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("INITIAL_FUNDING: %w", err)
	}
	return a, nil
}

// RefundPolicy reads REFUND_POLICY_FILE, or returns nil for the default policy.
func (c *Config) RefundPolicy() (*gp.RefundPolicy, error) {
	if c.RefundPolicyFile == "" {
		return nil, nil
	}
	b, err := os.ReadFile(c.RefundPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("read refund policy: %w", err)
	}
	return factory.ParseRefundPolicy(string(b))
}
