package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string `mapstructure:"PORT"`
	Env                  string `mapstructure:"ENV"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32  `mapstructure:"DB_MIN_CONNS"`
	TerminologyCacheTTL  string `mapstructure:"TERMINOLOGY_CACHE_TTL"`
	TerminologyTimeoutMS int    `mapstructure:"TERMINOLOGY_TIMEOUT_MS"`
	ParseTimeoutMS       int    `mapstructure:"PARSE_TIMEOUT_MS"`
	FieldMapFile         string `mapstructure:"FIELD_MAP_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TERMINOLOGY_CACHE_TTL", "15m")
	v.SetDefault("TERMINOLOGY_TIMEOUT_MS", 250)
	v.SetDefault("PARSE_TIMEOUT_MS", 10000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("TERMINOLOGY_CACHE_TTL")
	v.BindEnv("TERMINOLOGY_TIMEOUT_MS")
	v.BindEnv("PARSE_TIMEOUT_MS")
	v.BindEnv("FIELD_MAP_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, err := cfg.CacheTTL(); err != nil {
		return nil, fmt.Errorf("invalid TERMINOLOGY_CACHE_TTL: %w", err)
	}
	if cfg.TerminologyTimeoutMS <= 0 {
		return nil, fmt.Errorf("TERMINOLOGY_TIMEOUT_MS must be positive")
	}
	if cfg.ParseTimeoutMS <= 0 {
		return nil, fmt.Errorf("PARSE_TIMEOUT_MS must be positive")
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

// HasDatabase reports whether a terminology store is configured. Without one
// the resolver runs on its embedded fallback table alone.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// CacheTTL parses the terminology cache TTL.
func (c *Config) CacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.TerminologyCacheTTL)
}

// TerminologyTimeout returns the per-lookup store timeout.
func (c *Config) TerminologyTimeout() time.Duration {
	return time.Duration(c.TerminologyTimeoutMS) * time.Millisecond
}

// ParseTimeout returns the overall multi-document assembly timeout.
func (c *Config) ParseTimeout() time.Duration {
	return time.Duration(c.ParseTimeoutMS) * time.Millisecond
}
