package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"github.com/ncklrs/contentbridge-sub000/internal/platform/db"
	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	AuthMode    string   `mapstructure:"AUTH_MODE"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Query compilation settings shared by every target compiler.
	DefaultLocale   string   `mapstructure:"DEFAULT_LOCALE"`
	FallbackLocales []string `mapstructure:"FALLBACK_LOCALES"`
	DefaultLimit    int      `mapstructure:"DEFAULT_LIMIT"`
	MaxResolveDepth int      `mapstructure:"MAX_RESOLVE_DEPTH"`
	IncludeDrafts   bool     `mapstructure:"INCLUDE_DRAFTS"`
	StrictCompile   bool     `mapstructure:"STRICT_COMPILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("DEFAULT_LOCALE", "")
	v.SetDefault("DEFAULT_LIMIT", 100)
	v.SetDefault("MAX_RESOLVE_DEPTH", 10)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("DEFAULT_LOCALE")
	v.BindEnv("FALLBACK_LOCALES")
	v.BindEnv("DEFAULT_LIMIT")
	v.BindEnv("MAX_RESOLVE_DEPTH")
	v.BindEnv("INCLUDE_DRAFTS")
	v.BindEnv("STRICT_COMPILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.FallbackLocales == nil {
		if locales := v.GetString("FALLBACK_LOCALES"); locales != "" {
			cfg.FallbackLocales = strings.Split(locales, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development); requests are not authenticated")
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

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise the mode is inferred: ENV=development runs
// unauthenticated, everything else requires bearer tokens.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "token"
}

// Validate checks that the configuration is safe to run. Outside development
// the JWT secret must be set so real authentication is enforced.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "token":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set when AUTH_MODE is \"token\" (current ENV=%q); refusing to start without authentication configuration", c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"token\", got %q", mode)
	}

	if c.DefaultLimit < 0 {
		return fmt.Errorf("DEFAULT_LIMIT must not be negative, got %d", c.DefaultLimit)
	}
	if c.MaxResolveDepth < 0 {
		return fmt.Errorf("MAX_RESOLVE_DEPTH must not be negative, got %d", c.MaxResolveDepth)
	}
	return nil
}

// PoolConfig maps the service configuration to connection pool settings.
func (c *Config) PoolConfig() db.Config {
	return db.Config{
		URL:      c.DatabaseURL,
		MaxConns: c.DBMaxConns,
		MinConns: c.DBMinConns,
	}
}

// QueryOptions maps the service configuration to compiler options.
func (c *Config) QueryOptions() query.Options {
	return query.Options{
		DefaultLocale:   c.DefaultLocale,
		FallbackLocales: c.FallbackLocales,
		DefaultLimit:    c.DefaultLimit,
		MaxResolveDepth: c.MaxResolveDepth,
		IncludeDrafts:   c.IncludeDrafts,
		Strict:          c.StrictCompile,
	}
}
