// Package config loads the server configuration from a YAML file with
// environment overrides. The encryption key is deliberately absent here: it
// lives in the database configuration singleton.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	DatabaseDSN string `yaml:"database-dsn"`

	JWT       JWTConfig       `yaml:"jwt"`
	Import    ImportConfig    `yaml:"import"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`

	// ViewCacheTTLMinutes bounds staleness of the decrypted-view cache.
	ViewCacheTTLMinutes int `yaml:"view-cache-ttl-minutes"`
}

// JWTConfig configures session token signing.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry-hours"`
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	hours := c.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// ImportConfig configures the import bundle drop path used when no file is
// attached to the import request.
type ImportConfig struct {
	DropPath string `yaml:"drop-path"`
}

// LogConfig configures logrus output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
}

// RateLimitConfig configures the login rate limiter. With RedisAddr set the
// window is shared across instances; otherwise it is tracked in process.
type RateLimitConfig struct {
	LoginPerMinute int    `yaml:"login-per-minute"`
	RedisAddr      string `yaml:"redis-addr"`
	RedisPassword  string `yaml:"redis-password"`
	RedisDB        int    `yaml:"redis-db"`
}

// Load reads the config file at path, applies defaults, and then applies
// environment overrides. A missing file is not an error; defaults plus
// environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Listen:      ":8080",
		DatabaseDSN: "file:connvault.db",
		Import:      ImportConfig{DropPath: "connections.zip"},
		Log:         LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3},
		RateLimit:   RateLimitConfig{LoginPerMinute: 10},
	}

	if path != "" {
		data, errRead := os.ReadFile(path)
		switch {
		case errRead == nil:
			if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
			}
		case !os.IsNotExist(errRead):
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
	}

	applyEnvOverrides(cfg)

	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt secret is required (set jwt.secret or JWT_SECRET)")
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments override file values without editing it.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("IMPORT_DROP_PATH")); v != "" {
		cfg.Import.DropPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
}

// ViewCacheTTL returns the configured decrypted-view cache TTL, zero meaning
// "use the cache default".
func (c *Config) ViewCacheTTL() time.Duration {
	if c.ViewCacheTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.ViewCacheTTLMinutes) * time.Minute
}
