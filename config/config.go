// Package config loads securecore settings from an optional YAML file and
// SECURECORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brandhub-ma/securecore"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when loaded settings fail validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendLRU    = "lru"
)

// Config is the root configuration.
type Config struct {
	Log     LogConfig              `mapstructure:"log"`
	CSRF    CSRFConfig             `mapstructure:"csrf"`
	Session SessionConfig          `mapstructure:"session"`
	Store   StoreConfig            `mapstructure:"store"`
	Limits  map[string]LimitConfig `mapstructure:"limits" validate:"dive"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// CSRFConfig configures the token manager.
type CSRFConfig struct {
	Lifetime time.Duration `mapstructure:"lifetime" validate:"gt=0"`
}

// SessionConfig selects where the CSRF token is kept.
type SessionConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// StoreConfig selects where attempt logs are kept.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory lru"`
	// MaxEntries caps stored logs. Zero leaves the memory backend unbounded
	// and gives the lru backend store.DefaultLRUSize. A full store denies
	// new keys rather than dropping live logs.
	MaxEntries      int           `mapstructure:"max_entries" validate:"gte=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
}

// LimitConfig is the policy of one action.
type LimitConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
	Window      time.Duration `mapstructure:"window" validate:"gt=0"`
}

// Load reads configuration from path. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	loadFromEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unable to decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Session.Backend == BackendRedis && c.Session.Redis.Addr == "" {
		return fmt.Errorf("%w: session.redis.addr is required for the redis backend", ErrInvalidConfig)
	}
	return nil
}

// Policies returns the configured per-action policies.
func (c *Config) Policies() map[string]securecore.Policy {
	policies := make(map[string]securecore.Policy, len(c.Limits))
	for action, l := range c.Limits {
		policies[action] = securecore.Policy{MaxAttempts: l.MaxAttempts, Window: l.Window}
	}
	return policies
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("csrf.lifetime", time.Hour)
	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.max_entries", 0)
	v.SetDefault("store.cleanup_interval", time.Minute)
	v.SetDefault("limits.contact-form.max_attempts", 5)
	v.SetDefault("limits.contact-form.window", time.Hour)
}

func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix("SECURECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}
