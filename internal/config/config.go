package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
	"github.com/dyluth/larder/pkg/slot"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Supported storage backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "larder.yml"

// Environment overrides, applied after the file is parsed.
const (
	EnvRedisURL   = "LARDER_REDIS_URL"
	EnvOrigin     = "LARDER_ORIGIN"
	EnvSQLitePath = "LARDER_SQLITE_PATH"
)

const (
	defaultOrigin     = "default"
	defaultRedisURL   = "redis://localhost:6379"
	defaultSQLitePath = "larder.db"
	maxOriginLength   = 63
)

// originPattern is DNS-compatible: lowercase alphanumeric, hyphens allowed
// (but not at start/end).
var originPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// LarderConfig represents the top-level larder.yml configuration
type LarderConfig struct {
	Version  string        `yaml:"version"`
	StoreKey string        `yaml:"store_key,omitempty"` // Defaults to "store"
	Origin   string        `yaml:"origin,omitempty"`    // Namespace shared by every context of the app
	Area     string        `yaml:"area,omitempty"`      // local or session
	Backend  string        `yaml:"backend,omitempty"`   // redis, sqlite or memory
	Redis    *RedisConfig  `yaml:"redis,omitempty"`
	SQLite   *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// RedisConfig specifies the Redis connection for the redis backend
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SQLiteConfig specifies the database file for the sqlite backend
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration written by `larder init`.
func Default() *LarderConfig {
	return &LarderConfig{
		Version:  "1.0",
		StoreKey: slot.DefaultKey,
		Origin:   defaultOrigin,
		Area:     slot.AreaLocal,
		Backend:  BackendRedis,
		Redis:    &RedisConfig{URL: defaultRedisURL},
	}
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted fields.
func (c *LarderConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.StoreKey == "" {
		c.StoreKey = slot.DefaultKey
	}
	if err := slot.ValidateKey(c.StoreKey); err != nil {
		return fmt.Errorf("store_key: %w", err)
	}

	if c.Origin == "" {
		c.Origin = defaultOrigin
	}
	if err := ValidateOrigin(c.Origin); err != nil {
		return err
	}

	if c.Area == "" {
		c.Area = slot.AreaLocal
	}
	if c.Area != slot.AreaLocal && c.Area != slot.AreaSession {
		return fmt.Errorf("invalid area '%s': must be '%s' or '%s'", c.Area, slot.AreaLocal, slot.AreaSession)
	}

	if c.Backend == "" {
		c.Backend = BackendRedis
	}

	switch c.Backend {
	case BackendRedis:
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		if c.Redis.URL == "" {
			c.Redis.URL = defaultRedisURL
		}
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return fmt.Errorf("redis.url: %w", err)
		}
	case BackendSQLite:
		if c.SQLite == nil {
			c.SQLite = &SQLiteConfig{}
		}
		if c.SQLite.Path == "" {
			c.SQLite.Path = defaultSQLitePath
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid backend '%s': must be one of redis, sqlite, memory", c.Backend)
	}

	return nil
}

// ValidateOrigin checks if an origin name is valid according to DNS naming rules.
func ValidateOrigin(name string) error {
	if name == "" {
		return fmt.Errorf("origin cannot be empty")
	}

	if len(name) > maxOriginLength {
		return fmt.Errorf("origin too long: %d characters (max: %d)", len(name), maxOriginLength)
	}

	if !originPattern.MatchString(name) {
		return fmt.Errorf("invalid origin '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// envOverrides mirrors the Env* constants.
type envOverrides struct {
	Origin     string `env:"LARDER_ORIGIN"`
	RedisURL   string `env:"LARDER_REDIS_URL"`
	SQLitePath string `env:"LARDER_SQLITE_PATH"`
}

// ApplyEnv overrides file settings with LARDER_* environment variables.
func (c *LarderConfig) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if o.Origin != "" {
		c.Origin = o.Origin
	}
	if o.RedisURL != "" {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.URL = o.RedisURL
	}
	if o.SQLitePath != "" {
		if c.SQLite == nil {
			c.SQLite = &SQLiteConfig{}
		}
		c.SQLite.Path = o.SQLitePath
	}
	return nil
}

// Load reads and validates a larder.yml file, applying environment
// overrides before validation.
func Load(path string) (*LarderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LarderConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists and otherwise falls back to the
// default configuration, still honouring environment overrides.
func LoadOrDefault(path string) (*LarderConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		if err := config.ApplyEnv(); err != nil {
			return nil, err
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return config, nil
	}
	return Load(path)
}

// Write serializes the configuration to path.
func (c *LarderConfig) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
