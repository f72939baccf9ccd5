// Package config loads the service configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache providers.
const (
	ProviderRedis  = "redis"
	ProviderSQLite = "sqlite"
	ProviderMemory = "memory"
)

type Config struct {
	Port  int         `yaml:"port"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

type CacheConfig struct {
	Provider     string        `yaml:"provider"`
	RedisURL     string        `yaml:"redisUrl"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	SQLiteFile   string        `yaml:"sqliteFile"`
	TTL          time.Duration `yaml:"ttl"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// Cache identifier in the Cache-Status header.
	Name    string        `yaml:"name"`
	Breaker BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	Disabled            bool          `yaml:"disabled"`
	ConsecutiveFailures uint32        `yaml:"consecutiveFailures"`
	OpenTimeout         time.Duration `yaml:"openTimeout"`
}

type LogConfig struct {
	Trace bool   `yaml:"trace"`
	File  string `yaml:"file"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Port: 8080,
		Cache: CacheConfig{
			Provider:     ProviderMemory,
			SQLiteFile:   "cache.db",
			KeyPrefix:    "recipe-cache:",
			TTL:          24 * time.Hour,
			ReadTimeout:  250 * time.Millisecond,
			WriteTimeout: 2 * time.Second,
			Name:         "recipe-cache",
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         5 * time.Second,
			},
		},
	}
}

// Load reads filename over the defaults. An empty filename returns the defaults.
func Load(filename string) (Config, error) {
	config := Default()
	if filename == "" {
		return config, nil
	}
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return config, nil
}

// ApplyEnv overrides fields from the environment: REDIS_URL selects the
// redis provider, PORT sets the listen port.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("REDIS_URL"); v != "" {
		c.Cache.Provider = ProviderRedis
		c.Cache.RedisURL = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = port
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Cache.Provider {
	case ProviderRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache provider %s requires redisUrl", ProviderRedis)
		}
	case ProviderSQLite, ProviderMemory:
	default:
		return fmt.Errorf("unknown cache provider %q", c.Cache.Provider)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	return nil
}
