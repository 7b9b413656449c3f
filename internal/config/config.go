package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dyluth/sagastore/internal/logger"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in sagastore.yml.
const (
	BackendRedis = "redis"
	BackendBolt  = "bolt"
)

// Defaults applied by Validate when a field is omitted.
const (
	DefaultRedisURL   = "redis://localhost:6379"
	DefaultBoltPath   = "sagastore.db"
	DefaultHealthAddr = ":8080"
	DefaultNamespace  = "default"
)

// SagastoreConfig represents the top-level sagastore.yml configuration
type SagastoreConfig struct {
	Version    string            `yaml:"version"`
	Namespace  string            `yaml:"namespace"`
	Backend    string            `yaml:"backend,omitempty"` // "redis" (default) or "bolt"
	Redis      *RedisConfig      `yaml:"redis,omitempty"`
	Bolt       *BoltConfig       `yaml:"bolt,omitempty"`
	Versioning *VersioningConfig `yaml:"versioning,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging,omitempty"`
	Health     *HealthConfig     `yaml:"health,omitempty"`
}

// RedisConfig specifies the Redis backend
type RedisConfig struct {
	URL    string `yaml:"url,omitempty"`
	Events bool   `yaml:"events,omitempty"` // Publish lifecycle events on Pub/Sub
}

// BoltConfig specifies the embedded BoltDB backend
type BoltConfig struct {
	Path string `yaml:"path,omitempty"`
}

// VersioningConfig enables optimistic concurrency on saga updates
type VersioningConfig struct {
	Enabled bool `yaml:"enabled"`
	Atomic  bool `yaml:"atomic,omitempty"` // Compare-and-swap instead of re-read check
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// HealthConfig specifies the health and diagnostics server
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns a validated configuration for a local Redis server.
func Default() *SagastoreConfig {
	cfg := &SagastoreConfig{Version: "1.0", Namespace: DefaultNamespace}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *SagastoreConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: namespace, used verbatim in Redis keys and bolt buckets
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if strings.ContainsAny(c.Namespace, ": \t\n") {
		return fmt.Errorf("invalid namespace '%s': must not contain ':' or whitespace", c.Namespace)
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
			c.Redis.URL = DefaultRedisURL
		}
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis.url '%s': %w", c.Redis.URL, err)
		}
	case BackendBolt:
		if c.Bolt == nil {
			c.Bolt = &BoltConfig{}
		}
		if c.Bolt.Path == "" {
			c.Bolt.Path = DefaultBoltPath
		}
		if c.Redis != nil && c.Redis.Events {
			return fmt.Errorf("redis.events requires backend 'redis'")
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be 'redis' or 'bolt')", c.Backend)
	}

	if c.Versioning == nil {
		c.Versioning = &VersioningConfig{}
	}
	if c.Versioning.Atomic && !c.Versioning.Enabled {
		return fmt.Errorf("versioning.atomic requires versioning.enabled")
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logger.InfoLevel)
	}
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	c.Logging.Level = string(level)

	if c.Health == nil {
		c.Health = &HealthConfig{}
	}
	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}

	return nil
}

// ApplyEnv overrides configuration fields from environment variables.
// SAGASTORE_REDIS_URL takes precedence over REDIS_URL.
func (c *SagastoreConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		c.redisConfig().URL = v
	}
	if v, ok := lookup("SAGASTORE_REDIS_URL"); ok && v != "" {
		c.redisConfig().URL = v
	}
	if v, ok := lookup("SAGASTORE_BACKEND"); ok && v != "" {
		c.Backend = v
	}
	if v, ok := lookup("SAGASTORE_NAMESPACE"); ok && v != "" {
		c.Namespace = v
	}
	if v, ok := lookup("SAGASTORE_LOG_LEVEL"); ok && v != "" {
		if c.Logging == nil {
			c.Logging = &LoggingConfig{}
		}
		c.Logging.Level = v
	}
}

func (c *SagastoreConfig) redisConfig() *RedisConfig {
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	return c.Redis
}

// Load reads sagastore.yml from the specified path, applies environment
// overrides and validates the result
func Load(path string) (*SagastoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config SagastoreConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path if it exists. A missing file yields the default
// configuration with environment overrides applied.
func LoadOrDefault(path string) (*SagastoreConfig, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := &SagastoreConfig{Version: "1.0", Namespace: DefaultNamespace}
	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
