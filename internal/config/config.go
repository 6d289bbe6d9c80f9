package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ze-codes/invest-agent/internal/cache"
	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
	"github.com/ze-codes/invest-agent/internal/persistence"
)

// ServerConfig holds HTTP server settings. The API binds to localhost by
// default; exposing it is an explicit operator decision.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Config is the full application configuration.
type Config struct {
	RegistryPath string                    `yaml:"registry_path"`
	Server       ServerConfig              `yaml:"server"`
	Database     DatabaseConfig            `yaml:"database"`
	Cache        cache.Config              `yaml:"cache"`
	CacheEnabled bool                      `yaml:"cache_enabled"`
	Breaker      persistence.BreakerConfig `yaml:"breaker"`
	Engine       snapshot.Config           `yaml:"engine"`
	Timezone     string                    `yaml:"timezone"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		RegistryPath: "config/registry.yaml",
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          "postgres://localhost:5432/investagent?sslmode=disable",
			QueryTimeout: 5 * time.Second,
		},
		Cache:        cache.DefaultConfig(),
		CacheEnabled: false,
		Breaker:      persistence.DefaultBreakerConfig(),
		Engine:       snapshot.DefaultConfig(),
		Timezone:     "America/New_York",
	}
}

// Load reads a YAML config file over the defaults. Environment overrides
// apply last: INVESTAGENT_DSN and INVESTAGENT_REDIS_ADDR keep credentials
// out of the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if dsn := os.Getenv("INVESTAGENT_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := os.Getenv("INVESTAGENT_REDIS_ADDR"); addr != "" {
		cfg.Cache.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine would refuse anyway, so the
// failure happens at startup with a readable message.
func (c Config) Validate() error {
	if c.RegistryPath == "" {
		return fmt.Errorf("registry_path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database query_timeout must be positive")
	}
	if err := c.Engine.Scorer.Validate(); err != nil {
		return fmt.Errorf("engine scorer: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Validate has already checked
// it parses.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
