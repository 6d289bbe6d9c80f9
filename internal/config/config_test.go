package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "local-only by default")
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 120, cfg.Engine.WindowLimit)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
registry_path: /etc/investagent/registry.yaml
server:
  host: 0.0.0.0
  port: 9090
engine:
  window_limit: 60
cache_enabled: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/investagent/registry.yaml", cfg.RegistryPath)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Engine.WindowLimit)
	assert.True(t, cfg.CacheEnabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("INVESTAGENT_DSN", "postgres://env-host/db")
	t.Setenv("INVESTAGENT_REDIS_ADDR", "env-redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host/db", cfg.Database.DSN)
	assert.Equal(t, "env-redis:6379", cfg.Cache.Addr)
}

func TestValidate_Rejections(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing_registry", func(c *Config) { c.RegistryPath = "" }},
		{"bad_port", func(c *Config) { c.Server.Port = -1 }},
		{"zero_query_timeout", func(c *Config) { c.Database.QueryTimeout = 0 }},
		{"bad_timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
