package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/pkg/logger"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestConfigLoading(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		config, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Nil(t, config)
	})

	t.Run("load from file", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), `
environment: test
port: 9999
log_level: debug

cache:
  nodes:
    - "test-valkey:6379"
  ttl: 30

conversion:
  target_version: "8.0.0"
  preserve_panel_ids: false
  index_pattern_mapping:
    prometheus: "metrics-*"

batch:
  max_size: 10
`)
		config, err := LoadFile(p)
		require.NoError(t, err)

		assert.Equal(t, "test", config.Environment)
		assert.Equal(t, 9999, config.Port)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Contains(t, config.Cache.Nodes, "test-valkey:6379")
		assert.Equal(t, 30, config.Cache.TTL)
		assert.Equal(t, "8.0.0", config.Conversion.TargetVersion)
		assert.False(t, config.Conversion.PreservePanelIDs)
		assert.Equal(t, "metrics-*", config.Conversion.IndexPatternMapping["prometheus"])
		assert.Equal(t, 10, config.Batch.MaxSize)
		// untouched keys keep defaults
		assert.Equal(t, 4, config.Batch.Workers)
		assert.Equal(t, "valkey", config.Store.Backend)
	})

	t.Run("env var precedence", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "port: 9999\n")
		t.Setenv("DASHBRIDGE_PORT", "7777")
		t.Setenv("DASHBRIDGE_LOG_LEVEL", "warn")

		config, err := LoadFile(p)
		require.NoError(t, err)
		assert.Equal(t, 7777, config.Port)
		assert.Equal(t, "warn", config.LogLevel)
	})

	t.Run("plain env overrides", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "port: 9999\n")
		t.Setenv("PORT", "8123")
		t.Setenv("VALKEY_NODES", "a:6379, b:6379")

		config, err := LoadFile(p)
		require.NoError(t, err)
		assert.Equal(t, 8123, config.Port)
		assert.True(t, config.Cache.Enabled)
		assert.Equal(t, []string{"a:6379", "b:6379"}, config.Cache.Nodes)
	})

	t.Run("invalid file content fails validation", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "store:\n  backend: mongo\n")
		_, err := LoadFile(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid store backend")
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"bad cache node", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Nodes = []string{"no-port"}
		}, "host:port"},
		{"unknown provider", func(c *Config) {
			c.Enrichment.Enabled = true
			c.Enrichment.Provider = "google"
		}, "unsupported enrichment provider"},
		{"missing api key", func(c *Config) {
			c.Enrichment.Enabled = true
			c.Enrichment.Provider = "anthropic"
		}, "API key is required"},
		{"ollama needs no key", func(c *Config) {
			c.Enrichment.Enabled = true
			c.Enrichment.Provider = "ollama"
		}, ""},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"sqlite without path", func(c *Config) {
			c.Store.Backend = "sqlite"
			c.Store.SQLitePath = ""
		}, "sqlite_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			tt.mutate(c)
			err := validateConfig(c)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSecretsLoading(t *testing.T) {
	config := GetDefaultConfig()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VALKEY_PASSWORD", "hunter2")

	require.NoError(t, LoadSecrets(config))
	assert.Equal(t, "sk-test", config.Enrichment.APIKey)
	assert.Equal(t, "hunter2", config.Cache.Password)

	config = GetDefaultConfig()
	config.Enrichment.APIKey = "${MY_KEY}"
	require.NoError(t, LoadSecrets(config))
	assert.Equal(t, "${MY_KEY}", config.Enrichment.APIKey)
}

func TestApplyEnvironment(t *testing.T) {
	c := ApplyEnvironment(GetDefaultConfig(), "test")
	assert.Equal(t, "error", c.LogLevel)
	assert.True(t, c.Artifacts.InMemory)
	assert.False(t, c.Enrichment.Enabled)
}

func TestConfigWatcher_ReloadsAndNotifies(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "port: 9001\n")
	initial, err := LoadFile(p)
	require.NoError(t, err)

	w := NewConfigWatcher(p, initial, logger.NewNop())
	got := make(chan int, 4)
	w.RegisterWatcher(func(c *Config) {
		select {
		case got <- c.Port:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// give the watcher time to register before writing
	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte("port: 9002\n"), 0o600)
		select {
		case port := <-got:
			return port == 9002
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, 9002, w.GetConfig().Port)
	w.Stop()
	require.NoError(t, <-done)
}
