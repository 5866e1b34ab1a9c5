package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml, or CONFIG_PATH when set)
// 3. Default values
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile is Load with an explicit config file. An empty path searches the
// standard locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/dashbridge/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("DASHBRIDGE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults mirrors GetDefaultConfig so viper knows every key for env binding.
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("environment", d.Environment)
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_max_size_mb", d.LogMaxSizeMB)
	v.SetDefault("log_max_backups", d.LogMaxBackups)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.cors.allowed_origins", d.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.allowed_methods", d.Server.CORS.AllowedMethods)
	v.SetDefault("server.cors.allowed_headers", d.Server.CORS.AllowedHeaders)
	v.SetDefault("server.cors.allow_credentials", d.Server.CORS.AllowCredentials)
	v.SetDefault("server.cors.max_age", d.Server.CORS.MaxAge)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.nodes", d.Cache.Nodes)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.password", d.Cache.Password)
	v.SetDefault("cache.db", d.Cache.DB)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.record_ttl", d.Store.RecordTTL)

	v.SetDefault("enrichment.enabled", d.Enrichment.Enabled)
	v.SetDefault("enrichment.provider", d.Enrichment.Provider)
	v.SetDefault("enrichment.model", d.Enrichment.Model)
	v.SetDefault("enrichment.api_key", d.Enrichment.APIKey)
	v.SetDefault("enrichment.base_url", d.Enrichment.BaseURL)
	v.SetDefault("enrichment.temperature", d.Enrichment.Temperature)
	v.SetDefault("enrichment.max_tokens", d.Enrichment.MaxTokens)
	v.SetDefault("enrichment.timeout", d.Enrichment.Timeout)
	v.SetDefault("enrichment.cache_ttl", d.Enrichment.CacheTTL)

	v.SetDefault("conversion.target_version", d.Conversion.TargetVersion)
	v.SetDefault("conversion.preserve_panel_ids", d.Conversion.PreservePanelIDs)
	v.SetDefault("conversion.convert_queries", d.Conversion.ConvertQueries)
	v.SetDefault("conversion.convert_visualizations", d.Conversion.ConvertVisualizations)
	v.SetDefault("conversion.index_pattern_mapping", d.Conversion.IndexPatternMapping)
	v.SetDefault("conversion.max_panels", d.Conversion.MaxPanels)

	v.SetDefault("batch.max_size", d.Batch.MaxSize)
	v.SetDefault("batch.workers", d.Batch.Workers)

	v.SetDefault("artifacts.dir", d.Artifacts.Dir)
	v.SetDefault("artifacts.in_memory", d.Artifacts.InMemory)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.read_buffer_size", d.WebSocket.ReadBufferSize)
	v.SetDefault("websocket.write_buffer_size", d.WebSocket.WriteBufferSize)
	v.SetDefault("websocket.poll_interval_ms", d.WebSocket.PollInterval)
	v.SetDefault("websocket.ping_interval", d.WebSocket.PingInterval)

	v.SetDefault("monitoring.enabled", d.Monitoring.Enabled)
	v.SetDefault("monitoring.metrics_path", d.Monitoring.MetricsPath)
	v.SetDefault("monitoring.tracing_enabled", d.Monitoring.TracingEnabled)
	v.SetDefault("monitoring.otlp_endpoint", d.Monitoring.OTLPEndpoint)
	v.SetDefault("monitoring.service_name", d.Monitoring.ServiceName)
	v.SetDefault("monitoring.sample_ratio", d.Monitoring.SampleRatio)
}

// overrideWithEnvVars explicitly handles un-prefixed environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	if cacheNodes := os.Getenv("VALKEY_NODES"); cacheNodes != "" {
		v.Set("cache.nodes", splitList(cacheNodes))
		v.Set("cache.enabled", true)
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		v.Set("enrichment.provider", provider)
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		v.Set("enrichment.model", model)
	}

	if enabled := os.Getenv("ENABLE_LLM_CONVERSION"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			v.Set("enrichment.enabled", b)
		}
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		v.Set("server.cors.allowed_origins", splitList(origins))
	}

	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		v.Set("artifacts.dir", dir)
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		v.Set("monitoring.otlp_endpoint", endpoint)
		v.Set("monitoring.tracing_enabled", true)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Cache.Enabled {
		if len(config.Cache.Nodes) == 0 {
			return fmt.Errorf("at least one Valkey cache node is required when cache is enabled")
		}
		for _, n := range config.Cache.Nodes {
			if err := ValidateRedisNode(n); err != nil {
				return err
			}
		}
	}
	if config.Cache.TTL < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}

	switch config.Store.Backend {
	case "valkey":
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid store backend: %s", config.Store.Backend)
	}

	if config.Enrichment.Enabled {
		if !contains([]string{"openai", "anthropic", "ollama"}, config.Enrichment.Provider) {
			return fmt.Errorf("unsupported enrichment provider: %s", config.Enrichment.Provider)
		}
		if config.Enrichment.Provider != "ollama" && config.Enrichment.APIKey == "" {
			return fmt.Errorf("an API key is required for enrichment provider %s", config.Enrichment.Provider)
		}
		if config.Enrichment.BaseURL != "" {
			if err := ValidateEndpoint(config.Enrichment.BaseURL); err != nil {
				return fmt.Errorf("enrichment base_url: %w", err)
			}
		}
	}

	if strings.TrimSpace(config.Conversion.TargetVersion) == "" {
		return fmt.Errorf("conversion.target_version cannot be empty")
	}

	if config.Batch.MaxSize < 1 {
		return fmt.Errorf("batch.max_size must be at least 1")
	}
	if config.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1")
	}

	if !config.Artifacts.InMemory && config.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir cannot be empty")
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
