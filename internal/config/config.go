package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	// Optional rotated file output in addition to stdout
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment" yaml:"enrichment"`
	Conversion ConversionConfig `mapstructure:"conversion" yaml:"conversion"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts" yaml:"artifacts"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket" yaml:"websocket"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout" yaml:"read_timeout"`         // seconds
	WriteTimeout    int    `mapstructure:"write_timeout" yaml:"write_timeout"`       // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"` // seconds
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	CORS CORSConfig `mapstructure:"cors" yaml:"cors"`
}

// CORSConfig controls browser access for the upload UI.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// CacheConfig handles Valkey caching configuration. A single node uses the
// single-node client; more than one node uses the cluster client.
type CacheConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
}

// StoreConfig selects where conversion and batch records live.
type StoreConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // valkey | sqlite
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RecordTTL  int    `mapstructure:"record_ttl" yaml:"record_ttl"` // seconds, valkey only; 0 keeps forever
}

type EnrichmentConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Provider    string  `mapstructure:"provider" yaml:"provider"` // openai | anthropic | ollama
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout"`     // seconds per call
	CacheTTL    int     `mapstructure:"cache_ttl" yaml:"cache_ttl"` // seconds; 0 disables hint caching
}

// ConversionConfig holds server-side defaults merged under per-request options.
type ConversionConfig struct {
	TargetVersion         string            `mapstructure:"target_version" yaml:"target_version"`
	PreservePanelIDs      bool              `mapstructure:"preserve_panel_ids" yaml:"preserve_panel_ids"`
	ConvertQueries        bool              `mapstructure:"convert_queries" yaml:"convert_queries"`
	ConvertVisualizations bool              `mapstructure:"convert_visualizations" yaml:"convert_visualizations"`
	IndexPatternMapping   map[string]string `mapstructure:"index_pattern_mapping" yaml:"index_pattern_mapping"`
	MaxPanels             int               `mapstructure:"max_panels" yaml:"max_panels"`
}

type BatchConfig struct {
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type ArtifactsConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	InMemory bool   `mapstructure:"in_memory" yaml:"in_memory"`
}

type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PollInterval    int  `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
}

type MonitoringConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath    string  `mapstructure:"metrics_path" yaml:"metrics_path"`
	TracingEnabled bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// CacheTTL returns the cache TTL as a duration.
func (c CacheConfig) CacheTTL() time.Duration { return time.Duration(c.TTL) * time.Second }

func (e EnrichmentConfig) CallTimeout() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

func (e EnrichmentConfig) HintTTL() time.Duration {
	return time.Duration(e.CacheTTL) * time.Second
}

func (s StoreConfig) RecordTTLDuration() time.Duration {
	return time.Duration(s.RecordTTL) * time.Second
}
