package config

// GetDefaultConfig returns a configuration with all default values
func GetDefaultConfig() *Config {
	return &Config{
		Environment:   "development",
		Port:          8000,
		LogLevel:      "info",
		LogMaxSizeMB:  100,
		LogMaxBackups: 3,

		Server: ServerConfig{
			Host:            "0.0.0.0",
			ReadTimeout:     30,
			WriteTimeout:    60,
			ShutdownTimeout: 30,
			MaxUploadBytes:  10 << 20,
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8000"},
				MaxAge:         43200,
			},
		},

		Cache: CacheConfig{
			Enabled: false,
			Nodes:   []string{"localhost:6379"},
			TTL:     3600,
			DB:      0,
		},

		Store: StoreConfig{
			Backend:    "valkey",
			SQLitePath: "dashbridge.db",
			RecordTTL:  0,
		},

		Enrichment: EnrichmentConfig{
			Enabled:     false,
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   4000,
			Timeout:     30,
			CacheTTL:    86400,
		},

		Conversion: ConversionConfig{
			TargetVersion:         "8.11.0",
			PreservePanelIDs:      true,
			ConvertQueries:        true,
			ConvertVisualizations: true,
			IndexPatternMapping:   map[string]string{},
			MaxPanels:             100,
		},

		Batch: BatchConfig{
			MaxSize: 50,
			Workers: 4,
		},

		Artifacts: ArtifactsConfig{
			Dir: "downloads",
		},

		WebSocket: WebSocketConfig{
			Enabled:         true,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PollInterval:    250,
			PingInterval:    30,
		},

		Monitoring: MonitoringConfig{
			Enabled:        true,
			MetricsPath:    "/metrics",
			TracingEnabled: false,
			OTLPEndpoint:   "localhost:4317",
			ServiceName:    "dashbridge",
			SampleRatio:    1.0,
		},
	}
}
