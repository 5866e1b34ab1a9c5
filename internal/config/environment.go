package config

// ApplyEnvironment adjusts cfg in place for the named environment profile.
func ApplyEnvironment(config *Config, env string) *Config {
	switch env {
	case "production":
		config.LogLevel = "warn"
		config.Cache.TTL = 7200
	case "staging":
		config.LogLevel = "info"
	case "development":
		config.LogLevel = "debug"
		config.Cache.TTL = 60
	case "test":
		config.LogLevel = "error"
		config.Cache.TTL = 10
		config.Cache.Enabled = false
		config.Enrichment.Enabled = false
		config.Artifacts.InMemory = true
		config.Monitoring.TracingEnabled = false
	}
	return config
}
