package enrichment

import (
	"fmt"

	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/logging"
	"github.com/platformbuilds/dashbridge/pkg/cache"
)

// NewCompleter builds the provider named in cfg.
func NewCompleter(cfg config.EnrichmentConfig, logger logging.Logger) (Completer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg, logger)
	case "anthropic":
		return NewAnthropicProvider(cfg, logger)
	case "ollama":
		return NewOllamaProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported enrichment provider: %s", cfg.Provider)
	}
}

// New returns the enricher described by cfg, or nil when enrichment is
// disabled. A nil cache or a zero cache TTL skips hint caching.
func New(cfg config.EnrichmentConfig, c cache.ValkeyCluster, logger logging.Logger) (converter.Enricher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	logger = logging.OrNop(logger)

	completer, err := NewCompleter(cfg, logger)
	if err != nil {
		return nil, err
	}

	var e converter.Enricher = NewLLMEnricher(completer, logger)
	if c != nil && cfg.CacheTTL > 0 {
		e = NewCachedEnricher(e, c, cfg.HintTTL(), completer.Name(), logger)
	}

	logger.Info("Enrichment enabled", "provider", completer.Name(), "model", cfg.Model, "cached", c != nil && cfg.CacheTTL > 0)
	return e, nil
}
