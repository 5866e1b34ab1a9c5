package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/logging"
	"github.com/platformbuilds/dashbridge/internal/metrics"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/pkg/cache"
)

// CachedEnricher memoises non-empty hints in Valkey. Identical panels and
// queries across dashboards then cost one model call.
type CachedEnricher struct {
	next     converter.Enricher
	cache    cache.ValkeyCluster
	ttl      time.Duration
	provider string
	logger   logging.Logger
}

func NewCachedEnricher(next converter.Enricher, c cache.ValkeyCluster, ttl time.Duration, provider string, logger logging.Logger) *CachedEnricher {
	return &CachedEnricher{next: next, cache: c, ttl: ttl, provider: provider, logger: logging.OrNop(logger)}
}

func (e *CachedEnricher) SuggestType(ctx context.Context, panel models.SourcePanel) (string, error) {
	info, err := panelInfoJSON(panel, "")
	if err != nil {
		return e.next.SuggestType(ctx, panel)
	}
	return e.cached(ctx, opSuggestType, hashKey(opSuggestType, info), func() (string, error) {
		return e.next.SuggestType(ctx, panel)
	})
}

func (e *CachedEnricher) TranslateQuery(ctx context.Context, query, sourceDatasource, targetDatasource string) (string, error) {
	key := hashKey(opTranslateQuery, query, sourceDatasource, targetDatasource)
	return e.cached(ctx, opTranslateQuery, key, func() (string, error) {
		return e.next.TranslateQuery(ctx, query, sourceDatasource, targetDatasource)
	})
}

func (e *CachedEnricher) cached(ctx context.Context, op, key string, call func() (string, error)) (string, error) {
	if hint, err := e.cache.GetCachedHint(ctx, key); err == nil && hint != "" {
		metrics.EnrichmentRequestsTotal.WithLabelValues(e.provider, op, "cached").Inc()
		return hint, nil
	}

	hint, err := call()
	if err != nil || hint == "" {
		return hint, err
	}
	if cerr := e.cache.CacheHint(ctx, key, hint, e.ttl); cerr != nil {
		e.logger.Warn("failed to cache enrichment hint", "operation", op, "error", cerr)
	}
	return hint, nil
}

func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
