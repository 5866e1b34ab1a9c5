package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/dashbridge/pkg/logger"
)

type noopEntry struct {
	value     []byte
	expiresAt time.Time
}

// noopValkeyCache provides an in-memory, process-local fallback that satisfies
// ValkeyCluster when the external cache is unavailable. Data is not shared
// across replicas and is lost on restart. TTLs are honoured lazily on read.
type noopValkeyCache struct {
	mu      sync.RWMutex
	m       map[string]noopEntry
	indexes map[string]map[string]struct{}
	logger  logger.Logger
	now     func() time.Time
}

func NewNoopValkeyCache(log logger.Logger) ValkeyCluster {
	log.Warn("Valkey cache unavailable; using in-memory fallback (noop)")
	return &noopValkeyCache{
		m:       make(map[string]noopEntry),
		indexes: make(map[string]map[string]struct{}),
		logger:  log,
		now:     time.Now,
	}
}

func (n *noopValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	e, ok := n.m[key]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if !e.expiresAt.IsZero() && n.now().After(e.expiresAt) {
		n.mu.Lock()
		delete(n.m, key)
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return e.value, nil
}

func (n *noopValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := encodeValue(value)
	if err != nil {
		return err
	}
	e := noopEntry{value: b}
	if ttl > 0 {
		e.expiresAt = n.now().Add(ttl)
	}
	n.mu.Lock()
	n.m[key] = e
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) CacheHint(ctx context.Context, hash string, hint string, ttl time.Duration) error {
	return n.Set(ctx, hintKey(hash), hint, ttl)
}

func (n *noopValkeyCache) GetCachedHint(ctx context.Context, hash string) (string, error) {
	b, err := n.Get(ctx, hintKey(hash))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HealthCheck returns an error to indicate no external Valkey connectivity.
func (n *noopValkeyCache) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("valkey noop cache in use (external cache not connected)")
}

/* --------------------------- pattern indexes --------------------------- */

func (n *noopValkeyCache) AddToPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.indexes[patternKey]
	if !ok {
		set = make(map[string]struct{})
		n.indexes[patternKey] = set
	}
	set[cacheKey] = struct{}{}
	return nil
}

func (n *noopValkeyCache) RemoveFromPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.indexes[patternKey]; ok {
		delete(set, cacheKey)
	}
	return nil
}

// GetPatternIndexKeys returns members in sorted order.
func (n *noopValkeyCache) GetPatternIndexKeys(ctx context.Context, patternKey string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	set := n.indexes[patternKey]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (n *noopValkeyCache) DeletePatternIndex(ctx context.Context, patternKey string) error {
	n.mu.Lock()
	delete(n.indexes, patternKey)
	n.mu.Unlock()
	return nil
}

// snapshot returns the live entries with their remaining TTL and every
// index with its members.
func (n *noopValkeyCache) snapshot() ([]snapshotEntry, map[string][]string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	now := n.now()
	entries := make([]snapshotEntry, 0, len(n.m))
	for k, e := range n.m {
		var ttl time.Duration
		if !e.expiresAt.IsZero() {
			ttl = e.expiresAt.Sub(now)
			if ttl <= 0 {
				continue
			}
		}
		entries = append(entries, snapshotEntry{key: k, value: e.value, ttl: ttl})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	indexes := make(map[string][]string, len(n.indexes))
	for pattern, set := range n.indexes {
		members := make([]string, 0, len(set))
		for m := range set {
			members = append(members, m)
		}
		sort.Strings(members)
		indexes[pattern] = members
	}
	return entries, indexes
}
