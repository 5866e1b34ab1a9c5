package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/dashbridge/pkg/logger"
)

// autoSwapCache wraps a ValkeyCluster implementation and can swap from a
// fallback (e.g., in-memory noop) to a real Valkey client once it becomes
// available. All calls go to the currently active implementation. Keys and
// indexes written to an in-memory fallback are copied to the real client
// before the swap, so records saved during startup stay readable.
type autoSwapCache struct {
	mu      sync.RWMutex
	current ValkeyCluster
	logger  logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// migrationTimeout bounds copying the fallback contents to the real client.
const migrationTimeout = 30 * time.Second

// NewAutoSwap starts on fallback and dials immediately, then every interval
// until dialReal succeeds, at which point it copies the fallback contents
// across and swaps.
func NewAutoSwap(
	fallback ValkeyCluster,
	log logger.Logger,
	interval time.Duration,
	dialReal func() (ValkeyCluster, error),
) ValkeyCluster {
	return newAutoSwapCache(fallback, log, interval, dialReal)
}

func newAutoSwapCache(
	fallback ValkeyCluster,
	log logger.Logger,
	interval time.Duration,
	dialReal func() (ValkeyCluster, error),
) *autoSwapCache {
	a := &autoSwapCache{
		current: fallback,
		logger:  log,
		stopCh:  make(chan struct{}),
	}

	go func() {
		if a.tryConnect(dialReal) {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				if a.tryConnect(dialReal) {
					return
				}
			}
		}
	}()

	return a
}

func (a *autoSwapCache) tryConnect(dialReal func() (ValkeyCluster, error)) bool {
	client, err := dialReal()
	if err != nil {
		a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.stopCh:
		return true
	default:
	}
	moved, err := migrate(a.current, client)
	if err != nil {
		a.logger.Warn("Copying in-memory cache to Valkey failed; will retry", "error", err)
		return false
	}
	a.current = client
	a.logger.Info("Valkey connection established; switched from in-memory to real cache", "migrated_keys", moved)
	return true
}

// snapshotter is implemented by caches whose contents can be copied out.
type snapshotter interface {
	snapshot() ([]snapshotEntry, map[string][]string)
}

type snapshotEntry struct {
	key   string
	value []byte
	ttl   time.Duration // 0 = no expiry
}

// migrate copies every live key and index member of from into to.
func migrate(from, to ValkeyCluster) (int, error) {
	src, ok := from.(snapshotter)
	if !ok {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	entries, indexes := src.snapshot()
	for _, e := range entries {
		if err := to.Set(ctx, e.key, e.value, e.ttl); err != nil {
			return 0, fmt.Errorf("copy key %s: %w", e.key, err)
		}
	}
	for pattern, members := range indexes {
		for _, m := range members {
			if err := to.AddToPatternIndex(ctx, pattern, m); err != nil {
				return 0, fmt.Errorf("copy index %s: %w", pattern, err)
			}
		}
	}
	return len(entries), nil
}

// Stop ends the background connector. Safe to call more than once.
func (a *autoSwapCache) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// with runs fn against the active implementation while holding the read
// lock, so a swap waits for in-flight calls and blocks new ones.
func (a *autoSwapCache) with(fn func(c ValkeyCluster) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fn(a.current)
}

func (a *autoSwapCache) active() ValkeyCluster {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *autoSwapCache) Get(ctx context.Context, key string) (b []byte, err error) {
	err = a.with(func(c ValkeyCluster) error {
		b, err = c.Get(ctx, key)
		return err
	})
	return b, err
}

func (a *autoSwapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.with(func(c ValkeyCluster) error { return c.Set(ctx, key, value, ttl) })
}

func (a *autoSwapCache) Delete(ctx context.Context, key string) error {
	return a.with(func(c ValkeyCluster) error { return c.Delete(ctx, key) })
}

func (a *autoSwapCache) CacheHint(ctx context.Context, hash string, hint string, ttl time.Duration) error {
	return a.with(func(c ValkeyCluster) error { return c.CacheHint(ctx, hash, hint, ttl) })
}

func (a *autoSwapCache) GetCachedHint(ctx context.Context, hash string) (hint string, err error) {
	err = a.with(func(c ValkeyCluster) error {
		hint, err = c.GetCachedHint(ctx, hash)
		return err
	})
	return hint, err
}

func (a *autoSwapCache) AddToPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	return a.with(func(c ValkeyCluster) error { return c.AddToPatternIndex(ctx, patternKey, cacheKey) })
}

func (a *autoSwapCache) RemoveFromPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	return a.with(func(c ValkeyCluster) error { return c.RemoveFromPatternIndex(ctx, patternKey, cacheKey) })
}

func (a *autoSwapCache) GetPatternIndexKeys(ctx context.Context, patternKey string) (keys []string, err error) {
	err = a.with(func(c ValkeyCluster) error {
		keys, err = c.GetPatternIndexKeys(ctx, patternKey)
		return err
	})
	return keys, err
}

func (a *autoSwapCache) DeletePatternIndex(ctx context.Context, patternKey string) error {
	return a.with(func(c ValkeyCluster) error { return c.DeletePatternIndex(ctx, patternKey) })
}

func (a *autoSwapCache) HealthCheck(ctx context.Context) error {
	return a.with(func(c ValkeyCluster) error { return c.HealthCheck(ctx) })
}

// NewAutoSwapForSingle creates an auto-swapping cache that upgrades from
// in-memory to a single-node Valkey client when reachable.
func NewAutoSwapForSingle(addr string, db int, password string, ttl time.Duration, log logger.Logger, fallback ValkeyCluster) ValkeyCluster {
	return newAutoSwapCache(fallback, log, 5*time.Second, func() (ValkeyCluster, error) {
		return NewValkeySingle(addr, db, password, ttl)
	})
}

// NewAutoSwapForCluster creates an auto-swapping cache that upgrades from
// in-memory to a Valkey cluster client when reachable.
func NewAutoSwapForCluster(nodes []string, password string, ttl time.Duration, log logger.Logger, fallback ValkeyCluster) ValkeyCluster {
	return newAutoSwapCache(fallback, log, 5*time.Second, func() (ValkeyCluster, error) {
		return NewValkeyCluster(nodes, password, ttl)
	})
}
