package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/pkg/logger"
)

func TestAutoSwap_CopiesFallbackContentsOnSwap(t *testing.T) {
	ctx := context.Background()
	fallback := NewNoopValkeyCache(logger.NewNop())
	require.NoError(t, fallback.Set(ctx, "conversion:a", `{"id":"a"}`, 0))
	require.NoError(t, fallback.Set(ctx, "progress:a", "50", time.Hour))
	require.NoError(t, fallback.AddToPatternIndex(ctx, "conversions", "a"))
	require.NoError(t, fallback.CacheHint(ctx, "h1", "line", time.Hour))

	target := NewNoopValkeyCache(logger.NewNop())
	var dials atomic.Int32
	a := newAutoSwapCache(fallback, logger.NewNop(), 10*time.Millisecond, func() (ValkeyCluster, error) {
		if dials.Add(1) < 2 {
			return nil, errors.New("connection refused")
		}
		return target, nil
	})
	t.Cleanup(a.Stop)

	require.Eventually(t, func() bool { return a.active() == target }, 2*time.Second, 5*time.Millisecond)

	b, err := a.Get(ctx, "conversion:a")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(b))
	_, err = target.Get(ctx, "progress:a")
	assert.NoError(t, err)

	ids, err := a.GetPatternIndexKeys(ctx, "conversions")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	hint, err := a.GetCachedHint(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "line", hint)
}

func TestAutoSwap_DialsBeforeFirstTick(t *testing.T) {
	target := NewNoopValkeyCache(logger.NewNop())
	a := newAutoSwapCache(NewNoopValkeyCache(logger.NewNop()), logger.NewNop(), time.Hour, func() (ValkeyCluster, error) {
		return target, nil
	})
	t.Cleanup(a.Stop)

	require.Eventually(t, func() bool { return a.active() == target }, 2*time.Second, 5*time.Millisecond)
}

func TestNoopSnapshot_SkipsExpiredAndKeepsRemainingTTL(t *testing.T) {
	ctx := context.Background()
	n := NewNoopValkeyCache(logger.NewNop()).(*noopValkeyCache)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	require.NoError(t, n.Set(ctx, "forever", "x", 0))
	require.NoError(t, n.Set(ctx, "short", "y", time.Minute))
	require.NoError(t, n.Set(ctx, "stale", "z", time.Second))
	now = now.Add(30 * time.Second)

	entries, _ := n.snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "forever", entries[0].key)
	assert.Zero(t, entries[0].ttl)
	assert.Equal(t, "short", entries[1].key)
	assert.Equal(t, 30*time.Second, entries[1].ttl)
}

type expiryRecorder struct {
	redis.Cmdable
	got []time.Duration
}

func (r *expiryRecorder) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.got = append(r.got, expiration)
	return redis.NewStatusResult("OK", nil)
}

func TestRedisOpsSet_ZeroTTLMeansNoExpiry(t *testing.T) {
	ctx := context.Background()
	rec := &expiryRecorder{}
	ops := redisOps{client: rec, ttl: 5 * time.Minute}

	require.NoError(t, ops.set(ctx, "k", "v", 0))
	require.NoError(t, ops.set(ctx, "k", "v", -1))
	require.NoError(t, ops.set(ctx, "k", "v", time.Second))
	assert.Equal(t, []time.Duration{0, 5 * time.Minute, time.Second}, rec.got)

	noDefault := redisOps{client: rec}
	rec.got = nil
	require.NoError(t, noDefault.set(ctx, "k", "v", -1))
	assert.Equal(t, []time.Duration{0}, rec.got)
}
