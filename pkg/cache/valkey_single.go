package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// valkeySingleImpl implements ValkeyCluster against a single-node Valkey/Redis instance.
type valkeySingleImpl struct {
	client *redis.Client
	ops    redisOps
}

func NewValkeySingle(addr string, db int, password string, defaultTTL time.Duration) (ValkeyCluster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey single-node: %w", err)
	}

	return newValkeySingleFromClient(client, defaultTTL), nil
}

func newValkeySingleFromClient(client *redis.Client, defaultTTL time.Duration) *valkeySingleImpl {
	return &valkeySingleImpl{
		client: client,
		ops:    redisOps{client: client, ttl: defaultTTL},
	}
}

func (v *valkeySingleImpl) Get(ctx context.Context, key string) ([]byte, error) {
	return v.ops.get(ctx, key)
}

func (v *valkeySingleImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return v.ops.set(ctx, key, value, ttl)
}

func (v *valkeySingleImpl) Delete(ctx context.Context, key string) error {
	return v.ops.del(ctx, key)
}

func (v *valkeySingleImpl) CacheHint(ctx context.Context, hash string, hint string, ttl time.Duration) error {
	return v.ops.set(ctx, hintKey(hash), hint, ttl)
}

func (v *valkeySingleImpl) GetCachedHint(ctx context.Context, hash string) (string, error) {
	b, err := v.ops.get(ctx, hintKey(hash))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (v *valkeySingleImpl) AddToPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	return v.ops.sadd(ctx, patternKey, cacheKey)
}

func (v *valkeySingleImpl) RemoveFromPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	return v.ops.srem(ctx, patternKey, cacheKey)
}

func (v *valkeySingleImpl) GetPatternIndexKeys(ctx context.Context, patternKey string) ([]string, error) {
	return v.ops.smembers(ctx, patternKey)
}

func (v *valkeySingleImpl) DeletePatternIndex(ctx context.Context, patternKey string) error {
	return v.ops.del(ctx, indexKey(patternKey))
}

// HealthCheck pings the Valkey single-node instance.
func (v *valkeySingleImpl) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = c
	}
	return v.client.Ping(ctx).Err()
}
