package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/dashbridge/internal/monitoring"
)

// ErrKeyNotFound is wrapped by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ValkeyCluster is the key/value surface used for conversion records, job
// progress and cached enrichment hints. Implementations: single node,
// cluster, in-memory fallback and the auto-swapping wrapper.
type ValkeyCluster interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of 0 keeps the key until deleted and
	// a negative ttl applies the client's default TTL, if it has one.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Enrichment hint caching
	CacheHint(ctx context.Context, hash string, hint string, ttl time.Duration) error
	GetCachedHint(ctx context.Context, hash string) (string, error)

	// Set-backed indexes used for listing records
	AddToPatternIndex(ctx context.Context, patternKey string, cacheKey string) error
	RemoveFromPatternIndex(ctx context.Context, patternKey string, cacheKey string) error
	GetPatternIndexKeys(ctx context.Context, patternKey string) ([]string, error)
	DeletePatternIndex(ctx context.Context, patternKey string) error

	HealthCheck(ctx context.Context) error
}

type valkeyClusterImpl struct {
	client *redis.ClusterClient
	ops    redisOps
}

func NewValkeyCluster(nodes []string, password string, defaultTTL time.Duration) (ValkeyCluster, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyClusterImpl{
		client: client,
		ops:    redisOps{client: client, ttl: defaultTTL},
	}, nil
}

func (v *valkeyClusterImpl) Get(ctx context.Context, key string) ([]byte, error) {
	return v.ops.get(ctx, key)
}

func (v *valkeyClusterImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return v.ops.set(ctx, key, value, ttl)
}

func (v *valkeyClusterImpl) Delete(ctx context.Context, key string) error {
	return v.ops.del(ctx, key)
}

func (v *valkeyClusterImpl) CacheHint(ctx context.Context, hash string, hint string, ttl time.Duration) error {
	return v.ops.set(ctx, hintKey(hash), hint, ttl)
}

func (v *valkeyClusterImpl) GetCachedHint(ctx context.Context, hash string) (string, error) {
	b, err := v.ops.get(ctx, hintKey(hash))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (v *valkeyClusterImpl) AddToPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	return v.ops.sadd(ctx, patternKey, cacheKey)
}

func (v *valkeyClusterImpl) RemoveFromPatternIndex(ctx context.Context, patternKey string, cacheKey string) error {
	return v.ops.srem(ctx, patternKey, cacheKey)
}

func (v *valkeyClusterImpl) GetPatternIndexKeys(ctx context.Context, patternKey string) ([]string, error) {
	return v.ops.smembers(ctx, patternKey)
}

func (v *valkeyClusterImpl) DeletePatternIndex(ctx context.Context, patternKey string) error {
	return v.ops.del(ctx, indexKey(patternKey))
}

func (v *valkeyClusterImpl) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

// redisOps holds the command logic shared by the single-node and cluster
// clients.
type redisOps struct {
	client redis.Cmdable
	ttl    time.Duration
}

func (o redisOps) get(ctx context.Context, key string) ([]byte, error) {
	b, err := o.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func (o redisOps) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return fmt.Errorf("marshal value for key %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = o.ttl
	}
	if ttl < 0 {
		// go-redis reads a negative expiration as KEEPTTL.
		ttl = 0
	}
	if err := o.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (o redisOps) del(ctx context.Context, key string) error {
	if err := o.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

func (o redisOps) sadd(ctx context.Context, patternKey, member string) error {
	if err := o.client.SAdd(ctx, indexKey(patternKey), member).Err(); err != nil {
		monitoring.RecordCacheOperation("index_add", "error")
		return err
	}
	return nil
}

func (o redisOps) srem(ctx context.Context, patternKey, member string) error {
	if err := o.client.SRem(ctx, indexKey(patternKey), member).Err(); err != nil {
		monitoring.RecordCacheOperation("index_remove", "error")
		return err
	}
	return nil
}

func (o redisOps) smembers(ctx context.Context, patternKey string) ([]string, error) {
	members, err := o.client.SMembers(ctx, indexKey(patternKey)).Result()
	if err != nil {
		monitoring.RecordCacheOperation("index_get", "error")
		return nil, err
	}
	return members, nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return json.Marshal(x)
	}
}

func hintKey(hash string) string { return "hint_cache:" + hash }

func indexKey(patternKey string) string { return "set:" + patternKey }
