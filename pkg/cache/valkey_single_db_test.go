//go:build db

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Runs against a live Valkey/Redis node when VALKEY_ADDR is set.
func TestValkeySingle_RecordIndex_DB(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set; skipping DB test")
	}
	ttl := 5 * time.Second
	c, err := NewValkeySingle(addr, 0, os.Getenv("VALKEY_PASSWORD"), ttl)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.Background()
	key := "conversion:db-test"
	record := `{"id":"db-test","status":"completed"}`
	if err := c.Set(ctx, key, record, ttl); err != nil {
		t.Fatalf("set record: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Delete(ctx, key)
		_ = c.DeletePatternIndex(ctx, "conversions:db-test")
	})

	b, err := c.Get(ctx, key)
	if err != nil || string(b) != record {
		t.Fatalf("get record: %v %q", err, string(b))
	}
	if err := c.AddToPatternIndex(ctx, "conversions:db-test", key); err != nil {
		t.Fatalf("index record: %v", err)
	}
	keys, err := c.GetPatternIndexKeys(ctx, "conversions:db-test")
	if err != nil || len(keys) != 1 || keys[0] != key {
		t.Fatalf("index keys: %v %v", err, keys)
	}
	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
}
