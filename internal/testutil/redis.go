package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// RedisClient connects to the Redis named by CONFIG_LOG_TEST_REDIS_ADDR and
// flushes its database, or skips the test when the variable is unset.
func RedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CONFIG_LOG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CONFIG_LOG_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush test redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}
