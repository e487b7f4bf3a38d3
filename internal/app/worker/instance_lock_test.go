package worker

import (
	"bytes"
	"context"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/domain/model"
	"github.com/ibarwick/config-log/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "config_log:lock:postgres-public", LockKey(model.TaskConfig{Database: "postgres", Schema: "public"}))
	assert.Equal(t, "config_log:lock:my-db-audit", LockKey(model.TaskConfig{Database: "My DB", Schema: "Audit"}))
}

func TestRedisInstanceLock_ExcludesSecondWorker(t *testing.T) {
	rdb := testutil.RedisClient(t)
	ctx := context.Background()
	task := model.TaskConfig{Database: "postgres", Schema: "public"}
	var logs bytes.Buffer

	first := NewRedisInstanceLock(rdb, task, time.Minute, log.New(&logs, "", 0))
	second := NewRedisInstanceLock(rdb, task, time.Minute, log.New(&logs, "", 0))

	require.NoError(t, first.Acquire(ctx))
	assert.ErrorIs(t, second.Acquire(ctx), common.ErrLockHeld)

	require.NoError(t, first.Refresh(ctx))
	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.Acquire(ctx))
	require.NoError(t, second.Release(ctx))

	assert.Contains(t, logs.String(), "acquired instance lock config_log:lock:postgres-public")
}

func TestRedisInstanceLock_RefreshDetectsTakeover(t *testing.T) {
	rdb := testutil.RedisClient(t)
	ctx := context.Background()
	lock := NewRedisInstanceLock(rdb, model.TaskConfig{Database: "postgres", Schema: "public"}, time.Minute, log.New(&bytes.Buffer{}, "", 0))

	require.NoError(t, lock.Acquire(ctx))
	require.NoError(t, rdb.Set(ctx, lock.Key(), "someone-else", time.Minute).Err())

	assert.ErrorIs(t, lock.Refresh(ctx), common.ErrLockHeld)
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", rdb.Get(ctx, lock.Key()).Val(), "release must not delete a lock we do not hold")
}

type countingRequester struct{ n atomic.Int32 }

func (c *countingRequester) RequestReload() { c.n.Add(1) }

func TestSubscribeReloads(t *testing.T) {
	rdb := testutil.RedisClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := &countingRequester{}

	require.NoError(t, SubscribeReloads(ctx, rdb, "config_log:reload", req, log.New(&bytes.Buffer{}, "", 0)))
	require.NoError(t, rdb.Publish(ctx, "config_log:reload", "cron").Err())

	require.Eventually(t, func() bool { return req.n.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
