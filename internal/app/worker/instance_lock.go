package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/domain/model"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
)

// Delete the key only if we still hold it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Extend the key's TTL only if we still hold it.
var refreshScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisInstanceLock is a TTL lease in Redis that stops two workers from
// auditing the same database and schema at once.
type RedisInstanceLock struct {
	rdb    *redis.Client
	key    string
	value  string
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisInstanceLock(rdb *redis.Client, task model.TaskConfig, ttl time.Duration, logger *log.Logger) *RedisInstanceLock {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisInstanceLock{rdb: rdb, key: LockKey(task), ttl: ttl, logger: logger}
}

// LockKey derives the lock key for a database and schema.
func LockKey(task model.TaskConfig) string {
	return "config_log:lock:" + slug.Make(task.Database+" "+task.Schema)
}

func (l *RedisInstanceLock) Key() string { return l.key }

// Acquire takes the lease with a fresh value; SET key value NX PX ttl.
func (l *RedisInstanceLock) Acquire(ctx context.Context) error {
	value := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to attempt lock acquisition for key %s: %w", l.key, err)
	}
	if !ok {
		return fmt.Errorf("key %s: %w", l.key, common.ErrLockHeld)
	}
	l.value = value
	l.logger.Printf("INFO: %s: acquired instance lock %s", model.TaskName, l.key)
	return nil
}

func (l *RedisInstanceLock) Refresh(ctx context.Context) error {
	if l.value == "" {
		return fmt.Errorf("key %s: lock not held: %w", l.key, common.ErrLockHeld)
	}
	res, err := refreshScript.Run(ctx, l.rdb, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", l.key, err)
	}
	if res != 1 {
		l.value = ""
		return fmt.Errorf("key %s expired or was taken over: %w", l.key, common.ErrLockHeld)
	}
	return nil
}

func (l *RedisInstanceLock) Release(ctx context.Context) error {
	if l.value == "" {
		return nil
	}
	deleted, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if deleted == 1 {
		l.logger.Printf("INFO: %s: released instance lock %s", model.TaskName, l.key)
	} else {
		l.logger.Printf("WARN: %s: did not release lock %s; it might have expired or been taken by another worker", model.TaskName, l.key)
	}
	l.value = ""
	return nil
}
