package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ibarwick/config-log/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// ChangeNotifier publishes change events to interested consumers.
type ChangeNotifier interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
}

// RedisChangeNotifier pushes events onto a capped Redis list, newest first.
type RedisChangeNotifier struct {
	rdb       *redis.Client
	key       string
	maxLength int64
}

func NewRedisChangeNotifier(rdb *redis.Client, key string, maxLength int) *RedisChangeNotifier {
	return &RedisChangeNotifier{rdb: rdb, key: key, maxLength: int64(maxLength)}
}

func (n *RedisChangeNotifier) Publish(ctx context.Context, event model.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	pipe := n.rdb.TxPipeline()
	pipe.LPush(ctx, n.key, payload)
	if n.maxLength > 0 {
		pipe.LTrim(ctx, n.key, 0, n.maxLength-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push change event to Redis list '%s': %w", n.key, err)
	}
	return nil
}

// Recent returns up to limit of the newest events.
func (n *RedisChangeNotifier) Recent(ctx context.Context, limit int64) ([]model.ChangeEvent, error) {
	raw, err := n.rdb.LRange(ctx, n.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read change events from '%s': %w", n.key, err)
	}
	events := make([]model.ChangeEvent, 0, len(raw))
	for _, r := range raw {
		var ev model.ChangeEvent
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("invalid change event in '%s': %w", n.key, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
