package worker

import (
	"context"
	"log"

	"github.com/ibarwick/config-log/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// ReloadRequester is satisfied by bgworker.Runtime.
type ReloadRequester interface {
	RequestReload()
}

// SubscribeReloads turns every message on channel into a reload request
// until ctx is done. It lets an external scheduler trigger the logger
// without sending signals.
func SubscribeReloads(ctx context.Context, rdb *redis.Client, channel string, rt ReloadRequester, logger *log.Logger) error {
	pubsub := rdb.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}
	logger.Printf("INFO: %s: listening for reload requests on %s", model.TaskName, channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				logger.Printf("INFO: %s: reload requested via %s (%q)", model.TaskName, msg.Channel, msg.Payload)
				rt.RequestReload()
			}
		}
	}()
	return nil
}
