package alerthub

import (
	"context"
	"encoding/json"
	"flagwatch/backend/internal/notify"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// StartRedisListener subscribes to every alert topic under prefix (as written by
// notify.RedisPublisher) and relays the alerts into the hub until ctx is cancelled.
// It returns once the subscription is confirmed, so alerts published afterwards are not missed.
func (h *Hub) StartRedisListener(ctx context.Context, rdb *redis.Client, prefix string) error {
	pubsub := rdb.PSubscribe(ctx, prefix+":*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return errors.Wrapf(err, "subscribe %s:*", prefix)
	}

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
				var alert notify.Alert
				if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
					h.logger.WithError(err).WithField("topic", msg.Channel).Warn("Skipping undecodable alert")
					continue
				}
				select {
				case h.BroadcastCh <- alert:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	h.logger.WithField("pattern", prefix+":*").Info("Alert hub listening on Redis")
	return nil
}
