package notify

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes every alert as JSON on <prefix>:<channel>.
type RedisPublisher struct {
	Redis  *redis.Client
	Prefix string
}

// NewRedisPublisher Constructor
func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{Redis: rdb, Prefix: prefix}
}

// Topic is the pub/sub channel an alert is published on.
func (p *RedisPublisher) Topic(ch Channel) string {
	return p.Prefix + ":" + string(ch)
}

// Name implements Sink.
func (p *RedisPublisher) Name() string { return "redis" }

// Send implements Sink.
func (p *RedisPublisher) Send(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, "encode alert")
	}
	return errors.Wrap(p.Redis.Publish(ctx, p.Topic(alert.Channel), data).Err(), "publish alert")
}
