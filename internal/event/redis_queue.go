package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueuePublisher appends events to a Redis list. The relay worker drains
// the list into the broker, so request paths never wait on AMQP.
type RedisQueuePublisher struct {
	rdb   *redis.Client
	queue string
}

func NewRedisQueuePublisher(rdb *redis.Client, queue string) *RedisQueuePublisher {
	return &RedisQueuePublisher{rdb: rdb, queue: queue}
}

func (p *RedisQueuePublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Type, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisQueuePublisher) Close() error { return nil }
