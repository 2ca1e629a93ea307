package notify

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// DefaultRedisChannel is the pub/sub channel events are published on.
const DefaultRedisChannel = "cascade:events"

var _ Transport = (*RedisTransport)(nil)

// RedisTransport publishes events on a Redis pub/sub channel so other
// service instances can relay them to their own subscribers.
type RedisTransport struct {
	client  goredis.UniversalClient
	channel string
}

// NewRedisTransport creates a transport publishing on channel.
func NewRedisTransport(client goredis.UniversalClient, channel string) *RedisTransport {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisTransport{client: client, channel: channel}
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Send(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, body).Err(); err != nil {
		return fmt.Errorf("redis: publish event: %w", err)
	}
	return nil
}
