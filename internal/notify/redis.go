package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDispatcher publishes notifications onto a Redis Stream that the
// platform's delivery workers consume. The stream is capped so a stalled
// consumer cannot grow Redis without bound.
type RedisDispatcher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisDispatcher(client *redis.Client, stream string) *RedisDispatcher {
	return &RedisDispatcher{
		client: client,
		stream: stream,
		maxLen: 100_000,
	}
}

func (d *RedisDispatcher) Send(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: d.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":      string(event.Kind),
			"recipient": event.Recipient,
			"payload":   payload,
			"at":        event.At.UnixMilli(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd notification: %w", err)
	}
	return nil
}
