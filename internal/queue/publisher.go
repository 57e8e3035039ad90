package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher returns nil when client is nil so callers can fall back to
// doing the work inline.
func NewPublisher(client *redis.Client, stream string) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, values map[string]any) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
