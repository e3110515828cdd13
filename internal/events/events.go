// Package events publishes lifecycle notifications for other components.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/authgraph/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Publisher delivers an event to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e models.Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, models.Event) error { return nil }

// RedisPublisher sends events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e models.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}
