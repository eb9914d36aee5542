package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher forwards every dispatched event to a Redis pub/sub channel
// so dashboards in other processes can refresh. Delivery is best effort.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisPublisher builds a publisher for channel.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger.With(zap.String("component", "redis_publisher")),
	}
}

// Attach subscribes the publisher to all event types.
func (p *RedisPublisher) Attach(dispatcher Dispatcher) {
	if p == nil || p.client == nil || dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(p.Handle)
}

// Handle publishes one event as JSON.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		p.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
