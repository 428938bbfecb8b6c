package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRelay publishes events on a Redis pub/sub channel and on the
// per-ticket and per-user sub-channels live clients subscribe to.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

// NewRedisRelay returns nil when the client is missing so callers can skip it.
func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if client == nil || channel == "" {
		return nil
	}
	return &RedisRelay{client: client, channel: channel}
}

// Channels lists every channel an event is published on.
func (r *RedisRelay) Channels(event Event) []string {
	channels := []string{r.channel}
	if event.TicketID != "" {
		channels = append(channels, TicketChannel(r.channel, event.TicketID))
	}
	if event.UserID != "" {
		channels = append(channels, UserChannel(r.channel, event.UserID))
	}
	return channels
}

// Handle publishes the event in a single pipeline round-trip.
func (r *RedisRelay) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis relay: marshal: %w", err)
	}
	pipe := r.client.Pipeline()
	for _, channel := range r.Channels(event) {
		pipe.Publish(ctx, channel, body)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis relay: publish: %w", err)
	}
	return nil
}

// TicketChannel names the sub-channel for one ticket.
func TicketChannel(base, ticketID string) string {
	return base + ":ticket:" + ticketID
}

// UserChannel names the sub-channel for one recipient.
func UserChannel(base, userID string) string {
	return base + ":user:" + userID
}
