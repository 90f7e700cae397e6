package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisPublisher pushes events onto a Redis pub/sub channel so every
// service instance can feed its own viewers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

// Relay subscribes to the Redis channel and republishes each event locally.
type Relay struct {
	client  *redis.Client
	channel string
	sink    Publisher
}

// NewRelay creates a Relay that feeds sink.
func NewRelay(client *redis.Client, channel string, sink Publisher) *Relay {
	return &Relay{client: client, channel: channel, sink: sink}
}

// Run forwards events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	log.Info().Str("channel", r.channel).Msg("Event relay subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed relay message")
		return
	}
	if err := r.sink.Publish(ctx, ev); err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("Failed to relay event")
	}
}
