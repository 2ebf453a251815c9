package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/studyroom/internal/logger"
)

// RedisBus relays envelopes through a Redis pub/sub channel so every
// server instance sees every room event. An instance delivers its own
// envelopes locally at publish time and drops their echo by origin.
type RedisBus struct {
	handlers
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	origin  string
	done    chan struct{}
}

// NewRedisBus subscribes to channel and starts relaying. It fails when
// Redis cannot be reached.
func NewRedisBus(ctx context.Context, client *redis.Client, channel, origin string) (*RedisBus, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription so nothing published after return is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	b := &RedisBus{
		client:  client,
		pubsub:  pubsub,
		channel: channel,
		origin:  origin,
		done:    make(chan struct{}),
	}
	go b.relay()
	return b, nil
}

// ParseRedisURL builds a client from a redis:// URL.
func ParseRedisURL(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *RedisBus) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		b.receive(msg.Channel, msg.Payload)
	}
}

func (b *RedisBus) receive(channel, payload string) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		logger.Warn("Dropping malformed event", "channel", channel, "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.dispatch(env)
}

// Publish delivers env to local subscribers, then to the other instances.
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	env.Origin = b.origin
	b.dispatch(env)

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.Event, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(h Handler) func() {
	return b.add(h)
}

// Close stops relaying and closes the client.
func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	<-b.done
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func decodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("event name missing")
	}
	return env, nil
}
