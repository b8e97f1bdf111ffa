package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
)

// RetryPolicy bounds how hard Publish fights transient Redis failures.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// RedisBroker implements MessageBroker over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	retry  RetryPolicy
}

// NewRedisBroker connects to Redis and verifies the connection. A zero
// retry policy falls back to DefaultRetryPolicy.
func NewRedisBroker(addr string, retry RetryPolicy) (*RedisBroker, error) {
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisBroker{client: client, retry: retry}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler so go-redis can
// encode Events directly.
func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *Event) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// Publish sends an event to the specified channel, retrying transient
// failures per the broker's retry policy.
func (b *RedisBroker) Publish(ctx context.Context, channel string, event Event) error {
	operation := func() error {
		return b.client.Publish(ctx, channel, event).Err()
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(b.retry.InitialInterval),
				backoff.WithMaxInterval(b.retry.MaxInterval),
			),
			b.retry.MaxRetries,
		),
		ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Printf("Retrying publish of %s event to %s: %v (next attempt in %s)", event.Type, channel, err, d)
	})
}

// Subscribe starts listening for events on the specified channel. The
// returned channel closes when ctx is cancelled.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Test subscription
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	events := make(chan Event)

	go func() {
		defer pubsub.Close()
		defer close(events)
		forward(ctx, channel, pubsub.Channel(), events)
	}()

	return events, nil
}

// forward decodes raw pub/sub payloads onto events until ctx is
// cancelled or raw closes. Malformed payloads are logged and skipped;
// the subscription survives them.
func forward(ctx context.Context, channel string, raw <-chan *redis.Message, events chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Event decode error on %s: %v", channel, err)
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close cleans up the underlying Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
