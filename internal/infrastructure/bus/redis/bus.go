// Package redis implements ports.MessageBus over go-redis pub/sub and
// plain key/value Get/Set, grounded on the teacher's distributed.EventBus.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/ports"
)

// Bus is the cross-node ports.MessageBus used in multi-instance
// deployments: room deltas travel over Redis pub/sub channels, full
// snapshots live under plain Redis keys so a newly-owning node can read
// the last-known state back on room load.
type Bus struct {
	client *redis.Client
	logger *zap.SugaredLogger

	mu          sync.Mutex
	subscribers map[string]*redis.PubSub
}

func NewBus(client *redis.Client, logger *zap.SugaredLogger) *Bus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bus{
		client:      client,
		logger:      logger,
		subscribers: make(map[string]*redis.PubSub),
	}
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("bus publish: %w", err)
	}
	return nil
}

// Subscribe registers handler for channel. Calling it twice for the same
// channel on the same Bus instance is a no-op after the first call, since
// every node only ever needs one delivery path per channel.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler ports.BusHandler) error {
	b.mu.Lock()
	if _, exists := b.subscribers[channel]; exists {
		b.mu.Unlock()
		return nil
	}
	pubsub := b.client.Subscribe(ctx, channel)
	b.subscribers[channel] = pubsub
	b.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			handler(msg.Channel, []byte(msg.Payload))
		}
	}()
	return nil
}

func (b *Bus) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bus get: %w", err)
	}
	return val, true, nil
}

func (b *Bus) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("bus set: %w", err)
	}
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for channel, pubsub := range b.subscribers {
		if err := pubsub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.subscribers, channel)
	}
	return firstErr
}
