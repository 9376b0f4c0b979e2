// Package memory implements ports.MessageBus entirely in-process, for
// single-node deployments and tests that don't want a live Redis.
package memory

import (
	"context"
	"sync"

	"github.com/Akitash/opentogethertube/internal/core/ports"
)

type Bus struct {
	mu          sync.RWMutex
	values      map[string][]byte
	subscribers map[string][]ports.BusHandler
	closed      bool
}

func NewBus() *Bus {
	return &Bus{
		values:      make(map[string][]byte),
		subscribers: make(map[string][]ports.BusHandler),
	}
}

// Publish delivers payload to every handler subscribed to channel,
// synchronously, in registration order. There is no cross-process
// delivery — this bus only coordinates goroutines within one process.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	handlers := append([]ports.BusHandler{}, b.subscribers[channel]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(channel, payload)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, channel string, handler ports.BusHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], handler)
	return nil
}

func (b *Bus) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	val, ok := b.values[key]
	return val, ok, nil
}

func (b *Bus) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = make(map[string][]ports.BusHandler)
	return nil
}
