package ports

import "context"

// BusHandler is called for every message received on a subscribed
// channel, in the order the bus delivers them per channel.
type BusHandler func(channel string, payload []byte)

// MessageBus is the pub/sub + shared key/value collaborator every node
// uses to coordinate: room deltas flow over channels, full snapshots live
// in keys. Exactly the contract named in spec §4.D/§6 ("Bus protocol").
type MessageBus interface {
	// Publish sends payload to every subscriber of channel on every node.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers handler for channel; it is safe to call this
	// more than once for the same channel. The in-memory bus keeps every
	// handler registered; the Redis bus keeps only the first per channel.
	Subscribe(ctx context.Context, channel string, handler BusHandler) error

	// Get returns the last value written to key, or (nil, false) if unset.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases any subscriptions and connections held by the bus.
	Close() error
}
