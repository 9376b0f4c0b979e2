package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscribersInOrder(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var order []string
	require.NoError(t, bus.Subscribe(ctx, "room:a", func(channel string, payload []byte) {
		order = append(order, "first:"+string(payload))
	}))
	require.NoError(t, bus.Subscribe(ctx, "room:a", func(channel string, payload []byte) {
		order = append(order, "second:"+string(payload))
	}))

	require.NoError(t, bus.Publish(ctx, "room:a", []byte("hello")))
	assert.Equal(t, []string{"first:hello", "second:hello"}, order)
}

func TestBus_PublishOnlyReachesMatchingChannel(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var got []byte
	require.NoError(t, bus.Subscribe(ctx, "room:a", func(channel string, payload []byte) {
		got = payload
	}))

	require.NoError(t, bus.Publish(ctx, "room:b", []byte("ignored")))
	assert.Nil(t, got)

	require.NoError(t, bus.Publish(ctx, "room:a", []byte("seen")))
	assert.Equal(t, []byte("seen"), got)
}

func TestBus_PublishWithNoSubscribersIsANoop(t *testing.T) {
	bus := NewBus()
	err := bus.Publish(context.Background(), "room:empty", []byte("x"))
	assert.NoError(t, err)
}

func TestBus_GetSet(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	_, ok, err := bus.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, bus.Set(ctx, "room-sync:a", []byte(`{"foo":"bar"}`)))
	val, ok, err := bus.Get(ctx, "room-sync:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"foo":"bar"}`), val)

	require.NoError(t, bus.Set(ctx, "room-sync:a", []byte(`{"foo":"baz"}`)))
	val, _, _ = bus.Get(ctx, "room-sync:a")
	assert.Equal(t, []byte(`{"foo":"baz"}`), val)
}

func TestBus_CloseClearsSubscribers(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	called := false
	require.NoError(t, bus.Subscribe(ctx, "room:a", func(channel string, payload []byte) {
		called = true
	}))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(ctx, "room:a", []byte("x")))
	assert.False(t, called)
}
