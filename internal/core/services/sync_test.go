package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

func TestSeedFromSnapshotJSON_PopulatesContentFieldsOnly(t *testing.T) {
	raw := []byte(`{
		"name": "alpha",
		"title": "Movie Night",
		"description": "weekly watch",
		"visibility": "unlisted",
		"queueMode": "vote",
		"currentSource": {"service": "s", "id": "1"},
		"queue": [{"service": "s", "id": "2"}],
		"isPlaying": true,
		"playbackPosition": 42.5,
		"users": [{"id": "c1", "username": "bob"}],
		"voteCounts": {"s1": 3},
		"grants": 7
	}`)

	seed, err := SeedFromSnapshotJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, "Movie Night", seed.Title)
	assert.Equal(t, "weekly watch", seed.Description)
	require.NotNil(t, seed.CurrentSource)
	assert.Equal(t, "1", seed.CurrentSource.ID)
	require.Len(t, seed.Queue, 1)
	assert.Equal(t, float64(42.5), seed.PlaybackPosition)
}

func TestSeedFromSnapshotJSON_MalformedJSONErrors(t *testing.T) {
	_, err := SeedFromSnapshotJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestRoom_SyncWritesSnapshotAndPublishesDelta(t *testing.T) {
	deps := testDeps()
	room := newTestRoom(t, deps)
	ctx := context.Background()

	bus := deps.Bus
	var mu sync.Mutex
	var deltas []map[string]any
	require.NoError(t, bus.Subscribe(ctx, channelForRoom(room.state.Name), func(channel string, payload []byte) {
		var envelope map[string]any
		if json.Unmarshal(payload, &envelope) != nil || envelope["action"] != "sync" {
			return
		}
		mu.Lock()
		deltas = append(deltas, envelope)
		mu.Unlock()
	}))

	require.NoError(t, room.Submit(ctx, domain.JoinRequest{Client: "c1", Info: domain.UserInfo{}}))

	var snapshot roomSnapshot
	require.Eventually(t, func() bool {
		val, found, err := bus.Get(ctx, snapshotKeyForRoom(room.state.Name))
		if err != nil || !found {
			return false
		}
		return json.Unmarshal(val, &snapshot) == nil
	}, time.Second, time.Millisecond)
	assert.Len(t, snapshot.Users, 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deltas) > 0
	}, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, deltas[0], "users")
}

func TestRoom_PublishEventEmitsLiteralActionWithRequestAndUser(t *testing.T) {
	deps := testDeps()
	room := newTestRoom(t, deps)
	ctx := context.Background()

	var mu sync.Mutex
	var events []map[string]any
	require.NoError(t, deps.Bus.Subscribe(ctx, channelForRoom(room.state.Name), func(channel string, payload []byte) {
		var envelope map[string]any
		if json.Unmarshal(payload, &envelope) != nil || envelope["action"] != "event" {
			return
		}
		mu.Lock()
		events = append(events, envelope)
		mu.Unlock()
	}))

	require.NoError(t, room.Submit(ctx, domain.JoinRequest{Client: "c1", Info: domain.UserInfo{}}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	event := events[0]
	assert.Equal(t, "event", event["action"])
	request, ok := event["request"].(map[string]any)
	require.True(t, ok, "expected request field to be an object")
	assert.Equal(t, "join", request["kind"])
	assert.Equal(t, "c1", request["clientId"])
	user, ok := event["user"].(map[string]any)
	require.True(t, ok, "expected user field to be an object")
	assert.Equal(t, "c1", user["id"])
}

func TestRoom_PublishEventOmitsUserAfterClientHasLeft(t *testing.T) {
	deps := testDeps()
	room := newTestRoom(t, deps)
	ctx := context.Background()

	var mu sync.Mutex
	var events []map[string]any
	require.NoError(t, deps.Bus.Subscribe(ctx, channelForRoom(room.state.Name), func(channel string, payload []byte) {
		var envelope map[string]any
		if json.Unmarshal(payload, &envelope) != nil || envelope["action"] != "event" {
			return
		}
		mu.Lock()
		events = append(events, envelope)
		mu.Unlock()
	}))

	require.NoError(t, room.Submit(ctx, domain.JoinRequest{Client: "c1", Info: domain.UserInfo{}}))
	require.NoError(t, room.Submit(ctx, domain.LeaveRequest{Client: "c1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	leaveEvent := events[1]
	request := leaveEvent["request"].(map[string]any)
	assert.Equal(t, "leave", request["kind"])
	assert.Nil(t, leaveEvent["user"])
}

func TestRoom_BuildDeltaOnlyCarriesDirtyFields(t *testing.T) {
	deps := testDeps()
	room := newTestRoom(t, deps)
	room.state.Title = "Renamed"
	room.state.MarkDirty("title")

	snapshot := room.buildSnapshot()
	delta := room.buildDelta(snapshot)

	assert.Equal(t, "sync", delta["action"])
	assert.Equal(t, "Renamed", delta["title"])
	_, hasQueue := delta["queue"]
	assert.False(t, hasQueue)
}
