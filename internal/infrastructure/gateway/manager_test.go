package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/internal/core/ports"
	"github.com/Akitash/opentogethertube/internal/core/services"
	memorybus "github.com/Akitash/opentogethertube/internal/infrastructure/bus/memory"
	roommemory "github.com/Akitash/opentogethertube/internal/infrastructure/roomstore/memory"
)

// fakeExtractor/fakeUserStore mirror the services package's own test
// fakes; the gateway only needs a room engine that runs, not one that
// resolves real videos.
type fakeExtractor struct{}

func (fakeExtractor) ResolveURL(ctx context.Context, rawURL string) (string, string, error) {
	return "", "", errors.New("not used")
}

func (fakeExtractor) FetchMetadata(ctx context.Context, service, id string) (domain.Video, error) {
	return domain.Video{Service: service, ID: id}, nil
}

type fakeUserStore struct{}

func (fakeUserStore) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	return domain.User{}, errors.New("not found")
}

func newTestManager(t *testing.T) (*ClientManager, ports.MessageBus) {
	t.Helper()
	bus := memorybus.NewBus()
	newDeps := func(name domain.RoomName) services.Deps {
		return services.Deps{
			Bus:                bus,
			Extractor:          fakeExtractor{},
			Users:              fakeUserStore{},
			TickInterval:       time.Hour,
			SyncCoalesceWindow: time.Millisecond,
			StaleTimeout:       time.Hour,
		}
	}
	rooms := roommemory.NewRoomManager(newDeps, zap.NewNop().Sugar())
	mgr := NewClientManager(rooms, bus, zap.NewNop().Sugar())
	t.Cleanup(func() {
		mgr.Close()
		rooms.Close(context.Background())
	})
	return mgr, bus
}

func dialRoom(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[4:] + "/api/room/" + room
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil drains messages off conn until one satisfies want, or the
// overall deadline passes. A room broadcasts its own immediate per-request
// event (e.g. "join") before the debounced "sync" catches up, so tests
// can't assume a fixed message order.
func readUntil(t *testing.T, conn *websocket.Conn, want func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading message: %v", err)
		}
		if want(msg) {
			return msg
		}
	}
	t.Fatal("deadline exceeded waiting for matching message")
	return nil
}

func TestClientManager_JoinReceivesSyncBroadcast(t *testing.T) {
	mgr, _ := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mgr.HandleUpgrade(w, r, domain.Session{Username: "bob"})
	}))
	defer srv.Close()

	conn := dialRoom(t, srv, "alpha")

	msg := readUntil(t, conn, func(m map[string]any) bool { return m["action"] == "sync" })
	assert.Equal(t, "sync", msg["action"])
}

func TestClientManager_RejectsURLWithoutRoomPrefix(t *testing.T) {
	mgr, _ := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mgr.HandleUpgrade(w, r, domain.Session{Username: "bob"})
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/not-a-room-path")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientManager_BroadcastsChatToAllJoinedClients(t *testing.T) {
	mgr, _ := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mgr.HandleUpgrade(w, r, domain.Session{Username: "someone"})
	}))
	defer srv.Close()

	a := dialRoom(t, srv, "beta")
	b := dialRoom(t, srv, "beta")

	// wait for both joins to settle (each produces its own "sync" broadcast)
	// before sending chat, so the chat message isn't lost among them.
	readUntil(t, a, func(m map[string]any) bool { return m["action"] == "sync" })
	readUntil(t, b, func(m map[string]any) bool { return m["action"] == "sync" })

	require.NoError(t, a.WriteJSON(map[string]any{"action": "chat", "text": "hi"}))

	relayed := readUntil(t, b, func(m map[string]any) bool { return m["action"] == "chat" })
	assert.Equal(t, "hi", relayed["text"])
}

func TestClientManager_RelaysEventMessageWithRequestAndUser(t *testing.T) {
	mgr, _ := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mgr.HandleUpgrade(w, r, domain.Session{Username: "someone"})
	}))
	defer srv.Close()

	a := dialRoom(t, srv, "gamma")
	readUntil(t, a, func(m map[string]any) bool { return m["action"] == "sync" })

	b := dialRoom(t, srv, "gamma")
	readUntil(t, b, func(m map[string]any) bool { return m["action"] == "sync" })

	event := readUntil(t, a, func(m map[string]any) bool { return m["action"] == "event" })
	request, ok := event["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "join", request["kind"])
	user, ok := event["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "someone", user["username"])
}

func TestRoomNameFromChannel(t *testing.T) {
	assert.Equal(t, domain.RoomName("alpha"), roomNameFromChannel("room:alpha"))
	assert.Equal(t, domain.RoomName(""), roomNameFromChannel("other:alpha"))
}

func TestSnapshotAsSyncMessage_StampsAction(t *testing.T) {
	msg := snapshotAsSyncMessage(map[string]any{"title": "hi"})
	assert.Equal(t, "sync", msg["action"])
	assert.Equal(t, "hi", msg["title"])
}
