package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/internal/core/ports"
)

const (
	readTimeout     = 60 * time.Second
	writeTimeout    = 10 * time.Second
	pingInterval    = 10 * time.Second
	readBufferSize  = 1024
	writeBufferSize = 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the Origin header is not checked; every origin is accepted
	},
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: writeBufferSize,
}

// ClientManager is the process-wide Client gateway: it owns every open
// socket on this process, tracks per-room local membership, and relays
// bus deltas to the sockets that care about them. Grounded on the
// teacher's WebSocketServer connection table.
type ClientManager struct {
	rooms ports.RoomDirectory
	bus   ports.MessageBus

	logger  *zap.SugaredLogger
	metrics *ClientMetrics

	mu          sync.RWMutex
	connections map[domain.ClientID]*Client
	roomJoins   map[domain.RoomName]map[domain.ClientID]*Client
	roomStates  map[domain.RoomName]map[string]any
	subscribed  map[domain.RoomName]struct{}

	stopCh chan struct{}
}

func NewClientManager(rooms ports.RoomDirectory, bus ports.MessageBus, logger *zap.SugaredLogger) *ClientManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m := &ClientManager{
		rooms:       rooms,
		bus:         bus,
		logger:      logger,
		metrics:     NewNoopClientMetrics(),
		connections: make(map[domain.ClientID]*Client),
		roomJoins:   make(map[domain.RoomName]map[domain.ClientID]*Client),
		roomStates:  make(map[domain.RoomName]map[string]any),
		subscribed:  make(map[domain.RoomName]struct{}),
		stopCh:      make(chan struct{}),
	}
	go m.keepaliveLoop()
	return m
}

// WithMetrics drives otto_clients_connected from this manager's join/leave
// lifecycle. Returns m for chaining at construction.
func (m *ClientManager) WithMetrics(metrics *ClientMetrics) *ClientManager {
	m.metrics = metrics
	return m
}

// HandleUpgrade accepts a socket-upgrade request, extracts the room name
// from the URL path (spec §4.F: must begin with /api/room/), and wires up
// a Client for the new connection.
func (m *ClientManager) HandleUpgrade(w http.ResponseWriter, r *http.Request, session domain.Session) {
	const prefix = "/api/room/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "invalid connection url", http.StatusBadRequest)
		return
	}
	roomName := domain.RoomName(strings.TrimPrefix(r.URL.Path, prefix))
	if roomName == "" {
		http.Error(w, "invalid connection url", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, session, m, m.logger)

	m.mu.Lock()
	m.connections[client.ID] = client
	m.mu.Unlock()

	ctx := context.Background()
	if err := client.joinRoom(ctx, roomName); err != nil {
		m.logger.Infow("join room failed", "client", client.ID, "room", roomName, "error", err)
		code := CloseCodeRoomNotFound
		client.closeWithCode(code, err.Error())
		m.deregister(client)
		return
	}

	go m.serve(client)
}

// serve runs the read loop for one client's socket, grounded on the
// teacher's reader-goroutine + select-loop idiom.
func (m *ClientManager) serve(c *Client) {
	defer c.conn.Close()
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	ctx := context.Background()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.onMessage(ctx, payload)
	}

	c.onClose(ctx)
}

func (m *ClientManager) registerJoin(name domain.RoomName, c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roomJoins[name] == nil {
		m.roomJoins[name] = make(map[domain.ClientID]*Client)
	}
	m.roomJoins[name][c.ID] = c
	m.metrics.ClientJoined()
}

func (m *ClientManager) deregister(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, c.ID)
	if c.joined {
		if joined, ok := m.roomJoins[c.room]; ok {
			delete(joined, c.ID)
		}
		m.metrics.ClientLeft()
	}
}

func (m *ClientManager) ensureSubscribed(ctx context.Context, name domain.RoomName) error {
	m.mu.Lock()
	if _, ok := m.subscribed[name]; ok {
		m.mu.Unlock()
		return nil
	}
	m.subscribed[name] = struct{}{}
	m.mu.Unlock()

	return m.bus.Subscribe(ctx, channelForRoom(name), func(channel string, payload []byte) {
		m.onBusMessage(ctx, channel, payload)
	})
}

func (m *ClientManager) loadSnapshot(ctx context.Context, name domain.RoomName) (map[string]any, error) {
	m.mu.RLock()
	cached, ok := m.roomStates[name]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	raw, found, err := m.bus.Get(ctx, snapshotKeyForRoom(name))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal room snapshot: %w", err)
	}

	m.mu.Lock()
	m.roomStates[name] = snapshot
	m.mu.Unlock()
	return snapshot, nil
}

// onBusMessage implements spec §4.F's bus handler: merge sync deltas into
// the cached snapshot and relay raw bytes to every locally-joined client.
func (m *ClientManager) onBusMessage(ctx context.Context, channel string, payload []byte) {
	name := roomNameFromChannel(channel)
	if name == "" {
		return
	}

	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		m.logger.Infow("failed to parse bus message", "channel", channel, "error", err)
		return
	}

	action, _ := envelope["action"].(string)
	switch action {
	case "sync":
		m.mu.Lock()
		if m.roomStates[name] == nil {
			m.roomStates[name] = map[string]any{}
		}
		for k, v := range envelope {
			m.roomStates[name][k] = v
		}
		m.mu.Unlock()
		m.broadcastRaw(name, payload)

	case "unload":
		m.closeRoom(name)

	case "chat", "event":
		m.broadcastRaw(name, payload)

	case "user":
		m.sendToUser(name, envelope, payload)

	default:
		m.broadcastRaw(name, payload)
	}
}

func (m *ClientManager) broadcastRaw(name domain.RoomName, payload []byte) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.roomJoins[name]))
	for _, c := range m.roomJoins[name] {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	for _, c := range clients {
		c.sendRaw(payload)
	}
}

// sendToUser implements the targeted {action: user} delivery: only the
// client whose id matches msg.user.id receives it, with isYou stamped in.
func (m *ClientManager) sendToUser(name domain.RoomName, envelope map[string]any, payload []byte) {
	user, ok := envelope["user"].(map[string]any)
	if !ok {
		return
	}
	targetID, _ := user["id"].(string)
	if targetID == "" {
		return
	}

	m.mu.RLock()
	target, found := m.roomJoins[name][domain.ClientID(targetID)]
	m.mu.RUnlock()
	if !found {
		return
	}

	user["isYou"] = true
	target.send(envelope)
	_ = payload
}

func (m *ClientManager) closeRoom(name domain.RoomName) {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.roomJoins[name]))
	for _, c := range m.roomJoins[name] {
		clients = append(clients, c)
	}
	delete(m.roomJoins, name)
	m.mu.Unlock()

	for _, c := range clients {
		c.closeWithCode(CloseCodeRoomUnloaded, "room unloaded")
	}
}

// OnUserModified implements spec §4.F onUserModified: refresh every local
// connection tied to session.ID with the new session and re-submit its
// clientInfo as an UpdateUser request.
func (m *ClientManager) OnUserModified(ctx context.Context, session domain.Session) {
	m.mu.RLock()
	var affected []*Client
	for _, c := range m.connections {
		if c.Session.ID == session.ID {
			affected = append(affected, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range affected {
		c.Session = session
		if !c.joined {
			continue
		}
		handle, err := m.rooms.GetRoom(ctx, c.room)
		if err != nil {
			continue
		}
		_ = handle.Submit(ctx, domain.UpdateUserRequest{Client: c.ID, Info: c.clientInfo()})
	}
}

func (m *ClientManager) keepaliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.pingAll()
		case <-m.stopCh:
			return
		}
	}
}

func (m *ClientManager) pingAll() {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.connections))
	for _, c := range m.connections {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	for _, c := range clients {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			m.logger.Infow("ping failed", "client", c.ID, "error", err)
		}
		c.writeMu.Unlock()
	}
}

func (m *ClientManager) Close() {
	close(m.stopCh)
}

func channelForRoom(name domain.RoomName) string   { return "room:" + string(name) }
func snapshotKeyForRoom(name domain.RoomName) string { return "room-sync:" + string(name) }

func roomNameFromChannel(channel string) domain.RoomName {
	const prefix = "room:"
	if !strings.HasPrefix(channel, prefix) {
		return ""
	}
	return domain.RoomName(strings.TrimPrefix(channel, prefix))
}

func snapshotAsSyncMessage(snapshot map[string]any) map[string]any {
	msg := map[string]any{"action": "sync"}
	for k, v := range snapshot {
		msg[k] = v
	}
	return msg
}
