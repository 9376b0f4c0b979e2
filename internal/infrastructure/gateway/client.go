// Package gateway implements the Client gateway: per-process socket
// management, wire-protocol translation, and bus-driven broadcast,
// grounded on the teacher's signal.WebSocketServer connection-handling
// idiom (read/write goroutines, ping ticker, select loop).
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/pkg/utils"
	"github.com/Akitash/opentogethertube/pkg/validation"
)

// Close codes sent to the client's socket on protocol-level disconnects,
// beyond the standard websocket close codes.
const (
	CloseCodeUnknown            = 4000
	CloseCodeRoomNotFound       = 4001
	CloseCodeInvalidConnURL     = 4002
	CloseCodeRoomUnloaded       = 4003
)

// wireMessage is the envelope every inbound client message arrives as.
type wireMessage struct {
	Action          string          `json:"action"`
	State           *bool           `json:"state,omitempty"`
	Value           *float64        `json:"value,omitempty"`
	FromIdx         *int            `json:"fromIdx,omitempty"`
	ToIdx           *int            `json:"toIdx,omitempty"`
	Text            string          `json:"text,omitempty"`
	Status          *string         `json:"status,omitempty"`
	TargetClientID  string          `json:"targetClientId,omitempty"`
	Role            *int            `json:"role,omitempty"`
	URL             string          `json:"url,omitempty"`
	Video           *domain.Video   `json:"video,omitempty"`
	Videos          []domain.Video  `json:"videos,omitempty"`
	Service         string          `json:"service,omitempty"`
	VideoID         string          `json:"id,omitempty"`
	Add             *bool           `json:"add,omitempty"`
	PriorKind       string          `json:"priorKind,omitempty"`
	PriorClientID   string          `json:"priorClientId,omitempty"`
	PriorAdditional json.RawMessage `json:"priorAdditional,omitempty"`
	Raw             json.RawMessage `json:"-"`
}

// Client is one connected socket. It owns no room state of its own beyond
// which room (if any) it has joined; the Room engine is the sole owner of
// participant state.
type Client struct {
	ID      domain.ClientID
	Session domain.Session
	conn    *websocket.Conn
	room    domain.RoomName
	joined  bool

	manager *ClientManager
	logger  *zap.SugaredLogger

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, session domain.Session, manager *ClientManager, logger *zap.SugaredLogger) *Client {
	return &Client{
		ID:      domain.ClientID(utils.GenerateID("client")),
		Session: session,
		conn:    conn,
		manager: manager,
		logger:  logger,
	}
}

// clientInfo derives the UserInfo to send with Join/UpdateUser requests,
// per spec §4.E's precedence: registered user id, else session username,
// else a freshly generated pronounceable name (logged as a warning).
func (c *Client) clientInfo() domain.UserInfo {
	info := c.Session.ClientInfo()
	if info.UserID == nil && (info.Username == nil || *info.Username == "") {
		name := generatePronounceableName()
		c.logger.Warnw("session carried no identity, generating guest name", "client", c.ID, "name", name)
		info.Username = &name
	}
	return info
}

// joinRoom implements spec §4.E joinRoom: resolve the room, full-sync this
// socket, subscribe the process to its channel, register local membership,
// then submit the JoinRequest.
func (c *Client) joinRoom(ctx context.Context, name domain.RoomName) error {
	handle, err := c.manager.rooms.GetRoom(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, name)
	}

	c.room = name
	c.joined = true

	snapshot, err := c.manager.loadSnapshot(ctx, name)
	if err == nil && snapshot != nil {
		c.send(snapshotAsSyncMessage(snapshot))
	}

	if err := c.manager.ensureSubscribed(ctx, name); err != nil {
		c.logger.Warnw("failed to subscribe to room channel", "room", name, "error", err)
	}

	c.manager.registerJoin(name, c)

	return handle.Submit(ctx, domain.JoinRequest{Client: c.ID, Info: c.clientInfo()})
}

// onMessage translates one inbound wire message into a domain.Request and
// submits it to the joined room. Per spec §4.E, translation/routing errors
// are logged, never fatal to the socket.
func (c *Client) onMessage(ctx context.Context, raw []byte) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Infow("failed to parse client message", "client", c.ID, "error", err)
		return
	}

	req, ok := c.translate(msg)
	if !ok {
		if msg.Action == "kickme" {
			c.closeWithCode(CloseCodeUnknown, "kicked by request")
			return
		}
		c.logger.Infow("unhandled client action", "client", c.ID, "action", msg.Action)
		return
	}

	handle, err := c.manager.rooms.GetRoom(ctx, c.room)
	if err != nil {
		c.logger.Infow("room not found for joined client", "client", c.ID, "room", c.room, "error", err)
		return
	}
	if err := handle.Submit(ctx, req); err != nil {
		c.logger.Infow("request failed", "client", c.ID, "room", c.room, "action", msg.Action, "error", err)
	}
}

// translate implements the wire-action → request-type table in spec §4.E.
func (c *Client) translate(msg wireMessage) (domain.Request, bool) {
	switch msg.Action {
	case "play":
		return domain.PlaybackRequest{Client: c.ID, State: true}, true
	case "pause":
		return domain.PlaybackRequest{Client: c.ID, State: false}, true
	case "skip":
		return domain.SkipRequest{Client: c.ID}, true
	case "seek":
		return domain.SeekRequest{Client: c.ID, Value: msg.Value}, true
	case "queue-move":
		if msg.FromIdx == nil || msg.ToIdx == nil {
			return nil, false
		}
		return domain.OrderRequest{Client: c.ID, FromIdx: *msg.FromIdx, ToIdx: *msg.ToIdx}, true
	case "chat":
		if err := validation.ValidateNonEmptyString(msg.Text, "text"); err != nil {
			return nil, false
		}
		return domain.ChatRequest{Client: c.ID, Text: msg.Text}, true
	case "status":
		if msg.Status == nil {
			return nil, false
		}
		status := domain.PlayerStatus(*msg.Status)
		return domain.UpdateUserRequest{Client: c.ID, Info: domain.UserInfo{Status: &status}}, true
	case "set-role":
		if msg.Role == nil || msg.TargetClientID == "" {
			return nil, false
		}
		return domain.PromoteRequest{
			Client:         c.ID,
			TargetClientID: domain.ClientID(msg.TargetClientID),
			Role:           domain.Role(*msg.Role),
		}, true
	case "add":
		return c.translateAdd(msg)
	case "remove":
		if msg.Service == "" || msg.VideoID == "" {
			return nil, false
		}
		return domain.RemoveRequest{Client: c.ID, Service: msg.Service, VideoID: msg.VideoID}, true
	case "vote":
		if msg.Service == "" || msg.VideoID == "" || msg.Add == nil {
			return nil, false
		}
		return domain.VoteRequest{
			Client: c.ID,
			Video:  domain.Video{Service: msg.Service, ID: msg.VideoID},
			Add:    *msg.Add,
		}, true
	case "undo":
		return c.translateUndo(msg)
	default:
		return nil, false
	}
}

// translateAdd implements spec §4.C addToQueue's one-of URL/Video/Videos
// precedence at the wire boundary. A URL is structurally validated here so
// a malformed value never reaches the extractor's outbound call.
func (c *Client) translateAdd(msg wireMessage) (domain.Request, bool) {
	switch {
	case msg.URL != "":
		if err := validation.ValidateURL(msg.URL); err != nil {
			c.logger.Infow("rejected add request: invalid url", "client", c.ID, "error", err)
			return nil, false
		}
		return domain.AddRequest{Client: c.ID, URL: msg.URL}, true
	case msg.Video != nil:
		return domain.AddRequest{Client: c.ID, Video: msg.Video}, true
	case len(msg.Videos) > 0:
		return domain.AddRequest{Client: c.ID, Videos: msg.Videos}, true
	default:
		return nil, false
	}
}

// undoPayload maps a published event's kind string back to the typed
// Additional payload handleUndo expects, mirroring requestKind's forward
// mapping in handlers.go.
func undoPayload(kind string) any {
	switch kind {
	case "seek":
		return &domain.SeekEventPayload{}
	case "skip":
		return &domain.SkipEventPayload{}
	case "add":
		return &domain.AddEventPayload{}
	case "remove":
		return &domain.RemoveEventPayload{}
	default:
		return nil
	}
}

// undoRequestOf returns the zero-value Request variant for kind. handleUndo
// only switches on its concrete type, never its fields, so a placeholder
// value round-trips undo correctly without the gateway having to reconstruct
// the original request in full.
func undoRequestOf(kind string) (domain.Request, bool) {
	switch kind {
	case "seek":
		return domain.SeekRequest{}, true
	case "skip":
		return domain.SkipRequest{}, true
	case "add":
		return domain.AddRequest{}, true
	case "remove":
		return domain.RemoveRequest{}, true
	default:
		return nil, false
	}
}

// translateUndo reconstructs the domain.Event a prior request published
// (spec §4.C undo()) from the kind/payload the client echoes back, since
// the server keeps no request history of its own.
func (c *Client) translateUndo(msg wireMessage) (domain.Request, bool) {
	priorReq, ok := undoRequestOf(msg.PriorKind)
	if !ok {
		c.logger.Infow("rejected undo request: not invertible", "client", c.ID, "kind", msg.PriorKind)
		return nil, false
	}

	payload := undoPayload(msg.PriorKind)
	if payload != nil && len(msg.PriorAdditional) > 0 {
		if err := json.Unmarshal(msg.PriorAdditional, payload); err != nil {
			c.logger.Infow("rejected undo request: bad payload", "client", c.ID, "error", err)
			return nil, false
		}
	}

	event := domain.Event{Request: priorReq, ClientID: domain.ClientID(msg.PriorClientID)}
	switch p := payload.(type) {
	case *domain.SeekEventPayload:
		event.Additional = *p
	case *domain.SkipEventPayload:
		event.Additional = *p
	case *domain.AddEventPayload:
		event.Additional = *p
	case *domain.RemoveEventPayload:
		event.Additional = *p
	}

	return domain.UndoRequest{Client: c.ID, Prior: event}, true
}

// onClose implements spec §4.E onClose: deregister from the process-wide
// connection list and, if joined, submit a LeaveRequest.
func (c *Client) onClose(ctx context.Context) {
	c.manager.deregister(c)
	if !c.joined {
		return
	}
	handle, err := c.manager.rooms.GetRoom(ctx, c.room)
	if err != nil {
		return
	}
	if err := handle.Submit(ctx, domain.LeaveRequest{Client: c.ID}); err != nil {
		c.logger.Infow("leave request failed on disconnect", "client", c.ID, "room", c.room, "error", err)
	}
}

func (c *Client) send(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Errorw("failed to marshal outgoing message", "client", c.ID, "error", err)
		return
	}
	c.sendRaw(payload)
}

func (c *Client) sendRaw(payload []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Infow("failed to write to client", "client", c.ID, "error", err)
	}
}

func (c *Client) closeWithCode(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	c.conn.Close()
}

func (c *Client) sendPong() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.PongMessage, nil)
}

var pronounceableSyllables = []string{
	"ba", "be", "bi", "bo", "bu", "da", "de", "di", "do", "du",
	"fa", "fe", "fi", "fo", "fu", "ga", "ge", "gi", "go", "gu",
	"ka", "ke", "ki", "ko", "ku", "la", "le", "li", "lo", "lu",
	"ma", "me", "mi", "mo", "mu", "na", "ne", "ni", "no", "nu",
	"ra", "re", "ri", "ro", "ru", "sa", "se", "si", "so", "su",
	"ta", "te", "ti", "to", "tu",
}

// generatePronounceableName builds a short, readable guest display name
// ("Guest-takora") when a session carries no usable identity.
func generatePronounceableName() string {
	n := 3
	syllables := make([]string, n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(pronounceableSyllables))))
		if err != nil {
			syllables[i] = pronounceableSyllables[0]
			continue
		}
		syllables[i] = pronounceableSyllables[idx.Int64()]
	}
	name := "Guest-"
	for _, s := range syllables {
		name += s
	}
	return name
}
