package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

func testClient() *Client {
	return &Client{ID: domain.ClientID("c1"), logger: zap.NewNop().Sugar()}
}

func TestTranslate_PlayPauseSkipSeek(t *testing.T) {
	c := testClient()

	req, ok := c.translate(wireMessage{Action: "play"})
	require.True(t, ok)
	assert.Equal(t, domain.PlaybackRequest{Client: "c1", State: true}, req)

	req, ok = c.translate(wireMessage{Action: "pause"})
	require.True(t, ok)
	assert.Equal(t, domain.PlaybackRequest{Client: "c1", State: false}, req)

	req, ok = c.translate(wireMessage{Action: "skip"})
	require.True(t, ok)
	assert.Equal(t, domain.SkipRequest{Client: "c1"}, req)

	val := 12.5
	req, ok = c.translate(wireMessage{Action: "seek", Value: &val})
	require.True(t, ok)
	assert.Equal(t, domain.SeekRequest{Client: "c1", Value: &val}, req)
}

func TestTranslate_QueueMoveRequiresBothIndices(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "queue-move"})
	assert.False(t, ok)

	from, to := 0, 2
	req, ok := c.translate(wireMessage{Action: "queue-move", FromIdx: &from, ToIdx: &to})
	require.True(t, ok)
	assert.Equal(t, domain.OrderRequest{Client: "c1", FromIdx: 0, ToIdx: 2}, req)
}

func TestTranslate_ChatValidatesNonEmptyText(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "chat", Text: ""})
	assert.False(t, ok)

	req, ok := c.translate(wireMessage{Action: "chat", Text: "hello"})
	require.True(t, ok)
	assert.Equal(t, domain.ChatRequest{Client: "c1", Text: "hello"}, req)
}

func TestTranslate_AddByURLValidatesURL(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "add", URL: "not-a-url"})
	assert.False(t, ok)

	req, ok := c.translate(wireMessage{Action: "add", URL: "https://youtu.be/abc123"})
	require.True(t, ok)
	assert.Equal(t, domain.AddRequest{Client: "c1", URL: "https://youtu.be/abc123"}, req)
}

func TestTranslate_AddByVideoOrBatch(t *testing.T) {
	c := testClient()

	v := &domain.Video{Service: "youtube", ID: "abc"}
	req, ok := c.translate(wireMessage{Action: "add", Video: v})
	require.True(t, ok)
	assert.Equal(t, domain.AddRequest{Client: "c1", Video: v}, req)

	videos := []domain.Video{{Service: "youtube", ID: "1"}, {Service: "youtube", ID: "2"}}
	req, ok = c.translate(wireMessage{Action: "add", Videos: videos})
	require.True(t, ok)
	assert.Equal(t, domain.AddRequest{Client: "c1", Videos: videos}, req)

	_, ok = c.translate(wireMessage{Action: "add"})
	assert.False(t, ok)
}

func TestTranslate_Remove(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "remove", Service: "youtube"})
	assert.False(t, ok)

	req, ok := c.translate(wireMessage{Action: "remove", Service: "youtube", VideoID: "abc"})
	require.True(t, ok)
	assert.Equal(t, domain.RemoveRequest{Client: "c1", Service: "youtube", VideoID: "abc"}, req)
}

func TestTranslate_Vote(t *testing.T) {
	c := testClient()

	add := true
	_, ok := c.translate(wireMessage{Action: "vote", Service: "youtube", VideoID: "abc"})
	assert.False(t, ok)

	req, ok := c.translate(wireMessage{Action: "vote", Service: "youtube", VideoID: "abc", Add: &add})
	require.True(t, ok)
	assert.Equal(t, domain.VoteRequest{
		Client: "c1",
		Video:  domain.Video{Service: "youtube", ID: "abc"},
		Add:    true,
	}, req)
}

func TestTranslate_SetRole(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "set-role"})
	assert.False(t, ok)

	role := int(domain.RoleModerator)
	req, ok := c.translate(wireMessage{Action: "set-role", TargetClientID: "c2", Role: &role})
	require.True(t, ok)
	assert.Equal(t, domain.PromoteRequest{
		Client:         "c1",
		TargetClientID: "c2",
		Role:           domain.RoleModerator,
	}, req)
}

func TestTranslate_UndoSeek(t *testing.T) {
	c := testClient()

	payload, _ := json.Marshal(domain.SeekEventPayload{PrevPosition: 7})
	req, ok := c.translate(wireMessage{
		Action:          "undo",
		PriorKind:       "seek",
		PriorClientID:   "c2",
		PriorAdditional: payload,
	})
	require.True(t, ok)

	undo, ok := req.(domain.UndoRequest)
	require.True(t, ok)
	assert.Equal(t, domain.ClientID("c1"), undo.Client)
	assert.Equal(t, domain.ClientID("c2"), undo.Prior.ClientID)
	assert.IsType(t, domain.SeekRequest{}, undo.Prior.Request)
	assert.Equal(t, domain.SeekEventPayload{PrevPosition: 7}, undo.Prior.Additional)
}

func TestTranslate_UndoUnknownKindRejected(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "undo", PriorKind: "chat"})
	assert.False(t, ok)
}

func TestTranslate_UndoAddWithPayload(t *testing.T) {
	c := testClient()

	v := domain.Video{Service: "youtube", ID: "abc"}
	payload, _ := json.Marshal(domain.AddEventPayload{Video: &v})
	req, ok := c.translate(wireMessage{
		Action:          "undo",
		PriorKind:       "add",
		PriorAdditional: payload,
	})
	require.True(t, ok)

	undo := req.(domain.UndoRequest)
	assert.IsType(t, domain.AddRequest{}, undo.Prior.Request)
	additional, ok := undo.Prior.Additional.(domain.AddEventPayload)
	require.True(t, ok)
	require.NotNil(t, additional.Video)
	assert.Equal(t, v, *additional.Video)
}

func TestTranslate_UnknownActionRejected(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "nonsense"})
	assert.False(t, ok)
}

func TestTranslate_Status(t *testing.T) {
	c := testClient()

	_, ok := c.translate(wireMessage{Action: "status"})
	assert.False(t, ok)

	status := "ready"
	req, ok := c.translate(wireMessage{Action: "status", Status: &status})
	require.True(t, ok)
	update, ok := req.(domain.UpdateUserRequest)
	require.True(t, ok)
	require.NotNil(t, update.Info.Status)
	assert.Equal(t, domain.PlayerStatusReady, *update.Info.Status)
}
