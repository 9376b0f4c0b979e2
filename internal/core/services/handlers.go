package services

import (
	"context"
	"time"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/pkg/utils"
)

// maxChatMessageLength bounds a chat message after sanitizing, so one
// oversized paste doesn't blow up every joined client's render.
const maxChatMessageLength = 500

// permissionFor returns the permission name that gates req, and whether
// req is gated at all (some request types have no generic permission
// check per spec §4.C).
func permissionFor(req domain.Request) (string, bool) {
	switch req.(type) {
	case domain.PlaybackRequest:
		return domain.PermPlaybackPlayPause, true
	case domain.SkipRequest:
		return domain.PermPlaybackSkip, true
	case domain.SeekRequest:
		return domain.PermPlaybackSeek, true
	case domain.AddRequest:
		return domain.PermManageQueueAdd, true
	case domain.RemoveRequest:
		return domain.PermManageQueueRemove, true
	case domain.OrderRequest:
		return domain.PermManageQueueOrder, true
	case domain.VoteRequest:
		return domain.PermManageQueueVote, true
	case domain.ChatRequest:
		return domain.PermChat, true
	default:
		return "", false
	}
}

// processRequest resolves the acting user, enforces the permission map,
// and dispatches to the handler for req's concrete type. It either fully
// succeeds (state mutated, event published) or fully fails (no mutation).
func (r *Room) processRequest(ctx context.Context, req domain.Request) error {
	actingUser := r.state.FindUser(req.RequestClient())

	if permission, gated := permissionFor(req); gated {
		role := r.state.RoleOf(actingUser)
		if err := r.state.Grants.Check(role, permission); err != nil {
			r.metrics.PermissionDenied(string(r.state.Name))
			return err
		}
	}

	r.metrics.RequestProcessed(string(r.state.Name), requestKind(req))

	switch req := req.(type) {
	case domain.PlaybackRequest:
		return r.handlePlayback(ctx, req)
	case domain.SkipRequest:
		return r.handleSkip(ctx, req)
	case domain.SeekRequest:
		return r.handleSeek(ctx, req)
	case domain.AddRequest:
		return r.handleAdd(ctx, req)
	case domain.RemoveRequest:
		return r.handleRemove(ctx, req)
	case domain.OrderRequest:
		return r.handleOrder(ctx, req)
	case domain.VoteRequest:
		return r.handleVote(ctx, req)
	case domain.ChatRequest:
		return r.handleChat(ctx, req)
	case domain.JoinRequest:
		return r.handleJoin(ctx, req)
	case domain.LeaveRequest:
		return r.handleLeave(ctx, req)
	case domain.UpdateUserRequest:
		return r.handleUpdateUser(ctx, req)
	case domain.PromoteRequest:
		return r.handlePromote(ctx, req, actingUser)
	case domain.UndoRequest:
		return r.handleUndo(ctx, req)
	default:
		return nil
	}
}

func requestKind(req domain.Request) string {
	switch req.(type) {
	case domain.PlaybackRequest:
		return "playback"
	case domain.SkipRequest:
		return "skip"
	case domain.SeekRequest:
		return "seek"
	case domain.AddRequest:
		return "add"
	case domain.RemoveRequest:
		return "remove"
	case domain.OrderRequest:
		return "order"
	case domain.VoteRequest:
		return "vote"
	case domain.ChatRequest:
		return "chat"
	case domain.JoinRequest:
		return "join"
	case domain.LeaveRequest:
		return "leave"
	case domain.UpdateUserRequest:
		return "update-user"
	case domain.PromoteRequest:
		return "promote"
	case domain.UndoRequest:
		return "undo"
	default:
		return "unknown"
	}
}

func (r *Room) handlePlayback(ctx context.Context, req domain.PlaybackRequest) error {
	now := time.Now()
	if req.State && !r.state.IsPlaying {
		r.state.IsPlaying = true
		r.state.PlaybackStart = &now
		r.markDirty("isPlaying")
		r.markDirty("playbackStart")
	} else if !req.State && r.state.IsPlaying {
		r.state.PlaybackPosition = r.state.EffectivePosition(now)
		r.state.PlaybackStart = nil
		r.state.IsPlaying = false
		r.markDirty("playbackPosition")
		r.markDirty("playbackStart")
		r.markDirty("isPlaying")
	}
	r.publishEvent(ctx, req, req.Client, nil)
	return nil
}

func (r *Room) handleSkip(ctx context.Context, req domain.SkipRequest) error {
	now := time.Now()
	video := r.state.CurrentSource
	prevPosition := r.state.EffectivePosition(now)
	r.dequeueNext(now)
	r.publishEvent(ctx, req, req.Client, domain.SkipEventPayload{Video: video, PrevPosition: prevPosition})
	return nil
}

func (r *Room) handleSeek(ctx context.Context, req domain.SeekRequest) error {
	if req.Value == nil {
		return domain.ErrVideoNotFound
	}
	prevPosition := r.state.PlaybackPosition
	r.state.PlaybackPosition = *req.Value
	r.markDirty("playbackPosition")
	r.publishEvent(ctx, req, req.Client, domain.SeekEventPayload{PrevPosition: prevPosition})
	return nil
}

func (r *Room) handleOrder(ctx context.Context, req domain.OrderRequest) error {
	q := r.state.Queue
	if req.FromIdx < 0 || req.FromIdx >= len(q) || req.ToIdx < 0 || req.ToIdx >= len(q) {
		return nil // out-of-range is a caller programming error per spec, not a domain failure
	}
	moved := q[req.FromIdx]
	q = append(q[:req.FromIdx], q[req.FromIdx+1:]...)
	q = append(q[:req.ToIdx], append([]domain.Video{moved}, q[req.ToIdx:]...)...)
	r.state.Queue = q
	r.markDirty("queue")
	r.publishEvent(ctx, req, req.Client, nil)
	return nil
}

func (r *Room) handleVote(ctx context.Context, req domain.VoteRequest) error {
	key := req.Video.VideoKey()
	if req.Add {
		if r.state.Votes[key] == nil {
			r.state.Votes[key] = map[domain.ClientID]struct{}{}
		}
		r.state.Votes[key][req.Client] = struct{}{}
	} else {
		if set, ok := r.state.Votes[key]; ok {
			delete(set, req.Client)
			if len(set) == 0 {
				delete(r.state.Votes, key)
			}
		}
	}
	r.markDirty("voteCounts")
	return nil
}

func (r *Room) handleChat(ctx context.Context, req domain.ChatRequest) error {
	text := utils.TruncateString(utils.SanitizeString(req.Text), maxChatMessageLength)
	if utils.IsEmpty(text) {
		return nil
	}
	user := r.state.FindUser(req.Client)
	msg := map[string]any{
		"action": "chat",
		"from":   userInfoForWire(user),
		"text":   text,
	}
	r.publishJSON(ctx, channelForRoom(r.state.Name), msg)
	return nil
}

const maxUsernameLength = 32

// sanitizeUserInfo strips control characters and caps the length of a
// client-supplied display name before it ever reaches RoomUser or a wire
// message, the same treatment handleChat gives message text.
func sanitizeUserInfo(info domain.UserInfo) domain.UserInfo {
	if info.Username == nil {
		return info
	}
	clean := utils.TruncateString(utils.SanitizeString(*info.Username), maxUsernameLength)
	info.Username = &clean
	return info
}

func (r *Room) handleJoin(ctx context.Context, req domain.JoinRequest) error {
	req.Info = sanitizeUserInfo(req.Info)
	user := domain.NewRoomUser(req.Client, req.Info, time.Now())
	if req.Info.UserID != nil && r.users != nil {
		if fetched, err := r.users.GetUser(ctx, *req.Info.UserID); err == nil {
			user.CachedUser = &fetched
		} else {
			r.logger.Warnw("failed to fetch user on join", "error", err, "userId", *req.Info.UserID)
		}
	}
	r.state.Users = append(r.state.Users, user)
	r.markDirty("users")
	r.publishEvent(ctx, req, req.Client, nil)
	return nil
}

func (r *Room) handleLeave(ctx context.Context, req domain.LeaveRequest) error {
	for i, u := range r.state.Users {
		if u.ID == req.Client {
			r.state.Users = append(r.state.Users[:i], r.state.Users[i+1:]...)
			r.markDirty("users")
			r.publishEvent(ctx, req, req.Client, nil)
			return nil
		}
	}
	return domain.ErrClientNotFoundInRoom
}

func (r *Room) handleUpdateUser(ctx context.Context, req domain.UpdateUserRequest) error {
	req.Info = sanitizeUserInfo(req.Info)
	user := r.state.FindUser(req.Client)
	if user == nil {
		return domain.ErrClientNotFoundInRoom
	}
	var fetched *domain.User
	if req.Info.UserID != nil && r.users != nil {
		if u, err := r.users.GetUser(ctx, *req.Info.UserID); err == nil {
			fetched = &u
		}
	}
	user.UpdateInfo(req.Info, fetched)
	r.markDirty("users")
	return nil
}
