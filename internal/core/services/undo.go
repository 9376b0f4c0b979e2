package services

import (
	"context"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

// handleUndo implements spec §4.C undo(): only Seek/Skip/Add/Remove carry
// enough state in their published event to be inverted; every other
// action is logged and otherwise ignored.
func (r *Room) handleUndo(ctx context.Context, req domain.UndoRequest) error {
	switch target := req.Prior.Request.(type) {
	case domain.SeekRequest:
		payload, ok := req.Prior.Additional.(domain.SeekEventPayload)
		if !ok {
			r.logger.Warnw("undo: seek event missing payload", "client", req.Client)
			return nil
		}
		r.state.PlaybackPosition = payload.PrevPosition
		r.markDirty("playbackPosition")
		return nil

	case domain.SkipRequest:
		payload, ok := req.Prior.Additional.(domain.SkipEventPayload)
		if !ok || payload.Video == nil {
			r.logger.Warnw("undo: skip event missing payload", "client", req.Client)
			return nil
		}
		restored := *payload.Video
		r.state.Queue = append([]domain.Video{}, r.state.Queue...)
		if r.state.CurrentSource != nil {
			r.state.Queue = append([]domain.Video{*r.state.CurrentSource}, r.state.Queue...)
		}
		r.state.CurrentSource = &restored
		r.state.PlaybackPosition = payload.PrevPosition
		r.markDirty("queue")
		r.markDirty("currentSource")
		r.markDirty("playbackPosition")
		return nil

	case domain.AddRequest:
		payload, ok := req.Prior.Additional.(domain.AddEventPayload)
		if !ok {
			r.logger.Warnw("undo: add event missing payload", "client", req.Client)
			return nil
		}
		added := payload.Videos
		if payload.Video != nil {
			added = append(added, *payload.Video)
		}
		for _, v := range added {
			for idx, q := range r.state.Queue {
				if domain.SameVideo(q, v) {
					r.state.Queue = append(r.state.Queue[:idx], r.state.Queue[idx+1:]...)
					break
				}
			}
		}
		r.markDirty("queue")
		return nil

	case domain.RemoveRequest:
		payload, ok := req.Prior.Additional.(domain.RemoveEventPayload)
		if !ok {
			r.logger.Warnw("undo: remove event missing payload", "client", req.Client)
			return nil
		}
		idx := payload.QueueIdx
		if idx < 0 || idx > len(r.state.Queue) {
			idx = len(r.state.Queue)
		}
		restored := append([]domain.Video{}, r.state.Queue[:idx]...)
		restored = append(restored, payload.Video)
		restored = append(restored, r.state.Queue[idx:]...)
		r.state.Queue = restored
		r.markDirty("queue")
		return nil

	default:
		r.logger.Infow("undo: request type is not invertible", "client", req.Client, "kind", requestKind(target))
		return nil
	}
}
