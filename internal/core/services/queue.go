package services

import (
	"context"
	"time"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

func (r *Room) handleAdd(ctx context.Context, req domain.AddRequest) error {
	switch {
	case req.URL != "":
		service, id, err := r.extractor.ResolveURL(ctx, req.URL)
		if err != nil {
			return err
		}
		return r.addSingle(ctx, req, service, id)
	case req.Video != nil:
		return r.addSingle(ctx, req, req.Video.Service, req.Video.ID)
	default:
		return r.addBatch(ctx, req)
	}
}

func (r *Room) addSingle(ctx context.Context, req domain.AddRequest, service, id string) error {
	candidate := domain.Video{Service: service, ID: id}
	if r.state.QueuedOrCurrent(candidate) {
		return domain.ErrVideoAlreadyQueued
	}
	video, err := r.extractor.FetchMetadata(ctx, service, id)
	if err != nil {
		return err
	}
	r.state.Queue = append(r.state.Queue, video)
	r.markDirty("queue")
	r.publishEvent(ctx, req, req.Client, domain.AddEventPayload{Video: &video})
	return nil
}

func (r *Room) addBatch(ctx context.Context, req domain.AddRequest) error {
	survivors := make([]domain.Video, 0, len(req.Videos))
	for _, v := range req.Videos {
		if r.state.QueuedOrCurrent(v) {
			continue
		}
		survivors = append(survivors, v)
	}
	if len(survivors) == 0 {
		return domain.ErrVideoAlreadyQueued
	}

	fetched := make([]domain.Video, 0, len(survivors))
	for _, v := range survivors {
		full, err := r.extractor.FetchMetadata(ctx, v.Service, v.ID)
		if err != nil {
			return err
		}
		fetched = append(fetched, full)
	}

	r.state.Queue = append(r.state.Queue, fetched...)
	r.markDirty("queue")
	r.publishEvent(ctx, req, req.Client, domain.AddEventPayload{Videos: fetched})
	return nil
}

func (r *Room) handleRemove(ctx context.Context, req domain.RemoveRequest) error {
	for idx, v := range r.state.Queue {
		if v.Service == req.Service && v.ID == req.VideoID {
			r.state.Queue = append(r.state.Queue[:idx], r.state.Queue[idx+1:]...)
			r.markDirty("queue")
			r.publishEvent(ctx, req, req.Client, domain.RemoveEventPayload{Video: v, QueueIdx: idx})
			return nil
		}
	}
	return domain.ErrVideoNotFound
}

// dequeueNext pops the queue's front video into currentSource, or clears
// currentSource (and pauses) if the queue is already empty — spec §4.C.
func (r *Room) dequeueNext(now time.Time) {
	if len(r.state.Queue) > 0 {
		next := r.state.Queue[0]
		r.state.Queue = r.state.Queue[1:]
		r.state.CurrentSource = &next
		r.state.PlaybackPosition = 0
		r.markDirty("queue")
		r.markDirty("currentSource")
		r.markDirty("playbackPosition")
		return
	}
	if r.state.CurrentSource != nil {
		if r.state.IsPlaying {
			r.state.IsPlaying = false
			r.state.PlaybackStart = nil
			r.markDirty("isPlaying")
			r.markDirty("playbackStart")
		}
		r.state.PlaybackPosition = 0
		r.state.CurrentSource = nil
		r.markDirty("playbackPosition")
		r.markDirty("currentSource")
	}
}
