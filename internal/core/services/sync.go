package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/pkg/retry"
)

// roomSnapshot is the full syncable view of a room's state, written whole
// to the bus's snapshot key and restricted to a subset for delta messages.
type roomSnapshot struct {
	Name             domain.RoomName  `json:"name"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Visibility       domain.Visibility `json:"visibility"`
	QueueMode        domain.QueueMode `json:"queueMode"`
	CurrentSource    *domain.Video    `json:"currentSource"`
	Queue            []domain.Video   `json:"queue"`
	IsPlaying        bool             `json:"isPlaying"`
	PlaybackPosition float64          `json:"playbackPosition"`
	Users            []*wireUser      `json:"users"`
	VoteCounts       map[domain.VideoKey]int `json:"voteCounts"`
	Grants           uint64           `json:"grants"`
}

// SeedFromSnapshotJSON decodes a previously-written full snapshot (as
// stored at a room's bus snapshot key, or inside a backup) into a Seed
// for NewRoom to warm-start from. Live participants/votes are dropped by
// construction: only Seed's content fields are populated.
func SeedFromSnapshotJSON(raw []byte) (*Seed, error) {
	var snapshot roomSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return &Seed{
		Title:            snapshot.Title,
		Description:      snapshot.Description,
		Visibility:       snapshot.Visibility,
		QueueMode:        snapshot.QueueMode,
		CurrentSource:    snapshot.CurrentSource,
		Queue:            snapshot.Queue,
		PlaybackPosition: snapshot.PlaybackPosition,
	}, nil
}

func (r *Room) buildSnapshot() roomSnapshot {
	s := r.state
	return roomSnapshot{
		Name:             s.Name,
		Title:            s.Title,
		Description:      s.Description,
		Visibility:       s.Visibility,
		QueueMode:        s.QueueMode,
		CurrentSource:    s.CurrentSource,
		Queue:            s.Queue,
		IsPlaying:        s.IsPlaying,
		PlaybackPosition: s.EffectivePosition(time.Now()),
		Users:            usersForWire(s.Users),
		VoteCounts:       voteCountsForWire(s.Votes),
		Grants:           s.Grants.GetMask(domain.RoleOwner),
	}
}

// sync implements spec §4.C sync(): build the full snapshot, write it
// whole to the bus key, publish a delta restricted to the dirty fields,
// then clear dirty. A no-op if nothing is dirty.
func (r *Room) sync(ctx context.Context) {
	if len(r.state.Dirty) == 0 {
		return
	}

	snapshot := r.buildSnapshot()

	full, err := json.Marshal(snapshot)
	if err != nil {
		r.logger.Errorw("failed to marshal room snapshot", "error", err)
		return
	}
	err = r.busBreaker.Execute(ctx, func() error {
		return retry.Retry(ctx, r.busRetry, func() error {
			return r.bus.Set(ctx, snapshotKeyForRoom(r.state.Name), full)
		})
	})
	if err != nil {
		r.logger.Warnw("failed to write room snapshot", "error", err)
	}

	delta := r.buildDelta(snapshot)
	r.publishJSON(ctx, channelForRoom(r.state.Name), delta)

	r.state.Dirty = map[string]struct{}{}
}

// buildDelta restricts snapshot to the dirty field set (users and
// voteCounts included only when marked dirty) and always adds grants,
// which has no dirty flag of its own.
func (r *Room) buildDelta(snapshot roomSnapshot) map[string]any {
	delta := map[string]any{"action": "sync"}
	for field := range r.state.Dirty {
		switch field {
		case "name":
			delta["name"] = snapshot.Name
		case "title":
			delta["title"] = snapshot.Title
		case "description":
			delta["description"] = snapshot.Description
		case "visibility":
			delta["visibility"] = snapshot.Visibility
		case "queueMode":
			delta["queueMode"] = snapshot.QueueMode
		case "currentSource":
			delta["currentSource"] = snapshot.CurrentSource
		case "queue":
			delta["queue"] = snapshot.Queue
		case "isPlaying":
			delta["isPlaying"] = snapshot.IsPlaying
		case "playbackPosition":
			delta["playbackPosition"] = snapshot.PlaybackPosition
		case "playbackStart":
			delta["playbackStart"] = r.state.PlaybackStart
		case "users":
			delta["users"] = snapshot.Users
		case "voteCounts":
			delta["voteCounts"] = snapshot.VoteCounts
		}
	}
	delta["grants"] = snapshot.Grants
	return delta
}
