package services

import (
	"sort"
	"time"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

// tick runs the periodic update: advance past a finished video, refresh
// the staleness clock, and (in vote mode) reorder the queue by votes.
func (r *Room) tick(now time.Time) {
	if r.state.CurrentSource == nil || r.state.EffectivePosition(now) > r.state.CurrentSource.Length {
		r.dequeueNext(now)
	}

	if len(r.state.Users) > 0 {
		r.state.KeepAlivePing = now
	}

	if r.state.QueueMode == domain.QueueModeVote {
		r.reorderByVotes()
	}
}

// reorderByVotes stable-sorts the queue by descending vote count, marking
// queue dirty only if the order actually changed (spec §4.C step 3).
func (r *Room) reorderByVotes() {
	q := r.state.Queue
	before := append([]domain.Video{}, q...)

	sort.SliceStable(q, func(i, j int) bool {
		return r.voteCount(q[i]) > r.voteCount(q[j])
	})

	for i := range q {
		if !domain.SameVideo(q[i], before[i]) {
			r.markDirty("queue")
			return
		}
	}
}

func (r *Room) voteCount(v domain.Video) int {
	return len(r.state.Votes[v.VideoKey()])
}
