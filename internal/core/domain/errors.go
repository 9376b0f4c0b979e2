package domain

import "errors"

// Sentinel domain errors, mirrored 1:1 on the teacher's domain.ErrXxx
// pattern. Every request handler either succeeds fully or returns one of
// these with no partial mutation.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrClientNotFoundInRoom = errors.New("client not found in room")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrVideoAlreadyQueued   = errors.New("video already queued")
	ErrVideoNotFound        = errors.New("video not found")
	ErrImpossiblePromotion  = errors.New("impossible promotion")
	// ErrVoteNotFound names the case of a vote-remove that targets a video
	// with no recorded votes. handleVote does not return it: such a
	// vote-remove is silently ignored, as in the original source.
	ErrVoteNotFound = errors.New("vote not found")
)
