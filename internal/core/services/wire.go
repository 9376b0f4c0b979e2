package services

import "github.com/Akitash/opentogethertube/internal/core/domain"

// wireUser is the JSON shape of a RoomUser sent to clients: never the raw
// domain struct, so the computed username always wins over whichever of
// UserID/UnregisteredUsername happens to be set.
type wireUser struct {
	ID       domain.ClientID `json:"id"`
	UserID   *domain.UserID  `json:"userId,omitempty"`
	Username string          `json:"username"`
	Status   domain.PlayerStatus `json:"status"`
}

func userInfoForWire(u *domain.RoomUser) *wireUser {
	if u == nil {
		return nil
	}
	return &wireUser{
		ID:       u.ID,
		UserID:   u.UserID,
		Username: u.Username(),
		Status:   u.PlayerStatus,
	}
}

func usersForWire(users []*domain.RoomUser) []*wireUser {
	out := make([]*wireUser, 0, len(users))
	for _, u := range users {
		out = append(out, userInfoForWire(u))
	}
	return out
}

// voteCountsForWire computes {videoKey: count} from the sparse vote sets,
// the "computed voteCounts" field the sync snapshot carries (spec §4.C).
func voteCountsForWire(votes map[domain.VideoKey]map[domain.ClientID]struct{}) map[domain.VideoKey]int {
	out := make(map[domain.VideoKey]int, len(votes))
	for key, set := range votes {
		out[key] = len(set)
	}
	return out
}
