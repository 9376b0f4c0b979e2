package domain

import "time"

// User is the external account collaborator's view of a registered user.
// Fetching/storing User records is out of scope for this core; the Room
// engine only ever reads one via the injected UserStore port.
type User struct {
	ID        UserID    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
