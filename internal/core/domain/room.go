package domain

import "time"

// Visibility controls whether a room is discoverable.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

// QueueMode controls how the Room engine orders the queue on each tick.
type QueueMode string

const (
	QueueModeManual QueueMode = "manual"
	QueueModeVote   QueueMode = "vote"
)

// RoleSet is a set of client/user ids holding an assignable role.
type RoleSet map[UserID]struct{}

// State is the authoritative, in-memory state of one room. Exactly one
// instance exists per node that owns the room; the Room engine
// (internal/core/services.Room) wraps a *State with request handlers,
// dirty tracking and sync publication.
type State struct {
	Name        RoomName
	Title       string
	Description string
	Visibility  Visibility
	IsTemporary bool
	CreatedAt   time.Time

	CurrentSource    *Video
	Queue            []Video
	IsPlaying        bool
	PlaybackPosition float64
	PlaybackStart    *time.Time

	Users []*RoomUser

	Owner     *UserID
	UserRoles map[Role]RoleSet
	Grants    *Grants

	Dirty         map[string]struct{}
	KeepAlivePing time.Time
	Votes         map[VideoKey]map[ClientID]struct{}
	QueueMode     QueueMode
}

// NewState builds a fresh room state with default grants and no
// participants, mirroring the Room constructor in spec §3.
func NewState(name RoomName, now time.Time) *State {
	return &State{
		Name:          name,
		Visibility:    VisibilityPublic,
		CreatedAt:     now,
		UserRoles:     map[Role]RoleSet{RoleTrustedUser: {}, RoleModerator: {}, RoleAdministrator: {}},
		Grants:        NewDefaultGrants(),
		Dirty:         map[string]struct{}{},
		KeepAlivePing: now,
		Votes:         map[VideoKey]map[ClientID]struct{}{},
		QueueMode:     QueueModeManual,
	}
}

// EffectivePosition is playbackPosition plus elapsed wallclock since
// playbackStart while playing, else playbackPosition unchanged.
func (s *State) EffectivePosition(now time.Time) float64 {
	if s.IsPlaying && s.PlaybackStart != nil {
		return s.PlaybackPosition + now.Sub(*s.PlaybackStart).Seconds()
	}
	return s.PlaybackPosition
}

// MarkDirty records that a syncable field changed.
func (s *State) MarkDirty(field string) {
	s.Dirty[field] = struct{}{}
}

// RoleOf derives a participant's effective role: Owner if they own the
// room, else the highest assignable role they belong to, else the
// registered/unregistered default.
func (s *State) RoleOf(u *RoomUser) Role {
	if u == nil {
		return RoleUnregisteredUser
	}
	if u.IsLoggedIn() && s.Owner != nil && *u.UserID == *s.Owner {
		return RoleOwner
	}
	if u.IsLoggedIn() {
		for _, r := range []Role{RoleAdministrator, RoleModerator, RoleTrustedUser} {
			if set, ok := s.UserRoles[r]; ok {
				if _, present := set[*u.UserID]; present {
					return r
				}
			}
		}
		return RoleRegisteredUser
	}
	return RoleUnregisteredUser
}

// FindUser returns the RoomUser for clientID, or nil if not joined.
func (s *State) FindUser(clientID ClientID) *RoomUser {
	for _, u := range s.Users {
		if u.ID == clientID {
			return u
		}
	}
	return nil
}

// QueuedOrCurrent reports whether a (service,id) already appears in the
// queue or as the current source — the dedup invariant's check.
func (s *State) QueuedOrCurrent(v Video) bool {
	if s.CurrentSource != nil && SameVideo(*s.CurrentSource, v) {
		return true
	}
	for _, q := range s.Queue {
		if SameVideo(q, v) {
			return true
		}
	}
	return false
}

// IsStale reports whether the room has had no participants for longer
// than timeout.
func (s *State) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.KeepAlivePing) > timeout
}
