package domain

import "time"

// PlayerStatus reports what a participant's local player is doing.
type PlayerStatus string

const (
	PlayerStatusNone      PlayerStatus = "none"
	PlayerStatusReady     PlayerStatus = "ready"
	PlayerStatusBuffering PlayerStatus = "buffering"
	PlayerStatusError     PlayerStatus = "error"
)

// UserInfo carries the fields a JoinRequest/UpdateUser request may set on
// a RoomUser. A nil pointer field means "leave this field unchanged".
type UserInfo struct {
	UserID               *UserID
	Username             *string // unregistered display name
	Status               *PlayerStatus
}

// RoomUser is a Room's view of one participant. It is created on
// JoinRequest and destroyed on LeaveRequest; the Room exclusively owns it.
type RoomUser struct {
	ID                    ClientID
	UserID                *UserID
	UnregisteredUsername  string
	PlayerStatus          PlayerStatus
	CachedUser            *User
	JoinedAt              time.Time
}

// NewRoomUser builds a RoomUser for a freshly joined client, applying info
// the same way UpdateInfo would.
func NewRoomUser(id ClientID, info UserInfo, now time.Time) *RoomUser {
	u := &RoomUser{ID: id, PlayerStatus: PlayerStatusNone, JoinedAt: now}
	u.UpdateInfo(info, nil)
	return u
}

// IsLoggedIn reports whether this participant is tied to a registered
// account.
func (u *RoomUser) IsLoggedIn() bool {
	return u.UserID != nil
}

// Username returns the cached account username when logged in, otherwise
// the unregistered display name.
func (u *RoomUser) Username() string {
	if u.IsLoggedIn() && u.CachedUser != nil {
		return u.CachedUser.Username
	}
	return u.UnregisteredUsername
}

// UpdateInfo applies info's present fields in the precedence order spec'd
// for RoomUser.updateInfo: a registered userId wins over an unregistered
// username; fetchedUser is the result of resolving info.UserID through the
// external user store (nil if info.UserID was not set or lookup failed).
func (u *RoomUser) UpdateInfo(info UserInfo, fetchedUser *User) {
	if info.UserID != nil {
		id := *info.UserID
		u.UserID = &id
		u.CachedUser = fetchedUser
		u.UnregisteredUsername = ""
	} else if info.Username != nil {
		u.UnregisteredUsername = *info.Username
		u.UserID = nil
		u.CachedUser = nil
	}
	if info.Status != nil {
		u.PlayerStatus = *info.Status
	}
}
