package domain

// Session is the opaque per-socket identity handed to a Client by the
// (out-of-scope) auth collaborator: either a registered UserID or an
// unregistered display name, never both.
type Session struct {
	ID       SessionID
	UserID   *UserID
	Username string // unregistered display name; empty when UserID is set
}

// ClientInfo derives the UserInfo a JoinRequest/UpdateUser carries from
// this session, in the precedence order spec'd for clientInfo: registered
// user id wins, else the session's unregistered username.
func (s Session) ClientInfo() UserInfo {
	if s.UserID != nil {
		id := *s.UserID
		return UserInfo{UserID: &id}
	}
	name := s.Username
	return UserInfo{Username: &name}
}
