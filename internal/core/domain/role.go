package domain

// Role is a totally ordered authority level. Higher values outrank lower
// ones; Owner is the ceiling and is never stored in userRoles (it is
// derived from Room.Owner).
type Role int

const (
	RoleUnregisteredUser Role = iota
	RoleRegisteredUser
	RoleTrustedUser
	RoleModerator
	RoleAdministrator
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleUnregisteredUser:
		return "unregistered-user"
	case RoleRegisteredUser:
		return "registered-user"
	case RoleTrustedUser:
		return "trusted-user"
	case RoleModerator:
		return "moderator"
	case RoleAdministrator:
		return "administrator"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Outranks reports whether r has strictly higher authority than other.
func (r Role) Outranks(other Role) bool {
	return r > other
}

// AssignableRoles are the roles tracked in Room.userRoles; Owner and the
// two default roles are derived, never stored in a role set.
var AssignableRoles = []Role{RoleTrustedUser, RoleModerator, RoleAdministrator}
