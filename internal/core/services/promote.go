package services

import (
	"context"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

var promotePermissionFor = map[domain.Role]string{
	domain.RoleAdministrator: domain.PermPromoteAdmin,
	domain.RoleModerator:     domain.PermPromoteModerator,
	domain.RoleTrustedUser:   domain.PermPromoteTrustedUser,
}

var demotePermissionFor = map[domain.Role]string{
	domain.RoleAdministrator: domain.PermDemoteAdmin,
	domain.RoleModerator:     domain.PermDemoteModerator,
	domain.RoleTrustedUser:   domain.PermDemoteTrustedUser,
}

// handlePromote implements spec §4.C promoteUser: two independent
// permission checks against the promoter's own role (promote-to-target,
// and — on demotion — demote-from-current-role), then a map-of-sets
// rewrite.
func (r *Room) handlePromote(ctx context.Context, req domain.PromoteRequest, actingUser *domain.RoomUser) error {
	if req.Role == domain.RoleUnregisteredUser {
		return domain.ErrImpossiblePromotion
	}

	target := r.state.FindUser(req.TargetClientID)
	if target == nil {
		return domain.ErrClientNotFoundInRoom
	}

	promoterRole := r.state.RoleOf(actingUser)
	if promotePerm, ok := promotePermissionFor[req.Role]; ok {
		if err := r.state.Grants.Check(promoterRole, promotePerm); err != nil {
			return domain.ErrImpossiblePromotion
		}
	}

	currentRole := r.state.RoleOf(target)
	if currentRole.Outranks(req.Role) {
		demotePerm, ok := demotePermissionFor[currentRole]
		if !ok {
			return domain.ErrImpossiblePromotion
		}
		if err := r.state.Grants.Check(promoterRole, demotePerm); err != nil {
			return domain.ErrImpossiblePromotion
		}
	}

	if !target.IsLoggedIn() {
		return domain.ErrImpossiblePromotion
	}
	targetUserID := *target.UserID

	for _, role := range domain.AssignableRoles {
		delete(r.state.UserRoles[role], targetUserID)
	}
	if req.Role != domain.RoleRegisteredUser && req.Role != domain.RoleUnregisteredUser && req.Role != domain.RoleOwner {
		if r.state.UserRoles[req.Role] == nil {
			r.state.UserRoles[req.Role] = domain.RoleSet{}
		}
		r.state.UserRoles[req.Role][targetUserID] = struct{}{}
	}

	r.markDirty("users")
	r.publishEvent(ctx, req, req.Client, nil)
	return nil
}
