package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrants_OwnerAlwaysPasses(t *testing.T) {
	g := NewDefaultGrants()
	assert.NoError(t, g.Check(RoleOwner, PermPromoteAdmin))
	assert.NoError(t, g.Check(RoleOwner, "some-unknown-permission"))
}

func TestGrants_DefaultMasksByRole(t *testing.T) {
	g := NewDefaultGrants()

	assert.NoError(t, g.Check(RoleUnregisteredUser, PermChat))
	assert.ErrorIs(t, g.Check(RoleUnregisteredUser, PermManageQueueAdd), ErrPermissionDenied)

	assert.NoError(t, g.Check(RoleRegisteredUser, PermManageQueueAdd))
	assert.NoError(t, g.Check(RoleRegisteredUser, PermManageQueueVote))
	assert.ErrorIs(t, g.Check(RoleRegisteredUser, PermManageQueueRemove), ErrPermissionDenied)

	assert.NoError(t, g.Check(RoleTrustedUser, PermManageQueueRemove))
	assert.NoError(t, g.Check(RoleTrustedUser, PermPlaybackSkip))
	assert.ErrorIs(t, g.Check(RoleTrustedUser, PermPromoteTrustedUser), ErrPermissionDenied)

	assert.NoError(t, g.Check(RoleModerator, PermPromoteTrustedUser))
	assert.NoError(t, g.Check(RoleModerator, PermDemoteTrustedUser))
	assert.ErrorIs(t, g.Check(RoleModerator, PermPromoteModerator), ErrPermissionDenied)

	assert.NoError(t, g.Check(RoleAdministrator, PermPromoteModerator))
	assert.NoError(t, g.Check(RoleAdministrator, PermDemoteModerator))
}

func TestGrants_UnknownPermissionErrors(t *testing.T) {
	g := NewDefaultGrants()
	err := g.Check(RoleTrustedUser, "no-such-permission")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}

func TestGrants_GetMask(t *testing.T) {
	g := NewDefaultGrants()
	mask := g.GetMask(RoleTrustedUser)
	assert.NotZero(t, mask)
}

func TestRole_Outranks(t *testing.T) {
	assert.True(t, RoleOwner.Outranks(RoleAdministrator))
	assert.True(t, RoleModerator.Outranks(RoleTrustedUser))
	assert.False(t, RoleTrustedUser.Outranks(RoleModerator))
	assert.False(t, RoleRegisteredUser.Outranks(RoleRegisteredUser))
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "moderator", RoleModerator.String())
	assert.Equal(t, "owner", RoleOwner.String())
}
