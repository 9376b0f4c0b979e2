package domain

import "fmt"

// Permission names, as used by the Room engine's permission map and by
// promoteUser's promote/demote checks.
const (
	PermPlaybackPlayPause     = "playback.play-pause"
	PermPlaybackSkip          = "playback.skip"
	PermPlaybackSeek          = "playback.seek"
	PermManageQueueAdd        = "manage-queue.add"
	PermManageQueueRemove     = "manage-queue.remove"
	PermManageQueueOrder      = "manage-queue.order"
	PermManageQueueVote       = "manage-queue.vote"
	PermChat                  = "chat"
	PermPromoteAdmin          = "manage-users.promote-admin"
	PermPromoteModerator      = "manage-users.promote-moderator"
	PermPromoteTrustedUser    = "manage-users.promote-trusted-user"
	PermDemoteAdmin           = "manage-users.demote-admin"
	PermDemoteModerator       = "manage-users.demote-moderator"
	PermDemoteTrustedUser     = "manage-users.demote-trusted-user"
)

// permissionBits enumerates every known permission name to a stable bit
// position, so a role's grant set can be stored as a single integer mask.
var permissionBits = map[string]uint64{
	PermPlaybackPlayPause:  1 << 0,
	PermPlaybackSkip:       1 << 1,
	PermPlaybackSeek:       1 << 2,
	PermManageQueueAdd:     1 << 3,
	PermManageQueueRemove:  1 << 4,
	PermManageQueueOrder:   1 << 5,
	PermManageQueueVote:    1 << 6,
	PermChat:               1 << 7,
	PermPromoteAdmin:       1 << 8,
	PermPromoteModerator:   1 << 9,
	PermPromoteTrustedUser: 1 << 10,
	PermDemoteAdmin:        1 << 11,
	PermDemoteModerator:    1 << 12,
	PermDemoteTrustedUser:  1 << 13,
}

// allBitsMask is every bit Owner implicitly holds.
var allBitsMask = func() uint64 {
	var m uint64
	for _, b := range permissionBits {
		m |= b
	}
	return m
}()

// defaultMasks are the out-of-the-box grants for a freshly created room,
// roughly: registered users can chat, vote and add to the queue; trusted users can manage
// the queue and playback; moderators can promote/demote trusted users;
// administrators can promote/demote moderators.
var defaultMasks = map[Role]uint64{
	RoleUnregisteredUser: bitsFor(PermChat),
	RoleRegisteredUser:   bitsFor(PermChat, PermManageQueueVote, PermManageQueueAdd),
	RoleTrustedUser: bitsFor(
		PermChat, PermManageQueueVote, PermManageQueueAdd, PermManageQueueRemove,
		PermManageQueueOrder, PermPlaybackPlayPause, PermPlaybackSkip, PermPlaybackSeek,
	),
	RoleModerator: bitsFor(
		PermChat, PermManageQueueVote, PermManageQueueAdd, PermManageQueueRemove,
		PermManageQueueOrder, PermPlaybackPlayPause, PermPlaybackSkip, PermPlaybackSeek,
		PermPromoteTrustedUser, PermDemoteTrustedUser,
	),
	RoleAdministrator: bitsFor(
		PermChat, PermManageQueueVote, PermManageQueueAdd, PermManageQueueRemove,
		PermManageQueueOrder, PermPlaybackPlayPause, PermPlaybackSkip, PermPlaybackSeek,
		PermPromoteTrustedUser, PermDemoteTrustedUser, PermPromoteModerator, PermDemoteModerator,
	),
}

func bitsFor(names ...string) uint64 {
	var m uint64
	for _, n := range names {
		m |= permissionBits[n]
	}
	return m
}

// Grants stores a permission bitmask per role and checks membership.
type Grants struct {
	masks map[Role]uint64
}

// NewDefaultGrants returns a Grants seeded with the default per-role
// permission sets. Owner always has every permission, regardless of mask.
func NewDefaultGrants() *Grants {
	masks := make(map[Role]uint64, len(defaultMasks))
	for role, mask := range defaultMasks {
		masks[role] = mask
	}
	return &Grants{masks: masks}
}

// Check reports whether role holds permission, returning ErrPermissionDenied
// if not.
func (g *Grants) Check(role Role, permission string) error {
	if role == RoleOwner {
		return nil
	}
	bit, ok := permissionBits[permission]
	if !ok {
		return fmt.Errorf("unknown permission %q", permission)
	}
	if g.masks[role]&bit == 0 {
		return ErrPermissionDenied
	}
	return nil
}

// GetMask returns the serializable mask for role, used only for outgoing
// sync payloads (grants.getMask(Owner) per the sync spec).
func (g *Grants) GetMask(role Role) uint64 {
	if role == RoleOwner {
		return allBitsMask
	}
	return g.masks[role]
}

// SetAllGrants replaces every role's mask with other's.
func (g *Grants) SetAllGrants(other *Grants) {
	masks := make(map[Role]uint64, len(other.masks))
	for role, mask := range other.masks {
		masks[role] = mask
	}
	g.masks = masks
}
