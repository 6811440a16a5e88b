package policy

import (
	"context"

	"github.com/diewo77/go-club/internal/models"
)

// ResourceIntro is the resource type of intro permissions.
const ResourceIntro = "intro"

// Profile is the set of permissions granted to a role.
type Profile struct {
	Name        string
	Permissions []Permission
}

// HasPermission checks requested against the profile, with wildcards.
func (p Profile) HasPermission(requested Permission) bool {
	for _, perm := range p.Permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// DefaultProfiles grants moderators intro editing and gods everything.
// Members get nothing beyond ownership.
func DefaultProfiles() map[models.Role]Profile {
	return map[models.Role]Profile{
		models.RoleMember:    {Name: "member"},
		models.RoleModerator: {Name: "moderator", Permissions: []Permission{
			NewPermission(ResourceIntro, ActionView),
			NewPermission(ResourceIntro, ActionUpdate),
		}},
		models.RoleGod: {Name: "god", Permissions: []Permission{PermissionSuperAdmin}},
	}
}

// Gate combines role permissions with an ownership rule: the owner of a
// resource passes without any permission.
type Gate struct {
	profiles map[models.Role]Profile
}

// NewGate builds a gate over profiles, or DefaultProfiles when nil.
func NewGate(profiles map[models.Role]Profile) *Gate {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Gate{profiles: profiles}
}

// Authorize checks that actor may perform action on owner's intro.
func (g *Gate) Authorize(_ context.Context, actor *models.User, action Action, owner *models.User) error {
	if actor == nil || actor.ID == 0 {
		return ErrForbidden
	}
	if owner != nil && owner.ID == actor.ID {
		return nil
	}
	profile, ok := g.profiles[actor.Role]
	if !ok || !profile.HasPermission(NewPermission(ResourceIntro, action)) {
		return ErrForbidden
	}
	return nil
}
