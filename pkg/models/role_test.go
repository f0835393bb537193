package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleLevel(t *testing.T) {
	assert.Equal(t, 4, RoleLevel(RoleOwner))
	assert.Equal(t, 3, RoleLevel(RoleCoOwner))
	assert.Equal(t, 2, RoleLevel(RoleAdmin))
	assert.Equal(t, 1, RoleLevel(RoleMember))
	assert.Equal(t, 0, RoleLevel(RoleName("INTERN")))
	assert.Equal(t, 0, RoleLevel(RoleName("")))
}

// Every role pair: true iff the actor is OWNER, or the actor's level is
// strictly higher than the target's. Equal levels and MEMBER actors always
// fail.
func TestCanModifyAllPairs(t *testing.T) {
	roles := []RoleName{RoleOwner, RoleCoOwner, RoleAdmin, RoleMember}

	for _, actor := range roles {
		for _, target := range roles {
			want := actor == RoleOwner ||
				(RoleLevel(actor) > RoleLevel(RoleMember) && RoleLevel(actor) > RoleLevel(target))
			got := CanModify(actor, target)
			assert.Equalf(t, want, got, "CanModify(%s, %s)", actor, target)
		}
	}
}

func TestCanModifySpecificRules(t *testing.T) {
	// Owner modifies anyone, including another owner-level record
	assert.True(t, CanModify(RoleOwner, RoleOwner))
	assert.True(t, CanModify(RoleOwner, RoleCoOwner))

	// Equal levels never modify one another
	assert.False(t, CanModify(RoleCoOwner, RoleCoOwner))
	assert.False(t, CanModify(RoleAdmin, RoleAdmin))

	// Member modifies nobody
	assert.False(t, CanModify(RoleMember, RoleMember))
	assert.False(t, CanModify(RoleMember, RoleAdmin))

	// Strictly-higher wins
	assert.True(t, CanModify(RoleCoOwner, RoleAdmin))
	assert.True(t, CanModify(RoleCoOwner, RoleMember))
	assert.True(t, CanModify(RoleAdmin, RoleMember))

	// Lower never modifies higher
	assert.False(t, CanModify(RoleAdmin, RoleCoOwner))
	assert.False(t, CanModify(RoleCoOwner, RoleOwner))

	// Unknown roles can never act but can always be acted upon
	assert.False(t, CanModify(RoleName("GUEST"), RoleMember))
	assert.True(t, CanModify(RoleAdmin, RoleName("GUEST")))
}

func TestHasPermission(t *testing.T) {
	role := Role{
		Name:        RoleAdmin,
		Level:       2,
		Permissions: DefaultRolePermissions[RoleAdmin],
	}
	assert.True(t, role.HasPermission(PermCreateProject))
	assert.True(t, role.HasPermission(PermChangeMemberRole))
	assert.False(t, role.HasPermission(PermDeleteWorkspace))
	assert.False(t, role.HasPermission(PermManageWorkspaceSettings))
}

func TestDefaultRolePermissionsShape(t *testing.T) {
	// Only OWNER may delete the workspace
	for name, perms := range DefaultRolePermissions {
		role := Role{Name: name, Permissions: perms}
		if name == RoleOwner {
			assert.True(t, role.HasPermission(PermDeleteWorkspace))
		} else {
			assert.Falsef(t, role.HasPermission(PermDeleteWorkspace), "role %s", name)
		}
	}
}
