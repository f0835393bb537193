package models

import "time"

// RoleName identifies one of the four workspace roles.
type RoleName string

const (
	RoleOwner   RoleName = "OWNER"
	RoleCoOwner RoleName = "CO_OWNER"
	RoleAdmin   RoleName = "ADMIN"
	RoleMember  RoleName = "MEMBER"
)

// Permission is a single capability granted by a role.
type Permission string

const (
	PermViewOnly                Permission = "VIEW_ONLY"
	PermCreateProject           Permission = "CREATE_PROJECT"
	PermEditProject             Permission = "EDIT_PROJECT"
	PermDeleteProject           Permission = "DELETE_PROJECT"
	PermCreateTask              Permission = "CREATE_TASK"
	PermEditTask                Permission = "EDIT_TASK"
	PermDeleteTask              Permission = "DELETE_TASK"
	PermAddMember               Permission = "ADD_MEMBER"
	PermRemoveMember            Permission = "REMOVE_MEMBER"
	PermChangeMemberRole        Permission = "CHANGE_MEMBER_ROLE"
	PermManageWorkspaceSettings Permission = "MANAGE_WORKSPACE_SETTINGS"
	PermDeleteWorkspace         Permission = "DELETE_WORKSPACE"
)

// Role is process-wide reference data, seeded once. The name and level are
// immutable; the permission set is configuration.
type Role struct {
	ID          string       `json:"id" db:"id"`
	Name        RoleName     `json:"name" db:"name"`
	Level       int          `json:"level" db:"level"`
	Permissions []Permission `json:"permissions" db:"permissions"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// DefaultRolePermissions is the seed permission configuration per role.
var DefaultRolePermissions = map[RoleName][]Permission{
	RoleOwner: {
		PermViewOnly,
		PermCreateProject, PermEditProject, PermDeleteProject,
		PermCreateTask, PermEditTask, PermDeleteTask,
		PermAddMember, PermRemoveMember, PermChangeMemberRole,
		PermManageWorkspaceSettings, PermDeleteWorkspace,
	},
	RoleCoOwner: {
		PermViewOnly,
		PermCreateProject, PermEditProject, PermDeleteProject,
		PermCreateTask, PermEditTask, PermDeleteTask,
		PermAddMember, PermRemoveMember, PermChangeMemberRole,
		PermManageWorkspaceSettings,
	},
	RoleAdmin: {
		PermViewOnly,
		PermCreateProject, PermEditProject,
		PermCreateTask, PermEditTask, PermDeleteTask,
		PermAddMember, PermRemoveMember, PermChangeMemberRole,
	},
	RoleMember: {
		PermViewOnly,
		PermCreateTask, PermEditTask,
	},
}

// RoleLevel maps a role name to its hierarchy level. Unknown roles map to 0
// so they can never modify anything and can always be modified.
func RoleLevel(name RoleName) int {
	switch name {
	case RoleOwner:
		return 4
	case RoleCoOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// CanModify reports whether a member holding the acting role is allowed to
// modify (remove, re-role) a member holding the target role.
//
// Rules:
//   - OWNER may modify anyone, including other owner-level state during a
//     transfer.
//   - MEMBER may modify nobody.
//   - Equal levels never modify one another, in either direction.
//   - Otherwise the acting role must be strictly higher than the target.
func CanModify(acting, target RoleName) bool {
	if acting == RoleOwner {
		return true
	}
	actingLevel := RoleLevel(acting)
	if actingLevel <= RoleLevel(RoleMember) {
		return false
	}
	return actingLevel > RoleLevel(target)
}

// HasPermission reports whether the role's permission set contains p.
func (r *Role) HasPermission(p Permission) bool {
	for _, have := range r.Permissions {
		if have == p {
			return true
		}
	}
	return false
}
