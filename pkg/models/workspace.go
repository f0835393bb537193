package models

import "time"

// Workspace represents a collaborative tenant scoping members, projects and chat.
// Invariant: OwnerID always equals the user currently holding the OWNER
// membership in this workspace. The transition service keeps the two in sync.
type Workspace struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Description      string     `json:"description,omitempty" db:"description"`
	OwnerID          string     `json:"owner_id" db:"owner_id"`
	InviteCode       string     `json:"invite_code" db:"invite_code"`
	InviteCodeActive bool       `json:"invite_code_active" db:"invite_code_active"`
	InviteExpiresAt  *time.Time `json:"invite_expires_at,omitempty" db:"invite_expires_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Member relates a user to a workspace with an assigned role.
// Exactly one Member record exists per (user, workspace) pair, and exactly
// one Member per workspace holds RoleOwner at any time.
type Member struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Role        RoleName  `json:"role" db:"role"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
}

// MemberWithUser is a Member joined with the user's display fields,
// used by the member-list endpoint.
type MemberWithUser struct {
	Member
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}
