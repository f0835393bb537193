package workspace

import "errors"

// Sentinel errors for the membership and role-transition operations.
// Handlers map these onto HTTP status codes and machine-readable codes.
var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrNotAMember        = errors.New("you are not a member of this workspace")
	ErrTargetNotAMember  = errors.New("target user is not a member of this workspace")
	ErrRoleNotFound      = errors.New("role not found")

	ErrInvalidInviteCode  = errors.New("invalid invite code")
	ErrInviteCodeInactive = errors.New("invite code is not active")
	ErrInviteCodeExpired  = errors.New("invite code has expired")
	ErrAlreadyMember      = errors.New("you are already a member of this workspace")

	ErrInsufficientRole  = errors.New("insufficient role for this action")
	ErrOwnerNotRemovable = errors.New("workspace owner cannot be removed")
	ErrOwnerCannotLeave  = errors.New("owner must transfer ownership before leaving the workspace")

	ErrNotOwner            = errors.New("only the workspace owner can perform this action")
	ErrIneligibleNewOwner  = errors.New("ownership can only be transferred to an admin or co-owner")
	ErrTransferNotVerified = errors.New("ownership transfer verification failed")

	ErrNotAcknowledged     = errors.New("promotion to co-owner requires explicit acknowledgement")
	ErrAlreadyPrivileged   = errors.New("target already holds owner or co-owner role")
	ErrCoOwnerViaPromotion = errors.New("co-owner role must be granted through the promotion endpoint")
	ErrOwnerViaTransfer    = errors.New("owner role must be granted through ownership transfer")
	ErrUnknownRole         = errors.New("unknown role name")
)
