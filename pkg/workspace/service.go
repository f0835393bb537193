package workspace

import (
	"fmt"
	"sync"
	"time"

	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/models"
	"teamsync-backend/pkg/utils"
)

// Service orchestrates workspace membership and role transitions. Every
// operation takes the acting user explicitly; nothing here reads ambient
// session state.
type Service struct {
	db        database.DatabaseInterface
	inviteTTL time.Duration

	// Per-workspace locks serializing the multi-record ownership transfer.
	// Single-record mutations stay lock-free; only the three-write transfer
	// has a cross-record invariant to protect.
	transferMu   sync.Mutex
	transferLock map[string]*sync.Mutex
}

// NewService creates a workspace service.
func NewService(db database.DatabaseInterface, inviteTTL time.Duration) *Service {
	if inviteTTL <= 0 {
		inviteTTL = 7 * 24 * time.Hour
	}
	return &Service{
		db:           db,
		inviteTTL:    inviteTTL,
		transferLock: make(map[string]*sync.Mutex),
	}
}

// lockForTransfer returns the mutex serializing transfers on one workspace.
func (s *Service) lockForTransfer(workspaceID string) *sync.Mutex {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()
	mu, ok := s.transferLock[workspaceID]
	if !ok {
		mu = &sync.Mutex{}
		s.transferLock[workspaceID] = mu
	}
	return mu
}

// requireMember loads the acting user's membership or fails with ErrNotAMember.
func (s *Service) requireMember(workspaceID, userID string) (*models.Member, error) {
	member, err := s.db.GetMember(workspaceID, userID)
	if err != nil {
		return nil, ErrNotAMember
	}
	return member, nil
}

// requirePermission checks that the member's role grants the permission.
func (s *Service) requirePermission(member *models.Member, perm models.Permission) error {
	role, err := s.db.GetRoleByName(member.Role)
	if err != nil {
		return ErrRoleNotFound
	}
	if !role.HasPermission(perm) {
		return fmt.Errorf("%w: role %s lacks %s", ErrInsufficientRole, member.Role, perm)
	}
	return nil
}

// ================= Workspace lifecycle =================

// CreateWorkspace creates a workspace with the creator as its OWNER member
// and a fresh invite code.
func (s *Service) CreateWorkspace(creatorID, name, description string) (*models.Workspace, error) {
	code, err := utils.GenerateInviteCode(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	expires := time.Now().Add(s.inviteTTL)
	ws := &models.Workspace{
		Name:             name,
		Description:      description,
		OwnerID:          creatorID,
		InviteCode:       code,
		InviteCodeActive: true,
		InviteExpiresAt:  &expires,
	}
	if err := s.db.CreateWorkspace(ws); err != nil {
		return nil, err
	}

	member := &models.Member{
		WorkspaceID: ws.ID,
		UserID:      creatorID,
		Role:        models.RoleOwner,
	}
	if err := s.db.AddMember(member); err != nil {
		// Orphaned workspace is worse than a failed create
		_ = s.db.DeleteWorkspace(ws.ID)
		return nil, fmt.Errorf("failed to add creator as owner: %w", err)
	}

	return ws, nil
}

// GetWorkspace returns a workspace, gated on the caller's membership.
func (s *Service) GetWorkspace(workspaceID, userID string) (*models.Workspace, error) {
	if _, err := s.requireMember(workspaceID, userID); err != nil {
		return nil, err
	}
	ws, err := s.db.GetWorkspace(workspaceID)
	if err != nil {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

// ListUserWorkspaces returns every workspace the user belongs to.
func (s *Service) ListUserWorkspaces(userID string) ([]models.Workspace, error) {
	return s.db.ListUserWorkspaces(userID)
}

// UpdateWorkspace updates name/description. Requires the settings permission.
func (s *Service) UpdateWorkspace(workspaceID, actorID, name, description string) (*models.Workspace, error) {
	member, err := s.requireMember(workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePermission(member, models.PermManageWorkspaceSettings); err != nil {
		return nil, err
	}

	ws, err := s.db.GetWorkspace(workspaceID)
	if err != nil {
		return nil, ErrWorkspaceNotFound
	}
	if name != "" {
		ws.Name = name
	}
	ws.Description = description
	if err := s.db.UpdateWorkspace(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// DeleteWorkspace deletes a workspace and everything in it. Owner only.
func (s *Service) DeleteWorkspace(workspaceID, actorID string) error {
	ws, err := s.db.GetWorkspace(workspaceID)
	if err != nil {
		return ErrWorkspaceNotFound
	}
	if ws.OwnerID != actorID {
		return ErrNotOwner
	}
	if err := s.db.ClearCurrentWorkspaceRefs(workspaceID); err != nil {
		return err
	}
	return s.db.DeleteWorkspace(workspaceID)
}

// ResetInviteCode replaces the invite code and restarts its expiry window.
// Requires the settings permission.
func (s *Service) ResetInviteCode(workspaceID, actorID string) (*models.Workspace, error) {
	member, err := s.requireMember(workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePermission(member, models.PermManageWorkspaceSettings); err != nil {
		return nil, err
	}

	ws, err := s.db.GetWorkspace(workspaceID)
	if err != nil {
		return nil, ErrWorkspaceNotFound
	}
	code, err := utils.GenerateInviteCode(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}
	expires := time.Now().Add(s.inviteTTL)
	ws.InviteCode = code
	ws.InviteCodeActive = true
	ws.InviteExpiresAt = &expires
	if err := s.db.UpdateWorkspace(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// ================= Membership =================

// JoinByInviteCode redeems an invite code, creating a MEMBER record. A second
// redemption by the same user is a bad request, not a duplicate member.
func (s *Service) JoinByInviteCode(code, userID string) (*models.Workspace, error) {
	ws, err := s.db.GetWorkspaceByInviteCode(code)
	if err != nil {
		return nil, ErrInvalidInviteCode
	}
	if !ws.InviteCodeActive {
		return nil, ErrInviteCodeInactive
	}
	if ws.InviteExpiresAt != nil && time.Now().After(*ws.InviteExpiresAt) {
		return nil, ErrInviteCodeExpired
	}

	if _, err := s.db.GetMember(ws.ID, userID); err == nil {
		return nil, ErrAlreadyMember
	}

	member := &models.Member{
		WorkspaceID: ws.ID,
		UserID:      userID,
		Role:        models.RoleMember,
	}
	if err := s.db.AddMember(member); err != nil {
		return nil, err
	}
	return ws, nil
}

// ListMembers returns all members with their user details.
func (s *Service) ListMembers(workspaceID, userID string) ([]models.MemberWithUser, error) {
	if _, err := s.requireMember(workspaceID, userID); err != nil {
		return nil, err
	}
	return s.db.ListWorkspaceMembers(workspaceID)
}

// RemoveMember deletes the target's membership. Owners can never be removed;
// otherwise the acting role must outrank the target per CanModify.
func (s *Service) RemoveMember(workspaceID, targetUserID, actingUserID string) error {
	acting, err := s.requireMember(workspaceID, actingUserID)
	if err != nil {
		return err
	}
	target, err := s.db.GetMember(workspaceID, targetUserID)
	if err != nil {
		return ErrTargetNotAMember
	}

	if target.Role == models.RoleOwner {
		return ErrOwnerNotRemovable
	}
	if !models.CanModify(acting.Role, target.Role) {
		return fmt.Errorf("%w: %s cannot remove %s", ErrInsufficientRole, acting.Role, target.Role)
	}

	return s.db.DeleteMember(workspaceID, targetUserID)
}

// LeaveWorkspace removes the caller's own membership. The owner must
// transfer ownership first.
func (s *Service) LeaveWorkspace(workspaceID, userID string) error {
	member, err := s.requireMember(workspaceID, userID)
	if err != nil {
		return err
	}
	if member.Role == models.RoleOwner {
		return ErrOwnerCannotLeave
	}

	if err := s.db.DeleteMember(workspaceID, userID); err != nil {
		return err
	}

	// Clear the user's current-workspace pointer if it referenced this one
	user, err := s.db.GetUserByID(userID)
	if err == nil && user.CurrentWorkspaceID != nil && *user.CurrentWorkspaceID == workspaceID {
		if err := s.db.SetCurrentWorkspace(userID, nil); err != nil {
			fmt.Printf("⚠️ Failed to clear current workspace for user %s: %v\n", userID, err)
		}
	}
	return nil
}

// ================= Role transitions =================

// TransferOwnership moves ownership to an existing admin or co-owner. The
// three dependent writes are serialized per workspace, then re-read and
// verified; on failure the original values are restored best-effort and the
// original error is returned.
func (s *Service) TransferOwnership(workspaceID, newOwnerID, currentUserID string) error {
	mu := s.lockForTransfer(workspaceID)
	mu.Lock()
	defer mu.Unlock()

	ws, err := s.db.GetWorkspace(workspaceID)
	if err != nil {
		return ErrWorkspaceNotFound
	}

	current, err := s.requireMember(workspaceID, currentUserID)
	if err != nil {
		return err
	}
	if current.Role != models.RoleOwner || ws.OwnerID != currentUserID {
		return ErrNotOwner
	}

	next, err := s.db.GetMember(workspaceID, newOwnerID)
	if err != nil {
		return ErrTargetNotAMember
	}
	if next.Role != models.RoleAdmin && next.Role != models.RoleCoOwner {
		return ErrIneligibleNewOwner
	}

	prevOwnerID := ws.OwnerID
	prevCurrentRole := current.Role
	prevNextRole := next.Role

	transferErr := s.applyTransfer(workspaceID, newOwnerID, currentUserID)
	if transferErr == nil {
		transferErr = s.verifyTransfer(workspaceID, newOwnerID, currentUserID)
	}
	if transferErr == nil {
		return nil
	}

	// Best-effort rollback; its own failures are logged, never surfaced.
	if err := s.db.UpdateWorkspaceOwner(workspaceID, prevOwnerID); err != nil {
		fmt.Printf("⚠️ Ownership transfer rollback failed (workspace %s owner): %v\n", workspaceID, err)
	}
	if err := s.db.UpdateMemberRole(workspaceID, currentUserID, prevCurrentRole); err != nil {
		fmt.Printf("⚠️ Ownership transfer rollback failed (member %s): %v\n", currentUserID, err)
	}
	if err := s.db.UpdateMemberRole(workspaceID, newOwnerID, prevNextRole); err != nil {
		fmt.Printf("⚠️ Ownership transfer rollback failed (member %s): %v\n", newOwnerID, err)
	}

	return transferErr
}

// applyTransfer issues the three dependent writes.
func (s *Service) applyTransfer(workspaceID, newOwnerID, oldOwnerID string) error {
	if err := s.db.UpdateWorkspaceOwner(workspaceID, newOwnerID); err != nil {
		return fmt.Errorf("failed to update workspace owner: %w", err)
	}
	if err := s.db.UpdateMemberRole(workspaceID, newOwnerID, models.RoleOwner); err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}
	if err := s.db.UpdateMemberRole(workspaceID, oldOwnerID, models.RoleMember); err != nil {
		return fmt.Errorf("failed to demote previous owner: %w", err)
	}
	return nil
}

// verifyTransfer re-reads all three records and checks the end state.
func (s *Service) verifyTransfer(workspaceID, newOwnerID, oldOwnerID string) error {
	ws, err := s.db.GetWorkspace(workspaceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotVerified, err)
	}
	newOwner, err := s.db.GetMember(workspaceID, newOwnerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotVerified, err)
	}
	oldOwner, err := s.db.GetMember(workspaceID, oldOwnerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotVerified, err)
	}

	if ws.OwnerID != newOwnerID || newOwner.Role != models.RoleOwner || oldOwner.Role != models.RoleMember {
		return fmt.Errorf("%w: owner=%s newOwnerRole=%s oldOwnerRole=%s",
			ErrTransferNotVerified, ws.OwnerID, newOwner.Role, oldOwner.Role)
	}
	return nil
}

// PromoteToCoOwner grants CO_OWNER to a member. Owner only, and the caller
// must have passed the acknowledgement gate.
func (s *Service) PromoteToCoOwner(workspaceID, targetUserID, actingUserID string, acknowledged bool) error {
	acting, err := s.requireMember(workspaceID, actingUserID)
	if err != nil {
		return err
	}
	if acting.Role != models.RoleOwner {
		return ErrNotOwner
	}
	if !acknowledged {
		return ErrNotAcknowledged
	}

	target, err := s.db.GetMember(workspaceID, targetUserID)
	if err != nil {
		return ErrTargetNotAMember
	}
	if target.Role == models.RoleOwner || target.Role == models.RoleCoOwner {
		return ErrAlreadyPrivileged
	}

	return s.db.UpdateMemberRole(workspaceID, targetUserID, models.RoleCoOwner)
}

// ChangeMemberRole changes a member's role. Both the target's current role
// and the destination role must be within the actor's authority. CO_OWNER
// and OWNER destinations are rejected; those grants have dedicated paths.
func (s *Service) ChangeMemberRole(workspaceID, targetUserID string, newRole models.RoleName, actingUserID string) error {
	switch newRole {
	case models.RoleCoOwner:
		return ErrCoOwnerViaPromotion
	case models.RoleOwner:
		return ErrOwnerViaTransfer
	case models.RoleAdmin, models.RoleMember:
	default:
		return ErrUnknownRole
	}

	// Seed-data integrity: the destination role must exist in the store
	if _, err := s.db.GetRoleByName(newRole); err != nil {
		return ErrRoleNotFound
	}

	acting, err := s.requireMember(workspaceID, actingUserID)
	if err != nil {
		return err
	}
	target, err := s.db.GetMember(workspaceID, targetUserID)
	if err != nil {
		return ErrTargetNotAMember
	}

	if !models.CanModify(acting.Role, target.Role) {
		return fmt.Errorf("%w: %s cannot modify %s", ErrInsufficientRole, acting.Role, target.Role)
	}
	if !models.CanModify(acting.Role, newRole) {
		return fmt.Errorf("%w: %s cannot assign %s", ErrInsufficientRole, acting.Role, newRole)
	}

	return s.db.UpdateMemberRole(workspaceID, targetUserID, newRole)
}

// SetCurrentWorkspace points the user's current-workspace marker at a
// workspace they belong to.
func (s *Service) SetCurrentWorkspace(userID, workspaceID string) error {
	if _, err := s.requireMember(workspaceID, userID); err != nil {
		return err
	}
	return s.db.SetCurrentWorkspace(userID, &workspaceID)
}
