package workspace

import (
	"errors"
	"testing"
	"time"

	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, database.DatabaseInterface) {
	t.Helper()
	db := database.NewMemoryDatabase()
	return NewService(db, 7*24*time.Hour), db
}

func createUser(t *testing.T, db database.DatabaseInterface, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email}
	require.NoError(t, db.CreateUser(u))
	return u
}

// fixture: workspace with owner, co-owner, admin, and member
type fixture struct {
	svc     *Service
	db      database.DatabaseInterface
	ws      *models.Workspace
	owner   *models.User
	coOwner *models.User
	admin   *models.User
	member  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc, db := newTestService(t)

	owner := createUser(t, db, "owner@example.com")
	coOwner := createUser(t, db, "coowner@example.com")
	admin := createUser(t, db, "admin@example.com")
	member := createUser(t, db, "member@example.com")

	ws, err := svc.CreateWorkspace(owner.ID, "Acme", "test workspace")
	require.NoError(t, err)

	for _, u := range []*models.User{coOwner, admin, member} {
		_, err := svc.JoinByInviteCode(ws.InviteCode, u.ID)
		require.NoError(t, err)
	}
	require.NoError(t, db.UpdateMemberRole(ws.ID, coOwner.ID, models.RoleCoOwner))
	require.NoError(t, db.UpdateMemberRole(ws.ID, admin.ID, models.RoleAdmin))

	return &fixture{svc: svc, db: db, ws: ws, owner: owner, coOwner: coOwner, admin: admin, member: member}
}

func (f *fixture) role(t *testing.T, userID string) models.RoleName {
	t.Helper()
	m, err := f.db.GetMember(f.ws.ID, userID)
	require.NoError(t, err)
	return m.Role
}

func TestCreateWorkspace(t *testing.T) {
	svc, db := newTestService(t)
	owner := createUser(t, db, "owner@example.com")

	ws, err := svc.CreateWorkspace(owner.ID, "Acme", "desc")
	require.NoError(t, err)
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, owner.ID, ws.OwnerID)
	assert.NotEmpty(t, ws.InviteCode)
	assert.True(t, ws.InviteCodeActive)
	require.NotNil(t, ws.InviteExpiresAt)
	assert.True(t, ws.InviteExpiresAt.After(time.Now()))

	m, err := db.GetMember(ws.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}

func TestJoinByInviteCode(t *testing.T) {
	svc, db := newTestService(t)
	owner := createUser(t, db, "owner@example.com")
	joiner := createUser(t, db, "joiner@example.com")

	ws, err := svc.CreateWorkspace(owner.ID, "Acme", "")
	require.NoError(t, err)

	joined, err := svc.JoinByInviteCode(ws.InviteCode, joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, joined.ID)

	m, err := db.GetMember(ws.ID, joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	// Second redemption is a bad request, not a duplicate member
	_, err = svc.JoinByInviteCode(ws.InviteCode, joiner.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	members, err := db.ListWorkspaceMembers(ws.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestJoinByInviteCodeRejectsBadCodes(t *testing.T) {
	svc, db := newTestService(t)
	owner := createUser(t, db, "owner@example.com")
	joiner := createUser(t, db, "joiner@example.com")

	ws, err := svc.CreateWorkspace(owner.ID, "Acme", "")
	require.NoError(t, err)

	_, err = svc.JoinByInviteCode("NOSUCHCODE", joiner.ID)
	assert.ErrorIs(t, err, ErrInvalidInviteCode)

	ws.InviteCodeActive = false
	require.NoError(t, db.UpdateWorkspace(ws))
	_, err = svc.JoinByInviteCode(ws.InviteCode, joiner.ID)
	assert.ErrorIs(t, err, ErrInviteCodeInactive)

	past := time.Now().Add(-time.Hour)
	ws.InviteCodeActive = true
	ws.InviteExpiresAt = &past
	require.NoError(t, db.UpdateWorkspace(ws))
	_, err = svc.JoinByInviteCode(ws.InviteCode, joiner.ID)
	assert.ErrorIs(t, err, ErrInviteCodeExpired)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)

	// Owner can never be removed, regardless of actor
	err := f.svc.RemoveMember(f.ws.ID, f.owner.ID, f.coOwner.ID)
	assert.ErrorIs(t, err, ErrOwnerNotRemovable)
	err = f.svc.RemoveMember(f.ws.ID, f.owner.ID, f.owner.ID)
	assert.ErrorIs(t, err, ErrOwnerNotRemovable)

	// Member cannot remove anyone
	err = f.svc.RemoveMember(f.ws.ID, f.admin.ID, f.member.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	// Admin cannot remove co-owner (higher level)
	err = f.svc.RemoveMember(f.ws.ID, f.coOwner.ID, f.admin.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	// Co-owner removes admin (strictly lower)
	require.NoError(t, f.svc.RemoveMember(f.ws.ID, f.admin.ID, f.coOwner.ID))
	_, err = f.db.GetMember(f.ws.ID, f.admin.ID)
	assert.Error(t, err)

	// Owner removes co-owner
	require.NoError(t, f.svc.RemoveMember(f.ws.ID, f.coOwner.ID, f.owner.ID))
}

func TestRemoveMemberEqualLevelBlocked(t *testing.T) {
	f := newFixture(t)
	second := createUser(t, f.db, "coowner2@example.com")
	_, err := f.svc.JoinByInviteCode(f.ws.InviteCode, second.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.UpdateMemberRole(f.ws.ID, second.ID, models.RoleCoOwner))

	// A fellow co-owner must fail to remove a co-owner
	err = f.svc.RemoveMember(f.ws.ID, f.coOwner.ID, second.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)
}

func TestLeaveWorkspace(t *testing.T) {
	f := newFixture(t)

	// Owner must transfer first
	err := f.svc.LeaveWorkspace(f.ws.ID, f.owner.ID)
	assert.ErrorIs(t, err, ErrOwnerCannotLeave)

	// Member leaves; their current-workspace pointer is cleared
	require.NoError(t, f.db.SetCurrentWorkspace(f.member.ID, &f.ws.ID))
	require.NoError(t, f.svc.LeaveWorkspace(f.ws.ID, f.member.ID))

	_, err = f.db.GetMember(f.ws.ID, f.member.ID)
	assert.Error(t, err)
	u, err := f.db.GetUserByID(f.member.ID)
	require.NoError(t, err)
	assert.Nil(t, u.CurrentWorkspaceID)

	// Not a member anymore
	err = f.svc.LeaveWorkspace(f.ws.ID, f.member.ID)
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.TransferOwnership(f.ws.ID, f.admin.ID, f.owner.ID))

	ws, err := f.db.GetWorkspace(f.ws.ID)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, ws.OwnerID)
	assert.Equal(t, models.RoleOwner, f.role(t, f.admin.ID))
	assert.Equal(t, models.RoleMember, f.role(t, f.owner.ID))

	// Exactly one OWNER remains
	members, err := f.db.ListWorkspaceMembers(f.ws.ID)
	require.NoError(t, err)
	owners := 0
	for _, m := range members {
		if m.Role == models.RoleOwner {
			owners++
			assert.Equal(t, ws.OwnerID, m.UserID)
		}
	}
	assert.Equal(t, 1, owners)
}

func TestTransferOwnershipEligibility(t *testing.T) {
	f := newFixture(t)

	// Only the owner may transfer
	err := f.svc.TransferOwnership(f.ws.ID, f.admin.ID, f.coOwner.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	// A MEMBER cannot receive ownership directly
	err = f.svc.TransferOwnership(f.ws.ID, f.member.ID, f.owner.ID)
	assert.ErrorIs(t, err, ErrIneligibleNewOwner)

	// Target must be a member at all
	outsider := createUser(t, f.db, "outsider@example.com")
	err = f.svc.TransferOwnership(f.ws.ID, outsider.ID, f.owner.ID)
	assert.ErrorIs(t, err, ErrTargetNotAMember)

	// Co-owner is eligible
	require.NoError(t, f.svc.TransferOwnership(f.ws.ID, f.coOwner.ID, f.owner.ID))
}

// failingDB wraps the store and fails a chosen write to exercise rollback.
type failingDB struct {
	database.DatabaseInterface
	failRoleUpdateFor string
	calls             int
}

func (f *failingDB) UpdateMemberRole(workspaceID, userID string, role models.RoleName) error {
	f.calls++
	if userID == f.failRoleUpdateFor && f.calls <= 1 {
		return errors.New("simulated write failure")
	}
	return f.DatabaseInterface.UpdateMemberRole(workspaceID, userID, role)
}

func TestTransferOwnershipRollback(t *testing.T) {
	f := newFixture(t)

	// First role write (promoting the new owner) fails; the workspace owner
	// write already happened and must be rolled back.
	wrapped := &failingDB{DatabaseInterface: f.db, failRoleUpdateFor: f.admin.ID}
	svc := NewService(wrapped, 7*24*time.Hour)

	err := svc.TransferOwnership(f.ws.ID, f.admin.ID, f.owner.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated write failure")

	// Pre-transfer state restored
	ws, werr := f.db.GetWorkspace(f.ws.ID)
	require.NoError(t, werr)
	assert.Equal(t, f.owner.ID, ws.OwnerID)
	assert.Equal(t, models.RoleOwner, f.role(t, f.owner.ID))
	assert.Equal(t, models.RoleAdmin, f.role(t, f.admin.ID))
}

func TestPromoteToCoOwner(t *testing.T) {
	f := newFixture(t)

	// Only the owner may promote
	err := f.svc.PromoteToCoOwner(f.ws.ID, f.member.ID, f.coOwner.ID, true)
	assert.ErrorIs(t, err, ErrNotOwner)

	// The acknowledgement gate is mandatory
	err = f.svc.PromoteToCoOwner(f.ws.ID, f.member.ID, f.owner.ID, false)
	assert.ErrorIs(t, err, ErrNotAcknowledged)

	// Target must not already hold OWNER or CO_OWNER
	err = f.svc.PromoteToCoOwner(f.ws.ID, f.coOwner.ID, f.owner.ID, true)
	assert.ErrorIs(t, err, ErrAlreadyPrivileged)
	err = f.svc.PromoteToCoOwner(f.ws.ID, f.owner.ID, f.owner.ID, true)
	assert.ErrorIs(t, err, ErrAlreadyPrivileged)

	require.NoError(t, f.svc.PromoteToCoOwner(f.ws.ID, f.member.ID, f.owner.ID, true))
	assert.Equal(t, models.RoleCoOwner, f.role(t, f.member.ID))

	// Promoted member is now untouchable by a fellow co-owner
	err = f.svc.RemoveMember(f.ws.ID, f.member.ID, f.coOwner.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)
	// But the owner still outranks them
	require.NoError(t, f.svc.RemoveMember(f.ws.ID, f.member.ID, f.owner.ID))
}

func TestChangeMemberRole(t *testing.T) {
	f := newFixture(t)

	// CO_OWNER must go through the promotion endpoint
	err := f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleCoOwner, f.owner.ID)
	assert.ErrorIs(t, err, ErrCoOwnerViaPromotion)

	// OWNER must go through ownership transfer
	err = f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleOwner, f.owner.ID)
	assert.ErrorIs(t, err, ErrOwnerViaTransfer)

	// Unknown destination role
	err = f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleName("GUEST"), f.owner.ID)
	assert.ErrorIs(t, err, ErrUnknownRole)

	// An admin cannot assign ADMIN: the destination equals their own level
	err = f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleAdmin, f.admin.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	// The owner can
	require.NoError(t, f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleAdmin, f.owner.ID))
	assert.Equal(t, models.RoleAdmin, f.role(t, f.member.ID))

	// An admin cannot touch a fellow admin's role at all
	err = f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleMember, f.admin.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	// A co-owner can demote an admin back to MEMBER
	require.NoError(t, f.svc.ChangeMemberRole(f.ws.ID, f.member.ID, models.RoleMember, f.coOwner.ID))
	assert.Equal(t, models.RoleMember, f.role(t, f.member.ID))
}

func TestDeleteWorkspace(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteWorkspace(f.ws.ID, f.coOwner.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, f.db.SetCurrentWorkspace(f.member.ID, &f.ws.ID))
	require.NoError(t, f.svc.DeleteWorkspace(f.ws.ID, f.owner.ID))

	_, err = f.db.GetWorkspace(f.ws.ID)
	assert.Error(t, err)
	u, err := f.db.GetUserByID(f.member.ID)
	require.NoError(t, err)
	assert.Nil(t, u.CurrentWorkspaceID)
}

func TestResetInviteCode(t *testing.T) {
	f := newFixture(t)

	// A plain member lacks the settings permission
	_, err := f.svc.ResetInviteCode(f.ws.ID, f.member.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	old := f.ws.InviteCode
	ws, err := f.svc.ResetInviteCode(f.ws.ID, f.owner.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, ws.InviteCode)
	assert.True(t, ws.InviteCodeActive)

	// The old code no longer works
	outsider := createUser(t, f.db, "late@example.com")
	_, err = f.svc.JoinByInviteCode(old, outsider.ID)
	assert.ErrorIs(t, err, ErrInvalidInviteCode)
	_, err = f.svc.JoinByInviteCode(ws.InviteCode, outsider.ID)
	require.NoError(t, err)
}
