package database

import (
	"fmt"
	"testing"
	"time"

	"teamsync-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWorkspace(t *testing.T, db *MemoryDatabase) (*models.User, *models.Workspace) {
	t.Helper()
	u := &models.User{Email: "owner@example.com", Name: "Owner"}
	require.NoError(t, db.CreateUser(u))
	ws := &models.Workspace{Name: "Acme", OwnerID: u.ID, InviteCode: "CODE1234", InviteCodeActive: true}
	require.NoError(t, db.CreateWorkspace(ws))
	require.NoError(t, db.AddMember(&models.Member{WorkspaceID: ws.ID, UserID: u.ID, Role: models.RoleOwner}))
	return u, ws
}

func TestAddMemberRejectsDuplicates(t *testing.T) {
	db := NewMemoryDatabase()
	u, ws := seedWorkspace(t, db)

	err := db.AddMember(&models.Member{WorkspaceID: ws.ID, UserID: u.ID, Role: models.RoleMember})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member already exists")

	// Original record keeps its role
	m, err := db.GetMember(ws.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}

func TestGetUserByEmailCaseInsensitive(t *testing.T) {
	db := NewMemoryDatabase()
	u := &models.User{Email: "Mixed.Case@Example.com", Name: "M"}
	require.NoError(t, db.CreateUser(u))

	found, err := db.GetUserByEmail("mixed.case@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestDeleteWorkspaceCascades(t *testing.T) {
	db := NewMemoryDatabase()
	u, ws := seedWorkspace(t, db)

	project := &models.Project{WorkspaceID: ws.ID, Name: "Site", CreatedBy: u.ID}
	require.NoError(t, db.CreateProject(project))
	task := &models.Task{ProjectID: project.ID, WorkspaceID: ws.ID, Title: "Ship", Status: models.TaskStatusBacklog, Priority: models.TaskPriorityMedium, CreatedBy: u.ID}
	require.NoError(t, db.CreateTask(task))
	now := time.Now()
	require.NoError(t, db.SaveMessage(&models.Message{
		ID: "m1", WorkspaceID: ws.ID,
		Sender:    models.MessageSender{ID: u.ID},
		Text:      "hi",
		CreatedAt: now, ExpiresAt: now.Add(models.MessageTTL),
	}))

	require.NoError(t, db.DeleteWorkspace(ws.ID))

	_, err := db.GetWorkspace(ws.ID)
	assert.Error(t, err)
	_, err = db.GetMember(ws.ID, u.ID)
	assert.Error(t, err)
	projects, err := db.ListWorkspaceProjects(ws.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
	messages, err := db.ListRecentMessages(ws.ID, 100, time.Now())
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestListRecentMessagesWindow(t *testing.T) {
	db := NewMemoryDatabase()
	u, ws := seedWorkspace(t, db)

	base := time.Now().Add(-30 * time.Minute)
	for i := 0; i < 7; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.SaveMessage(&models.Message{
			ID: fmt.Sprintf("m-%d", i), WorkspaceID: ws.ID,
			Sender:    models.MessageSender{ID: u.ID},
			Text:      "x",
			CreatedAt: created, ExpiresAt: created.Add(models.MessageTTL),
		}))
	}

	// Limit keeps the newest entries but delivers oldest-first
	messages, err := db.ListRecentMessages(ws.ID, 3, time.Now())
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m-4", messages[0].ID)
	assert.Equal(t, "m-6", messages[2].ID)
}

func TestSaveMessageKeepsFirstWrite(t *testing.T) {
	db := NewMemoryDatabase()
	u, ws := seedWorkspace(t, db)

	other := &models.Workspace{Name: "Other", OwnerID: u.ID, InviteCode: "CODE5678", InviteCodeActive: true}
	require.NoError(t, db.CreateWorkspace(other))

	now := time.Now()
	require.NoError(t, db.SaveMessage(&models.Message{
		ID: "m1", WorkspaceID: ws.ID, Sender: models.MessageSender{ID: u.ID},
		Text: "original", CreatedAt: now, ExpiresAt: now.Add(models.MessageTTL),
	}))
	// Same id again: text and workspace of the first write stay intact
	require.NoError(t, db.SaveMessage(&models.Message{
		ID: "m1", WorkspaceID: other.ID, Sender: models.MessageSender{ID: u.ID},
		Text: "rewritten", CreatedAt: now, ExpiresAt: now.Add(models.MessageTTL),
	}))

	messages, err := db.ListRecentMessages(ws.ID, 100, time.Now())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "original", messages[0].Text)

	relocated, err := db.ListRecentMessages(other.ID, 100, time.Now())
	require.NoError(t, err)
	assert.Empty(t, relocated)
}

func TestPurgeExpiredMessages(t *testing.T) {
	db := NewMemoryDatabase()
	u, ws := seedWorkspace(t, db)

	old := time.Now().Add(-50 * time.Hour)
	fresh := time.Now()
	require.NoError(t, db.SaveMessage(&models.Message{
		ID: "old", WorkspaceID: ws.ID, Sender: models.MessageSender{ID: u.ID},
		Text: "x", CreatedAt: old, ExpiresAt: old.Add(models.MessageTTL),
	}))
	require.NoError(t, db.SaveMessage(&models.Message{
		ID: "fresh", WorkspaceID: ws.ID, Sender: models.MessageSender{ID: u.ID},
		Text: "x", CreatedAt: fresh, ExpiresAt: fresh.Add(models.MessageTTL),
	}))

	purged, err := db.PurgeExpiredMessages(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	messages, err := db.ListRecentMessages(ws.ID, 100, time.Now())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "fresh", messages[0].ID)
}

func TestGetTaskAnalytics(t *testing.T) {
	db := NewMemoryDatabase()
	u, ws := seedWorkspace(t, db)
	project := &models.Project{WorkspaceID: ws.ID, Name: "Site", CreatedBy: u.ID}
	require.NoError(t, db.CreateProject(project))
	other := &models.Project{WorkspaceID: ws.ID, Name: "App", CreatedBy: u.ID}
	require.NoError(t, db.CreateProject(other))

	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)
	addTask := func(projectID string, status models.TaskStatus, due *time.Time) {
		require.NoError(t, db.CreateTask(&models.Task{
			ProjectID: projectID, WorkspaceID: ws.ID, Title: "t",
			Status: status, Priority: models.TaskPriorityMedium,
			DueDate: due, CreatedBy: u.ID,
		}))
	}
	addTask(project.ID, models.TaskStatusDone, &past)   // done, not overdue
	addTask(project.ID, models.TaskStatusTodo, &past)   // overdue
	addTask(project.ID, models.TaskStatusTodo, &future) // open
	addTask(other.ID, models.TaskStatusTodo, &past)     // other project

	all, err := db.GetTaskAnalytics(ws.ID, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalTasks)
	assert.Equal(t, 2, all.OverdueTasks)
	assert.Equal(t, 1, all.CompletedTasks)

	scoped, err := db.GetTaskAnalytics(ws.ID, project.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, scoped.TotalTasks)
	assert.Equal(t, 1, scoped.OverdueTasks)
	assert.Equal(t, 1, scoped.CompletedTasks)
}
