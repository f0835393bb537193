package database

import (
	"time"

	"teamsync-backend/pkg/models"
)

// DatabaseInterface is the repository contract the rest of the application
// depends on. Records are plain values; invariants that span records
// (single owner, unique membership) are enforced by the workspace service,
// not here.
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	// SetCurrentWorkspace points the user at a workspace; nil clears it.
	SetCurrentWorkspace(userID string, workspaceID *string) error
	// ClearCurrentWorkspaceRefs clears the pointer for every user that
	// currently references the workspace (used on workspace delete).
	ClearCurrentWorkspaceRefs(workspaceID string) error

	// Roles (seed data)
	GetRoleByName(name models.RoleName) (*models.Role, error)
	ListRoles() ([]models.Role, error)

	// Workspaces
	CreateWorkspace(ws *models.Workspace) error
	GetWorkspace(id string) (*models.Workspace, error)
	GetWorkspaceByInviteCode(code string) (*models.Workspace, error)
	UpdateWorkspace(ws *models.Workspace) error
	// UpdateWorkspaceOwner rewrites only the owner reference.
	UpdateWorkspaceOwner(workspaceID, ownerID string) error
	DeleteWorkspace(id string) error
	ListUserWorkspaces(userID string) ([]models.Workspace, error)

	// Members
	AddMember(m *models.Member) error
	GetMember(workspaceID, userID string) (*models.Member, error)
	ListWorkspaceMembers(workspaceID string) ([]models.MemberWithUser, error)
	UpdateMemberRole(workspaceID, userID string, role models.RoleName) error
	DeleteMember(workspaceID, userID string) error

	// Projects
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	ListWorkspaceProjects(workspaceID string) ([]models.Project, error)
	UpdateProject(p *models.Project) error
	DeleteProject(id string) error

	// Tasks
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListProjectTasks(projectID string) ([]models.Task, error)
	UpdateTask(t *models.Task) error
	DeleteTask(id string) error
	// Analytics: task counts scoped to a workspace or a single project
	// (empty projectID means the whole workspace), evaluated against now.
	GetTaskAnalytics(workspaceID, projectID string, now time.Time) (*models.Analytics, error)

	// Messages. Expired messages are invisible to reads regardless of
	// whether the purge reaper has run yet.
	SaveMessage(m *models.Message) error
	ListRecentMessages(workspaceID string, limit int, now time.Time) ([]models.Message, error)
	PurgeExpiredMessages(now time.Time) (int, error)

	// Health check
	HealthCheck() error

	// Close the underlying connection
	Close() error
}

// DatabaseConfig selects and configures a database implementation.
type DatabaseConfig struct {
	UseLocalDB  bool
	PostgresDSN string
	Debug       bool
}

// NewDatabase picks an implementation from the config. The in-memory
// database backs local development and tests; everything else goes
// through PostgreSQL.
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	if config.PostgresDSN != "" && !config.UseLocalDB {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	return NewMemoryDatabase()
}
