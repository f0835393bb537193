package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"teamsync-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase is the PostgreSQL implementation of DatabaseInterface.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a PostgreSQL connection and verifies it.
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		panic(fmt.Sprintf("Failed to open PostgreSQL connection: %v", err))
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		panic(fmt.Sprintf("Failed to ping PostgreSQL: %v", err))
	}

	fmt.Printf("✅ PostgreSQL connection established\n")
	return &PostgresDatabase{db: db}
}

// ================= Users =================

func (db *PostgresDatabase) CreateUser(user *models.User) error {
	query := `
        INSERT INTO users (email, password_hash, name, avatar, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, user.Email, user.Password, user.Name, user.Avatar).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
        SELECT id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(avatar,''),
               current_workspace_id, created_at, updated_at
        FROM users
        WHERE lower(email) = lower($1)
    `
	var u models.User
	err := db.db.QueryRow(query, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar, &u.CurrentWorkspaceID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
        SELECT id, email, COALESCE(name,''), COALESCE(avatar,''),
               current_workspace_id, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var u models.User
	err := db.db.QueryRow(query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CurrentWorkspaceID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	query := `
        UPDATE users
        SET name = $1,
            avatar = $2,
            updated_at = NOW()
        WHERE id = $3
    `
	_, err := db.db.Exec(query, user.Name, user.Avatar, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) SetCurrentWorkspace(userID string, workspaceID *string) error {
	_, err := db.db.Exec(`UPDATE users SET current_workspace_id = $1, updated_at = NOW() WHERE id = $2`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to set current workspace: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ClearCurrentWorkspaceRefs(workspaceID string) error {
	_, err := db.db.Exec(`UPDATE users SET current_workspace_id = NULL, updated_at = NOW() WHERE current_workspace_id = $1`, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to clear current workspace refs: %w", err)
	}
	return nil
}

// ================= Roles =================

func (db *PostgresDatabase) GetRoleByName(name models.RoleName) (*models.Role, error) {
	var r models.Role
	var perms pq.StringArray
	err := db.db.QueryRow(`SELECT id, name, level, permissions, created_at FROM roles WHERE name = $1`, string(name)).
		Scan(&r.ID, &r.Name, &r.Level, &perms, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role not found")
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	for _, p := range perms {
		r.Permissions = append(r.Permissions, models.Permission(p))
	}
	return &r, nil
}

func (db *PostgresDatabase) ListRoles() ([]models.Role, error) {
	rows, err := db.db.Query(`SELECT id, name, level, permissions, created_at FROM roles ORDER BY level DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()
	var result []models.Role
	for rows.Next() {
		var r models.Role
		var perms pq.StringArray
		if err := rows.Scan(&r.ID, &r.Name, &r.Level, &perms, &r.CreatedAt); err != nil {
			return nil, err
		}
		for _, p := range perms {
			r.Permissions = append(r.Permissions, models.Permission(p))
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ================= Workspaces =================

func (db *PostgresDatabase) CreateWorkspace(ws *models.Workspace) error {
	query := `
        INSERT INTO workspaces (name, description, owner_id, invite_code, invite_code_active, invite_expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, ws.Name, ws.Description, ws.OwnerID, ws.InviteCode, ws.InviteCodeActive, ws.InviteExpiresAt).
		Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetWorkspace(id string) (*models.Workspace, error) {
	query := `
        SELECT id, name, COALESCE(description,''), owner_id, invite_code, invite_code_active, invite_expires_at, created_at, updated_at
        FROM workspaces WHERE id = $1
    `
	var ws models.Workspace
	err := db.db.QueryRow(query, id).Scan(
		&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.InviteCode, &ws.InviteCodeActive, &ws.InviteExpiresAt, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workspace not found")
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

func (db *PostgresDatabase) GetWorkspaceByInviteCode(code string) (*models.Workspace, error) {
	query := `
        SELECT id, name, COALESCE(description,''), owner_id, invite_code, invite_code_active, invite_expires_at, created_at, updated_at
        FROM workspaces WHERE invite_code = $1
    `
	var ws models.Workspace
	err := db.db.QueryRow(query, code).Scan(
		&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.InviteCode, &ws.InviteCodeActive, &ws.InviteExpiresAt, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workspace not found")
		}
		return nil, fmt.Errorf("failed to get workspace by invite code: %w", err)
	}
	return &ws, nil
}

func (db *PostgresDatabase) UpdateWorkspace(ws *models.Workspace) error {
	_, err := db.db.Exec(`
        UPDATE workspaces
        SET name = $1,
            description = $2,
            invite_code = $3,
            invite_code_active = $4,
            invite_expires_at = $5,
            updated_at = NOW()
        WHERE id = $6
    `, ws.Name, ws.Description, ws.InviteCode, ws.InviteCodeActive, ws.InviteExpiresAt, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateWorkspaceOwner(workspaceID, ownerID string) error {
	res, err := db.db.Exec(`UPDATE workspaces SET owner_id = $1, updated_at = NOW() WHERE id = $2`, ownerID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to update workspace owner: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("workspace not found")
	}
	return nil
}

func (db *PostgresDatabase) DeleteWorkspace(id string) error {
	// members/projects/tasks/messages cascade via FK constraints
	res, err := db.db.Exec(`DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("workspace not found")
	}
	return nil
}

func (db *PostgresDatabase) ListUserWorkspaces(userID string) ([]models.Workspace, error) {
	query := `
        SELECT w.id, w.name, COALESCE(w.description,''), w.owner_id, w.invite_code, w.invite_code_active, w.invite_expires_at, w.created_at, w.updated_at
        FROM workspaces w
        JOIN members m ON m.workspace_id = w.id
        WHERE m.user_id = $1
        ORDER BY w.created_at ASC
    `
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()
	var result []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.InviteCode, &ws.InviteCodeActive, &ws.InviteExpiresAt, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

// ================= Members =================

func (db *PostgresDatabase) AddMember(m *models.Member) error {
	query := `
        INSERT INTO members (workspace_id, user_id, role, joined_at)
        VALUES ($1, $2, $3, NOW())
        RETURNING id, joined_at
    `
	err := db.db.QueryRow(query, m.WorkspaceID, m.UserID, string(m.Role)).Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		// unique_violation on (workspace_id, user_id)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("member already exists")
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetMember(workspaceID, userID string) (*models.Member, error) {
	query := `
        SELECT id, workspace_id, user_id, role, joined_at
        FROM members WHERE workspace_id = $1 AND user_id = $2
    `
	var m models.Member
	var role string
	err := db.db.QueryRow(query, workspaceID, userID).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("member not found")
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.Role = models.RoleName(role)
	return &m, nil
}

func (db *PostgresDatabase) ListWorkspaceMembers(workspaceID string) ([]models.MemberWithUser, error) {
	query := `
        SELECT m.id, m.workspace_id, m.user_id, m.role, m.joined_at,
               COALESCE(u.name,''), u.email, COALESCE(u.avatar,'')
        FROM members m
        JOIN users u ON u.id = m.user_id
        WHERE m.workspace_id = $1
        ORDER BY m.joined_at ASC
    `
	rows, err := db.db.Query(query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()
	var result []models.MemberWithUser
	for rows.Next() {
		var row models.MemberWithUser
		var role string
		if err := rows.Scan(&row.ID, &row.WorkspaceID, &row.UserID, &role, &row.JoinedAt, &row.Name, &row.Email, &row.Avatar); err != nil {
			return nil, err
		}
		row.Role = models.RoleName(role)
		result = append(result, row)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateMemberRole(workspaceID, userID string, role models.RoleName) error {
	res, err := db.db.Exec(`UPDATE members SET role = $1 WHERE workspace_id = $2 AND user_id = $3`, string(role), workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("member not found")
	}
	return nil
}

func (db *PostgresDatabase) DeleteMember(workspaceID, userID string) error {
	res, err := db.db.Exec(`DELETE FROM members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("member not found")
	}
	return nil
}

// ================= Projects =================

func (db *PostgresDatabase) CreateProject(p *models.Project) error {
	query := `
        INSERT INTO projects (workspace_id, name, emoji, description, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, p.WorkspaceID, p.Name, p.Emoji, p.Description, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetProject(id string) (*models.Project, error) {
	query := `
        SELECT id, workspace_id, name, COALESCE(emoji,''), COALESCE(description,''), created_by, created_at, updated_at
        FROM projects WHERE id = $1
    `
	var p models.Project
	err := db.db.QueryRow(query, id).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Emoji, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project not found")
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (db *PostgresDatabase) ListWorkspaceProjects(workspaceID string) ([]models.Project, error) {
	rows, err := db.db.Query(`
        SELECT id, workspace_id, name, COALESCE(emoji,''), COALESCE(description,''), created_by, created_at, updated_at
        FROM projects WHERE workspace_id = $1 ORDER BY created_at ASC
    `, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()
	var result []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Emoji, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateProject(p *models.Project) error {
	res, err := db.db.Exec(`UPDATE projects SET name=$1, emoji=$2, description=$3, updated_at=NOW() WHERE id=$4`,
		p.Name, p.Emoji, p.Description, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("project not found")
	}
	return nil
}

func (db *PostgresDatabase) DeleteProject(id string) error {
	// tasks cascade via FK constraint
	res, err := db.db.Exec(`DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("project not found")
	}
	return nil
}

// ================= Tasks =================

func (db *PostgresDatabase) CreateTask(t *models.Task) error {
	query := `
        INSERT INTO tasks (project_id, workspace_id, title, description, status, priority, assigned_to, due_date, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, t.ProjectID, t.WorkspaceID, t.Title, t.Description, string(t.Status), string(t.Priority), t.AssignedTo, t.DueDate, t.CreatedBy).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetTask(id string) (*models.Task, error) {
	query := `
        SELECT id, project_id, workspace_id, title, COALESCE(description,''), status, priority, assigned_to, due_date, created_by, created_at, updated_at
        FROM tasks WHERE id = $1
    `
	var t models.Task
	var status, priority string
	err := db.db.QueryRow(query, id).Scan(&t.ID, &t.ProjectID, &t.WorkspaceID, &t.Title, &t.Description, &status, &priority, &t.AssignedTo, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found")
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	return &t, nil
}

func (db *PostgresDatabase) ListProjectTasks(projectID string) ([]models.Task, error) {
	rows, err := db.db.Query(`
        SELECT id, project_id, workspace_id, title, COALESCE(description,''), status, priority, assigned_to, due_date, created_by, created_at, updated_at
        FROM tasks WHERE project_id = $1 ORDER BY created_at ASC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	var result []models.Task
	for rows.Next() {
		var t models.Task
		var status, priority string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.WorkspaceID, &t.Title, &t.Description, &status, &priority, &t.AssignedTo, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = models.TaskStatus(status)
		t.Priority = models.TaskPriority(priority)
		result = append(result, t)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateTask(t *models.Task) error {
	res, err := db.db.Exec(`
        UPDATE tasks SET title=$1, description=$2, status=$3, priority=$4, assigned_to=$5, due_date=$6, updated_at=NOW()
        WHERE id=$7
    `, t.Title, t.Description, string(t.Status), string(t.Priority), t.AssignedTo, t.DueDate, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}

func (db *PostgresDatabase) DeleteTask(id string) error {
	res, err := db.db.Exec(`DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}

func (db *PostgresDatabase) GetTaskAnalytics(workspaceID, projectID string, now time.Time) (*models.Analytics, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status <> 'DONE' AND due_date IS NOT NULL AND due_date < $3),
            COUNT(*) FILTER (WHERE status = 'DONE')
        FROM tasks
        WHERE workspace_id = $1 AND ($2 = '' OR project_id = $2::uuid)
    `
	var a models.Analytics
	err := db.db.QueryRow(query, workspaceID, projectID, now).Scan(&a.TotalTasks, &a.OverdueTasks, &a.CompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to get task analytics: %w", err)
	}
	return &a, nil
}

// ================= Messages =================

func (db *PostgresDatabase) SaveMessage(m *models.Message) error {
	// Keyed by the client-supplied id; replaying the same id is a no-op so
	// the sender's local fallback copy and the socket copy cannot duplicate.
	query := `
        INSERT INTO messages (id, workspace_id, sender_id, sender_name, sender_avatar, text, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING
    `
	_, err := db.db.Exec(query, m.ID, m.WorkspaceID, m.Sender.ID, m.Sender.Name, m.Sender.Avatar, m.Text, m.CreatedAt, m.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListRecentMessages(workspaceID string, limit int, now time.Time) ([]models.Message, error) {
	// Window the newest messages, then return them oldest-first.
	query := `
        SELECT id, workspace_id, sender_id, sender_name, COALESCE(sender_avatar,''), text, created_at, expires_at
        FROM (
            SELECT * FROM messages
            WHERE workspace_id = $1 AND expires_at > $2
            ORDER BY created_at DESC
            LIMIT $3
        ) recent
        ORDER BY created_at ASC
    `
	rows, err := db.db.Query(query, workspaceID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()
	var result []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Sender.ID, &m.Sender.Name, &m.Sender.Avatar, &m.Text, &m.CreatedAt, &m.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) PurgeExpiredMessages(now time.Time) (int, error) {
	res, err := db.db.Exec(`DELETE FROM messages WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired messages: %w", err)
	}
	purged, _ := res.RowsAffected()
	return int(purged), nil
}

// HealthCheck pings the database.
func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

// Close closes the connection pool.
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
