package database

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"teamsync-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is the in-memory implementation used for local development
// and tests. All maps are guarded by a single RWMutex; values are copied on
// the way in and out so callers never share storage with the store.
type MemoryDatabase struct {
	mu         sync.RWMutex
	users      map[string]models.User
	roles      map[models.RoleName]models.Role
	workspaces map[string]models.Workspace
	members    map[string]models.Member // key: workspaceID + "/" + userID
	projects   map[string]models.Project
	tasks      map[string]models.Task
	messages   map[string]models.Message
}

// NewMemoryDatabase creates an in-memory database with the default role
// seed already applied.
func NewMemoryDatabase() *MemoryDatabase {
	db := &MemoryDatabase{
		users:      make(map[string]models.User),
		roles:      make(map[models.RoleName]models.Role),
		workspaces: make(map[string]models.Workspace),
		members:    make(map[string]models.Member),
		projects:   make(map[string]models.Project),
		tasks:      make(map[string]models.Task),
		messages:   make(map[string]models.Message),
	}
	db.seedRoles()
	return db
}

func (db *MemoryDatabase) seedRoles() {
	for _, name := range []models.RoleName{models.RoleOwner, models.RoleCoOwner, models.RoleAdmin, models.RoleMember} {
		db.roles[name] = models.Role{
			ID:          uuid.New().String(),
			Name:        name,
			Level:       models.RoleLevel(name),
			Permissions: models.DefaultRolePermissions[name],
			CreatedAt:   time.Now(),
		}
	}
}

func memberKey(workspaceID, userID string) string {
	return workspaceID + "/" + userID
}

// Users

func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("user already exists")
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	db.users[user.ID] = *user
	return nil
}

func (db *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	out := u
	return &out, nil
}

func (db *MemoryDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing, ok := db.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	db.users[user.ID] = *user
	return nil
}

func (db *MemoryDatabase) SetCurrentWorkspace(userID string, workspaceID *string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.CurrentWorkspaceID = workspaceID
	u.UpdatedAt = time.Now()
	db.users[userID] = u
	return nil
}

func (db *MemoryDatabase) ClearCurrentWorkspaceRefs(workspaceID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for id, u := range db.users {
		if u.CurrentWorkspaceID != nil && *u.CurrentWorkspaceID == workspaceID {
			u.CurrentWorkspaceID = nil
			u.UpdatedAt = time.Now()
			db.users[id] = u
		}
	}
	return nil
}

// Roles

func (db *MemoryDatabase) GetRoleByName(name models.RoleName) (*models.Role, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.roles[name]
	if !ok {
		return nil, fmt.Errorf("role not found")
	}
	out := r
	return &out, nil
}

func (db *MemoryDatabase) ListRoles() ([]models.Role, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var result []models.Role
	for _, r := range db.roles {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Level > result[j].Level })
	return result, nil
}

// Workspaces

func (db *MemoryDatabase) CreateWorkspace(ws *models.Workspace) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.workspaces {
		if existing.InviteCode == ws.InviteCode {
			return fmt.Errorf("invite code already in use")
		}
	}
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	ws.CreatedAt = time.Now()
	ws.UpdatedAt = ws.CreatedAt
	db.workspaces[ws.ID] = *ws
	return nil
}

func (db *MemoryDatabase) GetWorkspace(id string) (*models.Workspace, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ws, ok := db.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace not found")
	}
	out := ws
	return &out, nil
}

func (db *MemoryDatabase) GetWorkspaceByInviteCode(code string) (*models.Workspace, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, ws := range db.workspaces {
		if ws.InviteCode == code {
			out := ws
			return &out, nil
		}
	}
	return nil, fmt.Errorf("workspace not found")
}

func (db *MemoryDatabase) UpdateWorkspace(ws *models.Workspace) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing, ok := db.workspaces[ws.ID]
	if !ok {
		return fmt.Errorf("workspace not found")
	}
	ws.CreatedAt = existing.CreatedAt
	ws.UpdatedAt = time.Now()
	db.workspaces[ws.ID] = *ws
	return nil
}

func (db *MemoryDatabase) UpdateWorkspaceOwner(workspaceID, ownerID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	ws, ok := db.workspaces[workspaceID]
	if !ok {
		return fmt.Errorf("workspace not found")
	}
	ws.OwnerID = ownerID
	ws.UpdatedAt = time.Now()
	db.workspaces[workspaceID] = ws
	return nil
}

func (db *MemoryDatabase) DeleteWorkspace(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.workspaces[id]; !ok {
		return fmt.Errorf("workspace not found")
	}
	delete(db.workspaces, id)
	for key, m := range db.members {
		if m.WorkspaceID == id {
			delete(db.members, key)
		}
	}
	for pid, p := range db.projects {
		if p.WorkspaceID == id {
			delete(db.projects, pid)
		}
	}
	for tid, t := range db.tasks {
		if t.WorkspaceID == id {
			delete(db.tasks, tid)
		}
	}
	for mid, m := range db.messages {
		if m.WorkspaceID == id {
			delete(db.messages, mid)
		}
	}
	return nil
}

func (db *MemoryDatabase) ListUserWorkspaces(userID string) ([]models.Workspace, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var result []models.Workspace
	for _, m := range db.members {
		if m.UserID == userID {
			if ws, ok := db.workspaces[m.WorkspaceID]; ok {
				result = append(result, ws)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Members

func (db *MemoryDatabase) AddMember(m *models.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := memberKey(m.WorkspaceID, m.UserID)
	if _, ok := db.members[key]; ok {
		return fmt.Errorf("member already exists")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	db.members[key] = *m
	return nil
}

func (db *MemoryDatabase) GetMember(workspaceID, userID string) (*models.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.members[memberKey(workspaceID, userID)]
	if !ok {
		return nil, fmt.Errorf("member not found")
	}
	out := m
	return &out, nil
}

func (db *MemoryDatabase) ListWorkspaceMembers(workspaceID string) ([]models.MemberWithUser, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var result []models.MemberWithUser
	for _, m := range db.members {
		if m.WorkspaceID != workspaceID {
			continue
		}
		row := models.MemberWithUser{Member: m}
		if u, ok := db.users[m.UserID]; ok {
			row.Name = u.Name
			row.Email = u.Email
			row.Avatar = u.Avatar
		}
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (db *MemoryDatabase) UpdateMemberRole(workspaceID, userID string, role models.RoleName) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := memberKey(workspaceID, userID)
	m, ok := db.members[key]
	if !ok {
		return fmt.Errorf("member not found")
	}
	m.Role = role
	db.members[key] = m
	return nil
}

func (db *MemoryDatabase) DeleteMember(workspaceID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := memberKey(workspaceID, userID)
	if _, ok := db.members[key]; !ok {
		return fmt.Errorf("member not found")
	}
	delete(db.members, key)
	return nil
}

// Projects

func (db *MemoryDatabase) CreateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	db.projects[p.ID] = *p
	return nil
}

func (db *MemoryDatabase) GetProject(id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	out := p
	return &out, nil
}

func (db *MemoryDatabase) ListWorkspaceProjects(workspaceID string) ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var result []models.Project
	for _, p := range db.projects {
		if p.WorkspaceID == workspaceID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (db *MemoryDatabase) UpdateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing, ok := db.projects[p.ID]
	if !ok {
		return fmt.Errorf("project not found")
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	db.projects[p.ID] = *p
	return nil
}

func (db *MemoryDatabase) DeleteProject(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.projects[id]; !ok {
		return fmt.Errorf("project not found")
	}
	delete(db.projects, id)
	for tid, t := range db.tasks {
		if t.ProjectID == id {
			delete(db.tasks, tid)
		}
	}
	return nil
}

// Tasks

func (db *MemoryDatabase) CreateTask(t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	db.tasks[t.ID] = *t
	return nil
}

func (db *MemoryDatabase) GetTask(id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}
	out := t
	return &out, nil
}

func (db *MemoryDatabase) ListProjectTasks(projectID string) ([]models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var result []models.Task
	for _, t := range db.tasks {
		if t.ProjectID == projectID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (db *MemoryDatabase) UpdateTask(t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing, ok := db.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task not found")
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	db.tasks[t.ID] = *t
	return nil
}

func (db *MemoryDatabase) DeleteTask(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tasks[id]; !ok {
		return fmt.Errorf("task not found")
	}
	delete(db.tasks, id)
	return nil
}

func (db *MemoryDatabase) GetTaskAnalytics(workspaceID, projectID string, now time.Time) (*models.Analytics, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var a models.Analytics
	for _, t := range db.tasks {
		if t.WorkspaceID != workspaceID {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		a.TotalTasks++
		if t.Status == models.TaskStatusDone {
			a.CompletedTasks++
		} else if t.DueDate != nil && t.DueDate.Before(now) {
			a.OverdueTasks++
		}
	}
	return &a, nil
}

// Messages

func (db *MemoryDatabase) SaveMessage(m *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	// Messages are immutable: a replayed id keeps the first write
	if _, ok := db.messages[m.ID]; ok {
		return nil
	}
	db.messages[m.ID] = *m
	return nil
}

func (db *MemoryDatabase) ListRecentMessages(workspaceID string, limit int, now time.Time) ([]models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var result []models.Message
	for _, m := range db.messages {
		if m.WorkspaceID == workspaceID && !m.Expired(now) {
			result = append(result, m)
		}
	}
	// Newest-first to apply the window, then back to ascending for delivery.
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (db *MemoryDatabase) PurgeExpiredMessages(now time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	purged := 0
	for id, m := range db.messages {
		if m.Expired(now) {
			delete(db.messages, id)
			purged++
		}
	}
	return purged, nil
}

// HealthCheck always succeeds for the in-memory database.
func (db *MemoryDatabase) HealthCheck() error {
	return nil
}

// Close is a no-op for the in-memory database.
func (db *MemoryDatabase) Close() error {
	return nil
}
