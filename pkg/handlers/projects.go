package handlers

import (
	"net/http"
	"strings"
	"time"

	"teamsync-backend/pkg/config"
	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/middleware"
	"teamsync-backend/pkg/models"
	"teamsync-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// ProjectsHandler serves project and task CRUD plus task analytics.
type ProjectsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewProjectsHandler creates a projects handler.
func NewProjectsHandler(cfg *config.Config, db database.DatabaseInterface) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, db: db}
}

// requireMemberWithPermission checks workspace membership and the given
// permission, writing the error response itself on failure.
func (h *ProjectsHandler) requireMemberWithPermission(w http.ResponseWriter, workspaceID, userID string, perm models.Permission) bool {
	member, err := h.db.GetMember(workspaceID, userID)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "NOT_A_MEMBER", "You are not a member of this workspace", "")
		return false
	}
	role, err := h.db.GetRoleByName(member.Role)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "ROLE_NOT_FOUND", "Role seed data missing: "+string(member.Role), "")
		return false
	}
	if !role.HasPermission(perm) {
		utils.WriteForbiddenResponse(w, "Role "+string(member.Role)+" lacks permission "+string(perm))
		return false
	}
	return true
}

// ================= Projects =================

// POST /api/workspaces/{workspaceId}/projects
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermCreateProject) {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Emoji       string `json:"emoji"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteValidationErrorResponse(w, "Name required", "")
		return
	}

	project := &models.Project{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Emoji:       req.Emoji,
		Description: req.Description,
		CreatedBy:   user.ID,
	}
	if err := h.db.CreateProject(project); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create project failed: "+err.Error())
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"project": project})
}

// GET /api/workspaces/{workspaceId}/projects
func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermViewOnly) {
		return
	}

	projects, err := h.db.ListWorkspaceProjects(workspaceID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": projects})
}

// PUT /api/workspaces/{workspaceId}/projects/{projectId}
func (h *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	projectID := chiRoute.URLParam(r, "projectId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermEditProject) {
		return
	}

	project, err := h.db.GetProject(projectID)
	if err != nil || project.WorkspaceID != workspaceID {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Emoji       string `json:"emoji"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) != "" {
		project.Name = req.Name
	}
	if strings.TrimSpace(req.Emoji) != "" {
		project.Emoji = req.Emoji
	}
	project.Description = req.Description

	if err := h.db.UpdateProject(project); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// DELETE /api/workspaces/{workspaceId}/projects/{projectId}
func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	projectID := chiRoute.URLParam(r, "projectId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermDeleteProject) {
		return
	}

	project, err := h.db.GetProject(projectID)
	if err != nil || project.WorkspaceID != workspaceID {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}

	if err := h.db.DeleteProject(projectID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// ================= Tasks =================

// POST /api/workspaces/{workspaceId}/projects/{projectId}/tasks
func (h *ProjectsHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	projectID := chiRoute.URLParam(r, "projectId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermCreateTask) {
		return
	}

	project, err := h.db.GetProject(projectID)
	if err != nil || project.WorkspaceID != workspaceID {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}

	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
		AssignedTo  *string    `json:"assigned_to"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		utils.WriteValidationErrorResponse(w, "Title required", "")
		return
	}

	status := models.TaskStatus(req.Status)
	if req.Status == "" {
		status = models.TaskStatusBacklog
	} else if !models.ValidTaskStatus(status) {
		utils.WriteValidationErrorResponse(w, "Invalid status: "+req.Status, "")
		return
	}
	priority := models.TaskPriority(req.Priority)
	if req.Priority == "" {
		priority = models.TaskPriorityMedium
	} else if !models.ValidTaskPriority(priority) {
		utils.WriteValidationErrorResponse(w, "Invalid priority: "+req.Priority, "")
		return
	}

	task := &models.Task{
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		CreatedBy:   user.ID,
	}
	if err := h.db.CreateTask(task); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create task failed: "+err.Error())
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// GET /api/workspaces/{workspaceId}/projects/{projectId}/tasks
func (h *ProjectsHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	projectID := chiRoute.URLParam(r, "projectId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermViewOnly) {
		return
	}

	tasks, err := h.db.ListProjectTasks(projectID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tasks": tasks})
}

// PUT /api/workspaces/{workspaceId}/tasks/{taskId}
func (h *ProjectsHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	taskID := chiRoute.URLParam(r, "taskId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermEditTask) {
		return
	}

	task, err := h.db.GetTask(taskID)
	if err != nil || task.WorkspaceID != workspaceID {
		utils.WriteNotFoundResponse(w, "Task not found")
		return
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *string    `json:"priority"`
		AssignedTo  *string    `json:"assigned_to"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		if !models.ValidTaskStatus(status) {
			utils.WriteValidationErrorResponse(w, "Invalid status: "+*req.Status, "")
			return
		}
		task.Status = status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		if !models.ValidTaskPriority(priority) {
			utils.WriteValidationErrorResponse(w, "Invalid priority: "+*req.Priority, "")
			return
		}
		task.Priority = priority
	}
	if req.AssignedTo != nil {
		task.AssignedTo = req.AssignedTo
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := h.db.UpdateTask(task); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// DELETE /api/workspaces/{workspaceId}/tasks/{taskId}
func (h *ProjectsHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	taskID := chiRoute.URLParam(r, "taskId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermDeleteTask) {
		return
	}

	task, err := h.db.GetTask(taskID)
	if err != nil || task.WorkspaceID != workspaceID {
		utils.WriteNotFoundResponse(w, "Task not found")
		return
	}

	if err := h.db.DeleteTask(taskID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// GET /api/workspaces/{workspaceId}/analytics?project_id=...
func (h *ProjectsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	if !h.requireMemberWithPermission(w, workspaceID, user.ID, models.PermViewOnly) {
		return
	}

	projectID := utils.GetQueryParam(r, "project_id", "")
	analytics, err := h.db.GetTaskAnalytics(workspaceID, projectID, time.Now())
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"analytics": analytics})
}
