package handlers

import (
	"errors"
	"net/http"
	"strings"

	"teamsync-backend/pkg/config"
	"teamsync-backend/pkg/middleware"
	"teamsync-backend/pkg/models"
	"teamsync-backend/pkg/utils"
	"teamsync-backend/pkg/workspace"

	chiRoute "github.com/go-chi/chi/v5"
)

// WorkspacesHandler serves workspace lifecycle, membership, and role
// transition endpoints on top of the workspace service.
type WorkspacesHandler struct {
	config  *config.Config
	service *workspace.Service
}

// NewWorkspacesHandler creates a workspaces handler.
func NewWorkspacesHandler(cfg *config.Config, service *workspace.Service) *WorkspacesHandler {
	return &WorkspacesHandler{config: cfg, service: service}
}

// writeServiceError maps service sentinel errors onto the response envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workspace.ErrWorkspaceNotFound):
		utils.WriteNotFoundResponse(w, err.Error())
	case errors.Is(err, workspace.ErrInvalidInviteCode):
		utils.WriteErrorResponseWithCode(w, http.StatusNotFound, "INVALID_INVITE_CODE", err.Error(), "")
	case errors.Is(err, workspace.ErrTargetNotAMember):
		utils.WriteErrorResponseWithCode(w, http.StatusNotFound, "MEMBER_NOT_FOUND", err.Error(), "")
	case errors.Is(err, workspace.ErrNotAMember):
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "NOT_A_MEMBER", err.Error(), "")
	case errors.Is(err, workspace.ErrInsufficientRole),
		errors.Is(err, workspace.ErrNotOwner):
		utils.WriteForbiddenResponse(w, err.Error())
	case errors.Is(err, workspace.ErrInviteCodeInactive),
		errors.Is(err, workspace.ErrInviteCodeExpired),
		errors.Is(err, workspace.ErrAlreadyMember),
		errors.Is(err, workspace.ErrOwnerNotRemovable),
		errors.Is(err, workspace.ErrOwnerCannotLeave),
		errors.Is(err, workspace.ErrIneligibleNewOwner),
		errors.Is(err, workspace.ErrNotAcknowledged),
		errors.Is(err, workspace.ErrAlreadyPrivileged),
		errors.Is(err, workspace.ErrCoOwnerViaPromotion),
		errors.Is(err, workspace.ErrOwnerViaTransfer),
		errors.Is(err, workspace.ErrUnknownRole):
		utils.WriteBadRequestResponse(w, err.Error())
	case errors.Is(err, workspace.ErrRoleNotFound):
		utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "ROLE_NOT_FOUND", err.Error(), "")
	case errors.Is(err, workspace.ErrTransferNotVerified):
		utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "TRANSFER_FAILED", err.Error(), "")
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
}

// POST /api/workspaces
func (h *WorkspacesHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Name        string `json:"name"`
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

	ws, err := h.service.CreateWorkspace(user.ID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"workspace": ws})
}

// GET /api/workspaces
func (h *WorkspacesHandler) ListMyWorkspaces(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	workspaces, err := h.service.ListUserWorkspaces(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if workspaces == nil {
		workspaces = []models.Workspace{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspaces": workspaces})
}

// GET /api/workspaces/{workspaceId}
func (h *WorkspacesHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	ws, err := h.service.GetWorkspace(workspaceID, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspace": ws})
}

// PUT /api/workspaces/{workspaceId}
func (h *WorkspacesHandler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	ws, err := h.service.UpdateWorkspace(workspaceID, user.ID, strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspace": ws})
}

// DELETE /api/workspaces/{workspaceId}
func (h *WorkspacesHandler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	if err := h.service.DeleteWorkspace(workspaceID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// POST /api/workspaces/{workspaceId}/invite/reset
func (h *WorkspacesHandler) ResetInviteCode(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	ws, err := h.service.ResetInviteCode(workspaceID, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"invite_code":       ws.InviteCode,
		"invite_expires_at": ws.InviteExpiresAt,
	})
}

// POST /api/workspaces/join/{inviteCode}
func (h *WorkspacesHandler) JoinByInviteCode(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	code := strings.TrimSpace(chiRoute.URLParam(r, "inviteCode"))
	if code == "" {
		utils.WriteBadRequestResponse(w, "invite code required")
		return
	}

	ws, err := h.service.JoinByInviteCode(code, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspace": ws})
}

// GET /api/workspaces/{workspaceId}/members
func (h *WorkspacesHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	members, err := h.service.ListMembers(workspaceID, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []models.MemberWithUser{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// POST /api/workspaces/{workspaceId}/remove
func (h *WorkspacesHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	var req struct {
		MemberID string `json:"member_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.MemberID) == "" {
		utils.WriteValidationErrorResponse(w, "member_id required", "")
		return
	}

	if err := h.service.RemoveMember(workspaceID, req.MemberID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"removed": true})
}

// POST /api/workspaces/{workspaceId}/leave
func (h *WorkspacesHandler) LeaveWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	if err := h.service.LeaveWorkspace(workspaceID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"left": true})
}

// POST /api/workspaces/{workspaceId}/transfer-ownership
func (h *WorkspacesHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	var req struct {
		NewOwnerID string `json:"new_owner_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.NewOwnerID) == "" {
		utils.WriteValidationErrorResponse(w, "new_owner_id required", "")
		return
	}

	if err := h.service.TransferOwnership(workspaceID, req.NewOwnerID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"transferred": true})
}

// POST /api/workspaces/{workspaceId}/promote-co-owner
func (h *WorkspacesHandler) PromoteToCoOwner(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	var req struct {
		UserID       string `json:"user_id"`
		Acknowledged bool   `json:"acknowledged"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		utils.WriteValidationErrorResponse(w, "user_id required", "")
		return
	}

	if err := h.service.PromoteToCoOwner(workspaceID, req.UserID, user.ID, req.Acknowledged); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"promoted": true})
}

// PUT /api/workspaces/{workspaceId}/members/{userId}/role
func (h *WorkspacesHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")
	targetUserID := chiRoute.URLParam(r, "userId")

	var req struct {
		Role string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		utils.WriteValidationErrorResponse(w, "role required", "")
		return
	}

	newRole := models.RoleName(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err := h.service.ChangeMemberRole(workspaceID, targetUserID, newRole, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"role": newRole})
}

// POST /api/workspaces/{workspaceId}/select
func (h *WorkspacesHandler) SelectWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	if err := h.service.SetCurrentWorkspace(user.ID, workspaceID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"current_workspace_id": workspaceID})
}
