package handlers

import (
	"errors"
	"net/http"
	"strings"

	"teamsync-backend/pkg/chat"
	"teamsync-backend/pkg/config"
	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/middleware"
	"teamsync-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS layer; websockets accept all
		return true
	},
}

// ChatHandler serves the websocket endpoint and the REST fallback for
// clients without a live connection.
type ChatHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	pipeline *chat.Pipeline
	jwt      *utils.JWTService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(cfg *config.Config, db database.DatabaseInterface, pipeline *chat.Pipeline) *ChatHandler {
	return &ChatHandler{
		config:   cfg,
		db:       db,
		pipeline: pipeline,
		jwt:      utils.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
	}
}

// GET /ws?token=...&workspace_id=...
//
// Browsers cannot set an Authorization header on a websocket handshake, so
// the access token travels as a query parameter here.
func (h *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.WriteUnauthorizedResponse(w, "token required")
		return
	}
	user, err := h.jwt.ExtractUserFromToken(token)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "invalid token")
		return
	}

	workspaceID := strings.TrimSpace(r.URL.Query().Get("workspace_id"))
	if workspaceID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id required")
		return
	}
	if _, err := h.db.GetMember(workspaceID, user.ID); err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "NOT_A_MEMBER", "You are not a member of this workspace", "")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		return
	}

	client := chat.NewClient(uuid.New().String(), user.ID, conn, h.pipeline)
	h.pipeline.Connect(client, workspaceID)

	go client.WritePump()
	go client.ReadPump()
}

// GET /api/workspaces/{workspaceId}/chat
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	messages, err := h.pipeline.HistoryFor(workspaceID, user.ID)
	if err != nil {
		if errors.Is(err, chat.ErrNotAMember) {
			utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "NOT_A_MEMBER", err.Error(), "")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"messages": messages})
}

// POST /api/workspaces/{workspaceId}/chat
//
// Fallback send for clients without a live socket. The message is persisted
// and returned synchronously; no broadcast happens, the caller renders its
// own copy and relies on id dedup if the socket copy arrives later.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "workspaceId")

	var req struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.WriteValidationErrorResponse(w, "text required", "")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		// REST clients may omit the id; generate one server-side
		req.ID = uuid.New().String()
	}

	msg, err := h.pipeline.Deliver(workspaceID, user.ID, req.ID, req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrNotAMember) {
			utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "NOT_A_MEMBER", err.Error(), "")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"message": msg})
}
