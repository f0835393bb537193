package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/models"
)

// CatchUpLimit bounds the history batch delivered on connect and on
// explicit history requests.
const CatchUpLimit = 100

// ErrNotAMember gates chat access on workspace membership.
var ErrNotAMember = errors.New("you are not a member of this workspace")

// Event is the wire envelope for socket traffic in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventJoinWorkspace  = "join_workspace"
	EventLeaveWorkspace = "leave_workspace"
	EventSendMessage    = "send_message"
	EventGetMessages    = "get_messages"
	EventPing           = "ping"
)

// Outbound event names.
const (
	EventReceiveMessage = "receive_message"
	EventLoadMessages   = "load_messages"
	EventPong           = "pong"
)

// sendPayload is the client's send_message body. The id is generated by the
// client so it can reconcile its optimistic copy against the broadcast.
type sendPayload struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Text        string `json:"text"`
}

type roomPayload struct {
	WorkspaceID string `json:"workspace_id"`
}

// Pipeline validates, persists, and fans out chat messages.
type Pipeline struct {
	db  database.DatabaseInterface
	hub *Hub
}

// NewPipeline creates a chat pipeline.
func NewPipeline(db database.DatabaseInterface, hub *Hub) *Pipeline {
	return &Pipeline{db: db, hub: hub}
}

// Hub exposes the underlying hub.
func (p *Pipeline) Hub() *Hub {
	return p.hub
}

// Connect registers a connection, joins it to its workspace room, and
// asynchronously delivers the catch-up batch. Membership must already be
// verified by the caller.
func (p *Pipeline) Connect(c *Client, workspaceID string) {
	p.hub.Register(c)
	p.hub.JoinRoom(c.ID, RoomID(workspaceID))

	go func() {
		messages, err := p.History(workspaceID)
		if err != nil {
			fmt.Printf("⚠️ Failed to load catch-up batch for workspace %s: %v\n", workspaceID, err)
			return
		}
		p.sendTo(c, EventLoadMessages, map[string]interface{}{
			"workspace_id": workspaceID,
			"messages":     messages,
		})
	}()
}

// HandleEvent dispatches one inbound frame. Malformed frames are dropped
// and logged; no error goes back to the sender.
func (p *Pipeline) HandleEvent(c *Client, raw []byte) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Printf("⚠️ Dropping unparseable frame from user %s: %v\n", c.UserID, err)
		return
	}

	switch ev.Event {
	case EventPing:
		p.sendTo(c, EventPong, nil)
	case EventSendMessage:
		p.handleSend(c, ev.Data)
	case EventJoinWorkspace:
		p.handleJoin(c, ev.Data)
	case EventLeaveWorkspace:
		p.handleLeave(c, ev.Data)
	case EventGetMessages:
		p.handleGetMessages(c, ev.Data)
	default:
		fmt.Printf("⚠️ Unknown event %q from user %s\n", ev.Event, c.UserID)
	}
}

// handleSend runs the full send path: validate, persist, broadcast to the
// room including the sender's own connection.
func (p *Pipeline) handleSend(c *Client, data json.RawMessage) {
	var payload sendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		fmt.Printf("⚠️ Dropping malformed send_message from user %s: %v\n", c.UserID, err)
		return
	}
	if payload.ID == "" || payload.WorkspaceID == "" || payload.Text == "" {
		fmt.Printf("⚠️ Dropping incomplete send_message from user %s (id=%q workspace=%q)\n",
			c.UserID, payload.ID, payload.WorkspaceID)
		return
	}

	msg, err := p.Deliver(payload.WorkspaceID, c.UserID, payload.ID, payload.Text)
	if err != nil {
		fmt.Printf("⚠️ Failed to deliver message %s from user %s: %v\n", payload.ID, c.UserID, err)
		return
	}

	out, err := json.Marshal(Event{Event: EventReceiveMessage, Data: mustMarshal(msg)})
	if err != nil {
		fmt.Printf("⚠️ Failed to encode broadcast for message %s: %v\n", msg.ID, err)
		return
	}
	p.hub.BroadcastRoom(RoomID(payload.WorkspaceID), out)
}

func (p *Pipeline) handleJoin(c *Client, data json.RawMessage) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.WorkspaceID == "" {
		fmt.Printf("⚠️ Dropping malformed join_workspace from user %s\n", c.UserID)
		return
	}
	if _, err := p.db.GetMember(payload.WorkspaceID, c.UserID); err != nil {
		fmt.Printf("⚠️ User %s tried to join room for workspace %s without membership\n", c.UserID, payload.WorkspaceID)
		return
	}
	p.hub.JoinRoom(c.ID, RoomID(payload.WorkspaceID))
}

func (p *Pipeline) handleLeave(c *Client, data json.RawMessage) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.WorkspaceID == "" {
		fmt.Printf("⚠️ Dropping malformed leave_workspace from user %s\n", c.UserID)
		return
	}
	p.hub.LeaveRoom(c.ID, RoomID(payload.WorkspaceID))
}

// handleGetMessages answers a manual history refresh with the same window
// the catch-up batch uses, delivered only to the requesting connection.
func (p *Pipeline) handleGetMessages(c *Client, data json.RawMessage) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.WorkspaceID == "" {
		fmt.Printf("⚠️ Dropping malformed get_messages from user %s\n", c.UserID)
		return
	}
	if _, err := p.db.GetMember(payload.WorkspaceID, c.UserID); err != nil {
		return
	}
	messages, err := p.History(payload.WorkspaceID)
	if err != nil {
		fmt.Printf("⚠️ Failed to load history for workspace %s: %v\n", payload.WorkspaceID, err)
		return
	}
	p.sendTo(c, EventLoadMessages, map[string]interface{}{
		"workspace_id": payload.WorkspaceID,
		"messages":     messages,
	})
}

// Deliver persists a message with its retention window. Shared by the
// socket path and the REST fallback; only the socket path broadcasts.
func (p *Pipeline) Deliver(workspaceID, senderID, clientID, text string) (*models.Message, error) {
	if _, err := p.db.GetMember(workspaceID, senderID); err != nil {
		return nil, ErrNotAMember
	}
	sender, err := p.db.GetUserByID(senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender: %w", err)
	}

	now := time.Now()
	msg := &models.Message{
		ID:          clientID,
		WorkspaceID: workspaceID,
		Sender: models.MessageSender{
			ID:     sender.ID,
			Name:   sender.Name,
			Avatar: sender.Avatar,
		},
		Text:      text,
		CreatedAt: now,
		ExpiresAt: now.Add(models.MessageTTL),
	}
	if err := p.db.SaveMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the most recent unexpired messages, oldest first.
func (p *Pipeline) History(workspaceID string) ([]models.Message, error) {
	messages, err := p.db.ListRecentMessages(workspaceID, CatchUpLimit, time.Now())
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// HistoryFor is the membership-gated history read used by the REST surface.
func (p *Pipeline) HistoryFor(workspaceID, userID string) ([]models.Message, error) {
	if _, err := p.db.GetMember(workspaceID, userID); err != nil {
		return nil, ErrNotAMember
	}
	return p.History(workspaceID)
}

// sendTo delivers an event to a single connection.
func (p *Pipeline) sendTo(c *Client, event string, data interface{}) {
	out, err := json.Marshal(Event{Event: event, Data: mustMarshal(data)})
	if err != nil {
		fmt.Printf("⚠️ Failed to encode %s event: %v\n", event, err)
		return
	}
	select {
	case c.Send <- out:
	default:
		fmt.Printf("⚠️ Dropping %s for slow connection %s\n", event, c.ID)
	}
}

func mustMarshal(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
