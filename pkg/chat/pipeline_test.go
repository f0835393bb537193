package chat

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*Pipeline, database.DatabaseInterface, *models.User, *models.Workspace) {
	t.Helper()
	db := database.NewMemoryDatabase()

	user := &models.User{Email: "alice@example.com", Name: "Alice", Avatar: "a.png"}
	require.NoError(t, db.CreateUser(user))

	ws := &models.Workspace{Name: "Acme", OwnerID: user.ID, InviteCode: "JOINACME", InviteCodeActive: true}
	require.NoError(t, db.CreateWorkspace(ws))
	require.NoError(t, db.AddMember(&models.Member{WorkspaceID: ws.ID, UserID: user.ID, Role: models.RoleOwner}))

	return NewPipeline(db, NewHub()), db, user, ws
}

func addMemberUser(t *testing.T, db database.DatabaseInterface, ws *models.Workspace, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email}
	require.NoError(t, db.CreateUser(u))
	require.NoError(t, db.AddMember(&models.Member{WorkspaceID: ws.ID, UserID: u.ID, Role: models.RoleMember}))
	return u
}

// testClient builds a client without a live websocket; pumps are not run.
func testClient(p *Pipeline, userID string, connID string) *Client {
	c := NewClient(connID, userID, nil, p)
	p.hub.Register(c)
	return c
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestDeliverSetsRetentionWindow(t *testing.T) {
	p, _, user, ws := newTestPipeline(t)

	msg, err := p.Deliver(ws.ID, user.ID, "msg-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, ws.ID, msg.WorkspaceID)
	assert.Equal(t, user.ID, msg.Sender.ID)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.Equal(t, msg.CreatedAt.Add(models.MessageTTL), msg.ExpiresAt)
	assert.Equal(t, 48*time.Hour, models.MessageTTL)
}

func TestDeliverRequiresMembership(t *testing.T) {
	p, db, _, ws := newTestPipeline(t)

	outsider := &models.User{Email: "evil@example.com"}
	require.NoError(t, db.CreateUser(outsider))

	_, err := p.Deliver(ws.ID, outsider.ID, "msg-1", "hi")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestDeliverDedupByClientID(t *testing.T) {
	p, _, user, ws := newTestPipeline(t)

	_, err := p.Deliver(ws.ID, user.ID, "dup-1", "first")
	require.NoError(t, err)
	// Replaying the id with different text must not touch the stored copy
	_, err = p.Deliver(ws.ID, user.ID, "dup-1", "rewritten")
	require.NoError(t, err)

	history, err := p.History(ws.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "dup-1", history[0].ID)
	assert.Equal(t, "first", history[0].Text)
}

func TestHistoryWindowAndOrdering(t *testing.T) {
	p, db, user, ws := newTestPipeline(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < CatchUpLimit+5; i++ {
		created := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, db.SaveMessage(&models.Message{
			ID:          fmt.Sprintf("m-%03d", i),
			WorkspaceID: ws.ID,
			Sender:      models.MessageSender{ID: user.ID, Name: user.Name},
			Text:        "x",
			CreatedAt:   created,
			ExpiresAt:   created.Add(models.MessageTTL),
		}))
	}

	history, err := p.History(ws.ID)
	require.NoError(t, err)
	require.Len(t, history, CatchUpLimit)

	// Oldest five fell outside the window; the rest arrive ascending
	assert.Equal(t, "m-005", history[0].ID)
	assert.Equal(t, fmt.Sprintf("m-%03d", CatchUpLimit+4), history[len(history)-1].ID)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].CreatedAt.Before(history[i].CreatedAt))
	}
}

func TestHistoryExcludesExpired(t *testing.T) {
	p, db, user, ws := newTestPipeline(t)

	old := time.Now().Add(-49 * time.Hour)
	require.NoError(t, db.SaveMessage(&models.Message{
		ID:          "expired-1",
		WorkspaceID: ws.ID,
		Sender:      models.MessageSender{ID: user.ID},
		Text:        "gone",
		CreatedAt:   old,
		ExpiresAt:   old.Add(models.MessageTTL),
	}))
	_, err := p.Deliver(ws.ID, user.ID, "fresh-1", "still here")
	require.NoError(t, err)

	history, err := p.History(ws.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fresh-1", history[0].ID)
}

func TestHistoryForRequiresMembership(t *testing.T) {
	p, db, user, ws := newTestPipeline(t)

	outsider := &models.User{Email: "evil@example.com"}
	require.NoError(t, db.CreateUser(outsider))

	_, err := p.HistoryFor(ws.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotAMember)

	messages, err := p.HistoryFor(ws.ID, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, messages)
}

func TestSendBroadcastsToRoomIncludingSender(t *testing.T) {
	p, db, alice, ws := newTestPipeline(t)
	bob := addMemberUser(t, db, ws, "bob@example.com")

	sender := testClient(p, alice.ID, "conn-alice")
	receiver := testClient(p, bob.ID, "conn-bob")
	p.hub.JoinRoom(sender.ID, RoomID(ws.ID))
	p.hub.JoinRoom(receiver.ID, RoomID(ws.ID))

	frame, _ := json.Marshal(Event{
		Event: EventSendMessage,
		Data:  json.RawMessage(fmt.Sprintf(`{"id":"msg-1","workspace_id":"%s","text":"hi all"}`, ws.ID)),
	})
	p.HandleEvent(sender, frame)

	// The sender renders from its own broadcast copy, not the send call
	for _, c := range []*Client{sender, receiver} {
		ev := recvEvent(t, c)
		assert.Equal(t, EventReceiveMessage, ev.Event)
		var msg models.Message
		require.NoError(t, json.Unmarshal(ev.Data, &msg))
		assert.Equal(t, "msg-1", msg.ID)
		assert.Equal(t, alice.ID, msg.Sender.ID)
		assert.Equal(t, "hi all", msg.Text)
	}
}

func TestMalformedSendIsDroppedSilently(t *testing.T) {
	p, _, alice, ws := newTestPipeline(t)

	sender := testClient(p, alice.ID, "conn-alice")
	p.hub.JoinRoom(sender.ID, RoomID(ws.ID))

	// Missing text: dropped, no error frame, nothing persisted
	frame, _ := json.Marshal(Event{
		Event: EventSendMessage,
		Data:  json.RawMessage(fmt.Sprintf(`{"id":"msg-1","workspace_id":"%s"}`, ws.ID)),
	})
	p.HandleEvent(sender, frame)

	// Not even valid JSON: same treatment
	p.HandleEvent(sender, []byte("{nope"))

	select {
	case raw := <-sender.Send:
		t.Fatalf("expected no response, got %s", raw)
	case <-time.After(50 * time.Millisecond):
	}

	history, err := p.History(ws.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestJoinRequiresMembership(t *testing.T) {
	p, db, _, ws := newTestPipeline(t)

	outsider := &models.User{Email: "evil@example.com"}
	require.NoError(t, db.CreateUser(outsider))
	c := testClient(p, outsider.ID, "conn-evil")

	frame, _ := json.Marshal(Event{
		Event: EventJoinWorkspace,
		Data:  json.RawMessage(fmt.Sprintf(`{"workspace_id":"%s"}`, ws.ID)),
	})
	p.HandleEvent(c, frame)

	assert.False(t, p.hub.InRoom(c.ID, RoomID(ws.ID)))
}

func TestGetMessagesEvent(t *testing.T) {
	p, _, alice, ws := newTestPipeline(t)

	_, err := p.Deliver(ws.ID, alice.ID, "msg-1", "history entry")
	require.NoError(t, err)

	c := testClient(p, alice.ID, "conn-alice")
	frame, _ := json.Marshal(Event{
		Event: EventGetMessages,
		Data:  json.RawMessage(fmt.Sprintf(`{"workspace_id":"%s"}`, ws.ID)),
	})
	p.HandleEvent(c, frame)

	ev := recvEvent(t, c)
	assert.Equal(t, EventLoadMessages, ev.Event)
	var batch struct {
		WorkspaceID string           `json:"workspace_id"`
		Messages    []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &batch))
	assert.Equal(t, ws.ID, batch.WorkspaceID)
	require.Len(t, batch.Messages, 1)
	assert.Equal(t, "msg-1", batch.Messages[0].ID)
}

func TestPingPong(t *testing.T) {
	p, _, alice, _ := newTestPipeline(t)
	c := testClient(p, alice.ID, "conn-alice")

	frame, _ := json.Marshal(Event{Event: EventPing})
	p.HandleEvent(c, frame)

	ev := recvEvent(t, c)
	assert.Equal(t, EventPong, ev.Event)
}
