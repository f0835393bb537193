package models

import "time"

// MessageTTL is how long a chat message is retained before the store
// purges it. Expiry is the only deletion mechanism for messages.
const MessageTTL = 48 * time.Hour

// MessageSender carries the denormalized sender identity stored on each
// message so history can render without joining users.
type MessageSender struct {
	ID     string `json:"id" db:"sender_id"`
	Name   string `json:"name" db:"sender_name"`
	Avatar string `json:"avatar,omitempty" db:"sender_avatar"`
}

// Message is a chat message in a workspace room. The ID is generated by the
// sending client so it can reconcile its optimistic copy against the
// broadcast copy without duplication. Messages are immutable once stored.
type Message struct {
	ID          string        `json:"id" db:"id"`
	WorkspaceID string        `json:"workspace_id" db:"workspace_id"`
	Sender      MessageSender `json:"sender"`
	Text        string        `json:"text" db:"text"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the message has passed its retention boundary.
func (m *Message) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
