package realtime

import (
	"encoding/json"
	"time"

	"chathub/internal/app/user"
)

// Event names carried on the wire. Message and membership events originate
// from durable mutations; typing and presence events are ephemeral.
const (
	EventMessageSent    = "message.sent"
	EventMessageUpdated = "message.updated"
	EventMessageDeleted = "message.deleted"

	EventUserJoined = "user.joined"
	EventUserLeft   = "user.left"
	EventUserTyping = "user.typing"

	EventPresenceHere    = "presence.here"
	EventPresenceJoining = "presence.joining"
	EventPresenceLeaving = "presence.leaving"

	EventSubscribeSucceeded = "subscription.succeeded"
	EventSubscribeError     = "subscription.error"
	EventSubscribeRevoked   = "subscription.revoked"
)

// Event is the wire envelope delivered to subscribers: a named payload
// tagged with its target channel. Events are immutable once built.
type Event struct {
	Name    string          `json:"name"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// NewEvent builds an Event by marshaling the kind-specific payload.
func NewEvent(name, channel string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Name: name, Channel: channel, Data: data}, nil
}

// Message is the full wire representation of a chat message. Message events
// carry it whole, attachments and edit state included, so a client never
// needs a follow-up fetch to render one.
type Message struct {
	ID          int64        `json:"id"`
	RoomID      int64        `json:"room_id"`
	User        user.User    `json:"user"`
	Content     string       `json:"content"`
	Type        string       `json:"type"`
	ReplyTo     *int64       `json:"reply_to,omitempty"`
	IsEdited    bool         `json:"is_edited"`
	EditedAt    *time.Time   `json:"edited_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a stored file reference on a message.
type Attachment struct {
	ID       int64  `json:"id"`
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// MessagePayload is the data of message.sent / message.updated / message.deleted.
type MessagePayload struct {
	Message Message `json:"message"`
	RoomID  int64   `json:"room_id"`
}

// MemberPayload is the data of user.joined / user.left.
type MemberPayload struct {
	User   user.User `json:"user"`
	RoomID int64     `json:"room_id"`
}

// TypingPayload is the data of user.typing. Typing signals are transient:
// never persisted, never redelivered, never part of room history.
type TypingPayload struct {
	User     user.User `json:"user"`
	RoomID   int64     `json:"room_id"`
	IsTyping bool      `json:"is_typing"`
}

// HerePayload is the data of presence.here: the roster snapshot handed to a
// subscriber at subscribe time, before any diff it will observe.
type HerePayload struct {
	Users []user.User `json:"users"`
}

// RosterPayload is the data of presence.joining / presence.leaving.
type RosterPayload struct {
	User user.User `json:"user"`
}

// SubscriptionPayload is the data of the subscription lifecycle events.
type SubscriptionPayload struct {
	Channel string `json:"channel"`
}

// SubscriptionErrorPayload is the data of subscription.error.
type SubscriptionErrorPayload struct {
	Channel string `json:"channel"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
