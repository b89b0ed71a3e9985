package client

import (
	"context"
	"sort"
	"sync"

	"chathub/internal/app/user"
	"chathub/internal/realtime"
)

// ReadMarker persists the "caught up" position for a room. The chat state
// calls it when a room gains focus; on failure the local unread count is
// kept so the badge stays honest.
type ReadMarker interface {
	MarkRead(ctx context.Context, roomID int64) error
}

// RoomView is the per-room slice of the chat state.
type RoomView struct {
	Messages    []realtime.Message
	UnreadCount int
}

// ChatState is the client-side delivery state: per-room message lists
// merged idempotently, unread counters, and the online roster. Safe for
// concurrent use; event callbacks and UI reads may race freely.
type ChatState struct {
	mu sync.Mutex

	rooms   map[int64]*roomState
	focused int64

	online map[int64]user.User

	readMarker ReadMarker
}

type roomState struct {
	order  []int64
	byID   map[int64]*realtime.Message
	unread int
}

// NewChatState builds an empty state. readMarker may be nil when read
// positions are not persisted.
func NewChatState(readMarker ReadMarker) *ChatState {
	return &ChatState{
		rooms:      make(map[int64]*roomState),
		online:     make(map[int64]user.User),
		readMarker: readMarker,
	}
}

// MergeMessage applies one message.sent delivery. Duplicate IDs collapse to
// a single entry, so redelivery after a reconnect cannot double-render.
// The unread counter grows only for rooms other than the focused one.
func (s *ChatState) MergeMessage(msg realtime.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.roomLocked(msg.RoomID)
	if _, ok := room.byID[msg.ID]; ok {
		return
	}

	stored := msg
	room.byID[msg.ID] = &stored
	room.order = append(room.order, msg.ID)

	if msg.RoomID != s.focused {
		room.unread++
	}
}

// ApplyUpdate replaces an existing message in place. Updates for messages
// the client never received are dropped; the catch-up fetch will deliver
// the edited form.
func (s *ChatState) ApplyUpdate(msg realtime.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return
	}

	if _, ok := room.byID[msg.ID]; ok {
		stored := msg
		room.byID[msg.ID] = &stored
	}
}

// RemoveMessage applies a deletion. Removing an absent message is a no-op.
func (s *ChatState) RemoveMessage(roomID, messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room.byID[messageID]; !ok {
		return
	}

	delete(room.byID, messageID)
	for i, id := range room.order {
		if id == messageID {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}
}

// MergeHistory folds one catch-up page into the room. Pages arrive
// oldest-first; messages already delivered live keep their single entry.
func (s *ChatState) MergeHistory(roomID int64, page []realtime.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.roomLocked(roomID)
	changed := false

	for _, msg := range page {
		if _, ok := room.byID[msg.ID]; ok {
			continue
		}
		stored := msg
		room.byID[msg.ID] = &stored
		room.order = append(room.order, msg.ID)
		changed = true
	}

	if changed {
		sort.Slice(room.order, func(i, j int) bool { return room.order[i] < room.order[j] })
	}
}

// FocusRoom switches the active room and clears its unread counter, first
// persisting the read position. If persistence fails the counter is kept.
func (s *ChatState) FocusRoom(ctx context.Context, roomID int64) error {
	s.mu.Lock()
	s.focused = roomID
	s.mu.Unlock()

	if s.readMarker != nil {
		if err := s.readMarker.MarkRead(ctx, roomID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if room, ok := s.rooms[roomID]; ok {
		room.unread = 0
	}
	s.mu.Unlock()

	return nil
}

// Blur drops room focus; subsequent deliveries count as unread everywhere.
func (s *ChatState) Blur() {
	s.mu.Lock()
	s.focused = 0
	s.mu.Unlock()
}

// Room returns a copy of the room's view, ordered oldest-first.
func (s *ChatState) Room(roomID int64) RoomView {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return RoomView{}
	}

	view := RoomView{
		Messages:    make([]realtime.Message, 0, len(room.order)),
		UnreadCount: room.unread,
	}
	for _, id := range room.order {
		view.Messages = append(view.Messages, *room.byID[id])
	}
	return view
}

// UnreadCount reports the room's unread counter.
func (s *ChatState) UnreadCount(roomID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		return room.unread
	}
	return 0
}

// SetOnline replaces the roster with a presence.here snapshot.
func (s *ChatState) SetOnline(users []user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[int64]user.User, len(users))
	for _, u := range users {
		s.online[u.ID] = u
	}
}

// UserOnline applies a presence.joining diff.
func (s *ChatState) UserOnline(u user.User) {
	s.mu.Lock()
	s.online[u.ID] = u
	s.mu.Unlock()
}

// UserOffline applies a presence.leaving diff.
func (s *ChatState) UserOffline(userID int64) {
	s.mu.Lock()
	delete(s.online, userID)
	s.mu.Unlock()
}

// Online returns the roster sorted by user ID.
func (s *ChatState) Online() []user.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]user.User, 0, len(s.online))
	for _, u := range s.online {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// IsOnline reports whether the user is in the roster.
func (s *ChatState) IsOnline(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

func (s *ChatState) roomLocked(roomID int64) *roomState {
	room, ok := s.rooms[roomID]
	if !ok {
		room = &roomState{byID: make(map[int64]*realtime.Message)}
		s.rooms[roomID] = room
	}
	return room
}
