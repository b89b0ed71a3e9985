package client

import (
	"sort"
	"sync"
	"time"

	"chathub/internal/app/user"
)

const (
	// TypingInactivity is how long after the last keystroke the sender
	// emits the stop signal.
	TypingInactivity = 3 * time.Second

	// TypingExpiry is how long a receiver shows a typing indicator with no
	// follow-up signal. Longer than TypingInactivity so a delivered stop
	// normally wins, but bounded so a lost stop cannot pin the indicator.
	TypingExpiry = 5 * time.Second
)

// TypingEmitter sends one typing signal for a room. The subscription
// manager satisfies this.
type TypingEmitter interface {
	SendTyping(roomID int64, isTyping bool) error
}

// TypingSender debounces keystrokes into at most one start signal per
// burst, with a stop after TypingInactivity of silence. One sender per
// composer input.
type TypingSender struct {
	emitter TypingEmitter
	roomID  int64

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

// NewTypingSender builds a sender bound to one room.
func NewTypingSender(emitter TypingEmitter, roomID int64) *TypingSender {
	return &TypingSender{emitter: emitter, roomID: roomID}
}

// Keystroke registers input activity. The first keystroke of a burst emits
// the start signal; every keystroke pushes the inactivity deadline out.
func (t *TypingSender) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(TypingInactivity, t.inactivityStop)

	if !t.active {
		t.active = true
		_ = t.emitter.SendTyping(t.roomID, true)
	}
}

// Stop ends the burst immediately, as when the composed message is sent or
// the input cleared. Emits the stop signal only if a burst was active.
func (t *TypingSender) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *TypingSender) inactivityStop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *TypingSender) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	if t.active {
		t.active = false
		_ = t.emitter.SendTyping(t.roomID, false)
	}
}

// TypingTracker is the receiver side: it holds who is typing in each room,
// expiring entries that never got their stop signal. Reads are cheap
// enough for render loops.
type TypingTracker struct {
	expiry time.Duration
	now    func() time.Time

	mu    sync.Mutex
	rooms map[int64]map[int64]typingEntry
}

type typingEntry struct {
	user     user.User
	deadline time.Time
}

// NewTypingTracker builds a tracker with the default expiry.
func NewTypingTracker() *TypingTracker {
	return newTypingTracker(TypingExpiry, time.Now)
}

func newTypingTracker(expiry time.Duration, now func() time.Time) *TypingTracker {
	return &TypingTracker{
		expiry: expiry,
		now:    now,
		rooms:  make(map[int64]map[int64]typingEntry),
	}
}

// Apply folds in one typing signal. A start refreshes the user's deadline;
// a stop removes the entry. Later signals supersede earlier ones.
func (t *TypingTracker) Apply(roomID int64, u user.User, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		if !isTyping {
			return
		}
		room = make(map[int64]typingEntry)
		t.rooms[roomID] = room
	}

	if isTyping {
		room[u.ID] = typingEntry{user: u, deadline: t.now().Add(t.expiry)}
	} else {
		delete(room, u.ID)
	}
}

// Typing returns who is currently typing in the room, sorted by user ID.
// Expired entries are dropped on the way out, so an indicator whose stop
// signal was lost still converges to empty.
func (t *TypingTracker) Typing(roomID int64) []user.User {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil
	}

	now := t.now()
	users := make([]user.User, 0, len(room))
	for id, entry := range room {
		if now.After(entry.deadline) {
			delete(room, id)
			continue
		}
		users = append(users, entry.user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// Clear forgets all typing state for the room, as on leave or revoke.
func (t *TypingTracker) Clear(roomID int64) {
	t.mu.Lock()
	delete(t.rooms, roomID)
	t.mu.Unlock()
}
