package realtime

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathub/internal/app/user"
)

// drainEvents empties the connection's send queue into decoded events.
func drainEvents(t *testing.T, c *Conn) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case raw := <-c.send:
			var ev Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventNames(events []Event) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	return names
}

func newTestConn(hub *Hub, u user.User) *Conn {
	return NewConn(hub, nil, u, nil)
}

func TestHubPresenceSnapshotBeforeDiff(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()
	presence := mustParse(t, PresenceChannelName)

	alice := newTestConn(hub, user.User{ID: 1, Name: "alice"})
	bob := newTestConn(hub, user.User{ID: 2, Name: "bob"})

	hub.Subscribe(alice, presence)

	events := drainEvents(t, alice)
	assert.Equal([]string{EventSubscribeSucceeded, EventPresenceHere}, eventNames(events))

	var here HerePayload
	assert.NoError(json.Unmarshal(events[1].Data, &here))
	assert.Equal([]user.User{{ID: 1, Name: "alice"}}, here.Users)

	hub.Subscribe(bob, presence)

	// Bob observes the ack and the full snapshot, himself included.
	events = drainEvents(t, bob)
	assert.Equal([]string{EventSubscribeSucceeded, EventPresenceHere}, eventNames(events))
	assert.NoError(json.Unmarshal(events[1].Data, &here))
	assert.Len(here.Users, 2)

	// Alice observes only the incremental join.
	events = drainEvents(t, alice)
	assert.Equal([]string{EventPresenceJoining}, eventNames(events))

	var roster RosterPayload
	assert.NoError(json.Unmarshal(events[0].Data, &roster))
	assert.Equal(int64(2), roster.User.ID)
}

func TestHubPresenceDuplicateConnections(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()
	presence := mustParse(t, PresenceChannelName)

	observer := newTestConn(hub, user.User{ID: 1, Name: "observer"})
	tab1 := newTestConn(hub, user.User{ID: 2, Name: "bob"})
	tab2 := newTestConn(hub, user.User{ID: 2, Name: "bob"})

	hub.Subscribe(observer, presence)
	drainEvents(t, observer)

	// Only the first of N connections announces a join.
	hub.Subscribe(tab1, presence)
	assert.Equal([]string{EventPresenceJoining}, eventNames(drainEvents(t, observer)))

	hub.Subscribe(tab2, presence)
	assert.Empty(drainEvents(t, observer))

	// Only the last of N disconnections announces a departure.
	hub.DropConnection(tab1)
	assert.Empty(drainEvents(t, observer))

	hub.DropConnection(tab2)
	assert.Equal([]string{EventPresenceLeaving}, eventNames(drainEvents(t, observer)))
}

func TestHubPublishOrderPreserved(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()
	room := mustParse(t, "chat-room.1")

	sub := newTestConn(hub, user.User{ID: 1})
	hub.Subscribe(sub, room)
	drainEvents(t, sub)

	for i := 0; i < 20; i++ {
		ev, err := NewEvent(EventMessageSent, room.Name, map[string]int{"seq": i})
		assert.NoError(err)
		hub.Publish(ev)
	}

	events := drainEvents(t, sub)
	assert.Len(events, 20)
	for i, ev := range events {
		var payload map[string]int
		assert.NoError(json.Unmarshal(ev.Data, &payload))
		assert.Equal(i, payload["seq"], "event %d delivered out of order", i)
	}
}

func TestHubPublishExceptSkipsSender(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()
	room := mustParse(t, "chat-room.1")

	sender := newTestConn(hub, user.User{ID: 1})
	receiver := newTestConn(hub, user.User{ID: 2})
	hub.Subscribe(sender, room)
	hub.Subscribe(receiver, room)
	drainEvents(t, sender)
	drainEvents(t, receiver)

	ev, err := NewEvent(EventUserTyping, room.Name, TypingPayload{RoomID: 1, IsTyping: true})
	assert.NoError(err)
	hub.PublishExcept(ev, sender)

	assert.Empty(drainEvents(t, sender))
	assert.Len(drainEvents(t, receiver), 1)
}

func TestHubRevoke(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()
	room := mustParse(t, "chat-room.1")

	removed := newTestConn(hub, user.User{ID: 1})
	remaining := newTestConn(hub, user.User{ID: 2})
	hub.Subscribe(removed, room)
	hub.Subscribe(remaining, room)
	drainEvents(t, removed)
	drainEvents(t, remaining)

	hub.Revoke(room.Name, 1)

	// The revoked user is told, and stops receiving.
	assert.Equal([]string{EventSubscribeRevoked}, eventNames(drainEvents(t, removed)))

	ev, err := NewEvent(EventMessageSent, room.Name, map[string]int{"seq": 0})
	assert.NoError(err)
	hub.Publish(ev)

	assert.Empty(drainEvents(t, removed))
	assert.Len(drainEvents(t, remaining), 1)
}

func TestHubDropConnectionDetachesEverywhere(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()

	c := newTestConn(hub, user.User{ID: 1})
	for room := 1; room <= 3; room++ {
		hub.Subscribe(c, mustParse(t, fmt.Sprintf("chat-room.%d", room)))
	}
	drainEvents(t, c)

	hub.DropConnection(c)

	for room := 1; room <= 3; room++ {
		ev, err := NewEvent(EventMessageSent, RoomChannel(int64(room)), map[string]int{"seq": 0})
		assert.NoError(err)
		hub.Publish(ev)
	}

	assert.Empty(drainEvents(t, c))
	assert.Empty(c.trackedChannels())
}

func TestHubDuplicateSubscribeIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	hub := NewHub()
	room := mustParse(t, "chat-room.1")

	c := newTestConn(hub, user.User{ID: 1})
	hub.Subscribe(c, room)
	drainEvents(t, c)

	// A repeated subscribe neither re-acks nor duplicates delivery.
	hub.Subscribe(c, room)
	assert.Empty(drainEvents(t, c))

	ev, err := NewEvent(EventMessageSent, room.Name, map[string]int{"seq": 0})
	assert.NoError(err)
	hub.Publish(ev)

	assert.Len(drainEvents(t, c), 1)
}
