package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathub/internal/app/user"
	"chathub/internal/realtime"
)

type fakeSession struct {
	inbound chan []byte
	writes  chan clientFrame

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inbound: make(chan []byte, 16),
		writes:  make(chan clientFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSession) Read() ([]byte, error) {
	select {
	case raw := <-s.inbound:
		return raw, nil
	case <-s.closed:
		return nil, errors.New("session closed")
	}
}

func (s *fakeSession) WriteJSON(v any) error {
	frame, ok := v.(clientFrame)
	if !ok {
		return errors.New("unexpected frame type")
	}

	select {
	case s.writes <- frame:
		return nil
	case <-s.closed:
		return errors.New("session closed")
	}
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// deliver pushes one wire event into the session's read stream.
func (s *fakeSession) deliver(t *testing.T, name, channel string, payload any) {
	t.Helper()

	ev, err := realtime.NewEvent(name, channel, payload)
	require.NoError(t, err)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	s.inbound <- raw
}

func (s *fakeSession) nextFrame(t *testing.T) clientFrame {
	t.Helper()

	select {
	case frame := <-s.writes:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return clientFrame{}
	}
}

func (s *fakeSession) assertNoFrame(t *testing.T) {
	t.Helper()

	select {
	case frame := <-s.writes:
		t.Fatalf("unexpected frame written: %+v", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeTransport struct {
	sessions chan *fakeSession
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessions: make(chan *fakeSession, 4)}
}

func (f *fakeTransport) Dial(ctx context.Context) (Session, error) {
	select {
	case s := <-f.sessions:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeReconciler struct {
	calls chan []int64
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{calls: make(chan []int64, 4)}
}

func (f *fakeReconciler) Reconcile(_ context.Context, roomIDs []int64) error {
	f.calls <- append([]int64(nil), roomIDs...)
	return nil
}

func (f *fakeReconciler) nextCall(t *testing.T) []int64 {
	t.Helper()

	select {
	case rooms := <-f.calls:
		return rooms
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconcile call")
		return nil
	}
}

func TestManagerConnectResubscribesAndReconciles(t *testing.T) {
	assert := assert.New(t)

	transport := newFakeTransport()
	reconciler := newFakeReconciler()
	session := newFakeSession()
	transport.sessions <- session

	m := NewManager(Config{Transport: transport, Reconciler: reconciler})
	defer m.Close()

	// Rooms joined before connecting subscribe on the first session.
	assert.NoError(m.JoinRoom(42))
	m.Start()

	assert.Equal(clientFrame{Action: realtime.ActionSubscribe, Channel: realtime.PresenceChannelName}, session.nextFrame(t))
	assert.Equal(clientFrame{Action: realtime.ActionSubscribe, Channel: "chat-room.42"}, session.nextFrame(t))

	assert.Equal([]int64{42}, reconciler.nextCall(t))
	assert.Equal(StateReady, m.State())
}

func TestManagerJoinRoomIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	transport := newFakeTransport()
	session := newFakeSession()
	transport.sessions <- session

	m := NewManager(Config{Transport: transport})
	defer m.Close()

	m.Start()
	session.nextFrame(t) // presence subscribe

	assert.NoError(m.JoinRoom(42))
	assert.Equal("chat-room.42", session.nextFrame(t).Channel)

	// The second join registers nothing new.
	assert.NoError(m.JoinRoom(42))
	session.assertNoFrame(t)
}

func TestManagerLeaveRoomUnsubscribesBeforeForgetting(t *testing.T) {
	assert := assert.New(t)

	transport := newFakeTransport()
	session := newFakeSession()
	transport.sessions <- session

	m := NewManager(Config{Transport: transport})
	defer m.Close()

	m.Start()
	session.nextFrame(t) // presence subscribe

	assert.NoError(m.JoinRoom(42))
	session.nextFrame(t)

	assert.NoError(m.LeaveRoom(42))
	frame := session.nextFrame(t)
	assert.Equal(realtime.ActionUnsubscribe, frame.Action)
	assert.Equal("chat-room.42", frame.Channel)

	// Leaving again is a no-op.
	assert.NoError(m.LeaveRoom(42))
	session.assertNoFrame(t)

	// Rejoining after a full leave subscribes again.
	assert.NoError(m.JoinRoom(42))
	assert.Equal(realtime.ActionSubscribe, session.nextFrame(t).Action)
}

func TestManagerReconnectRerunsCatchUp(t *testing.T) {
	assert := assert.New(t)

	transport := newFakeTransport()
	reconciler := newFakeReconciler()

	first := newFakeSession()
	second := newFakeSession()
	transport.sessions <- first
	transport.sessions <- second

	m := NewManager(Config{Transport: transport, Reconciler: reconciler})
	defer m.Close()

	m.Start()
	assert.NoError(m.JoinRoom(42))

	first.nextFrame(t) // presence subscribe
	reconciler.nextCall(t)

	// The connection drops; the manager redials and recovers continuity
	// through subscriptions plus a fresh catch-up fetch, never bus replay.
	first.Close()

	assert.Equal(realtime.PresenceChannelName, second.nextFrame(t).Channel)
	assert.Equal("chat-room.42", second.nextFrame(t).Channel)
	assert.Equal([]int64{42}, reconciler.nextCall(t))
}

func TestManagerDispatchesTypedEvents(t *testing.T) {
	assert := assert.New(t)

	transport := newFakeTransport()
	session := newFakeSession()
	transport.sessions <- session

	messages := make(chan realtime.MessagePayload, 1)
	here := make(chan realtime.HerePayload, 1)
	revoked := make(chan string, 1)

	m := NewManager(Config{
		Transport: transport,
		Handlers: Handlers{
			OnMessageSent:  func(p realtime.MessagePayload) { messages <- p },
			OnPresenceHere: func(_ string, p realtime.HerePayload) { here <- p },
			OnRevoked:      func(channel string) { revoked <- channel },
		},
	})
	defer m.Close()

	m.Start()
	session.nextFrame(t)

	assert.NoError(m.JoinRoom(42))
	session.nextFrame(t)

	session.deliver(t, realtime.EventMessageSent, "chat-room.42", realtime.MessagePayload{
		Message: realtime.Message{ID: 501, RoomID: 42, Content: "hello"},
		RoomID:  42,
	})

	select {
	case p := <-messages:
		assert.Equal(int64(501), p.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message callback")
	}

	session.deliver(t, realtime.EventPresenceHere, realtime.PresenceChannelName, realtime.HerePayload{
		Users: []user.User{{ID: 1, Name: "alice"}},
	})

	select {
	case p := <-here:
		assert.Len(p.Users, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence snapshot callback")
	}

	// Unknown event kinds are ignored without disturbing the stream.
	session.deliver(t, "future.event", "chat-room.42", map[string]string{"x": "y"})

	// A revocation surfaces and drops the local room handle, so the next
	// reconnect will not resubscribe it.
	session.deliver(t, realtime.EventSubscribeRevoked, "chat-room.42", realtime.SubscriptionPayload{Channel: "chat-room.42"})

	select {
	case channel := <-revoked:
		assert.Equal("chat-room.42", channel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for revocation callback")
	}

	assert.Empty(m.joinedRooms())
}
