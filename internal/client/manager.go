/*
Package client contains the client-side counterpart of the realtime plane:
the subscription manager that owns the socket lifecycle, the delivery
state that merges incoming events idempotently, and the typing
coordinator.
*/
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chathub/internal/pkg/logx"
	"chathub/internal/realtime"
)

// State is the connection lifecycle of the subscription manager.
// Transitions are guarded; retry edges lead back to StateDisconnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribing
	StateReady
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribing:
		return "subscribing"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	// dialTimeout bounds one transport connect attempt.
	dialTimeout = 10 * time.Second

	// backoff bounds for reconnect attempts.
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Handlers is the typed callback surface, one per event kind. Nil
// callbacks and unknown event kinds are ignored, never fatal.
type Handlers struct {
	OnMessageSent    func(realtime.MessagePayload)
	OnMessageUpdated func(realtime.MessagePayload)
	OnMessageDeleted func(realtime.MessagePayload)

	OnMemberJoined func(realtime.MemberPayload)
	OnMemberLeft   func(realtime.MemberPayload)
	OnTyping       func(realtime.TypingPayload)

	OnPresenceHere    func(channel string, payload realtime.HerePayload)
	OnPresenceJoining func(realtime.RosterPayload)
	OnPresenceLeaving func(realtime.RosterPayload)

	OnSubscribeError func(realtime.SubscriptionErrorPayload)
	OnRevoked        func(channel string)

	// OnStateChange surfaces connection status so the UI can show a
	// "reconnecting" indicator instead of retrying silently forever.
	OnStateChange func(State)
}

// Reconciler is the catch-up collaborator invoked after every transition
// to StateReady. The transport may have missed events while disconnected,
// so continuity is recovered by a pull-based history read, never by bus
// replay.
type Reconciler interface {
	Reconcile(ctx context.Context, roomIDs []int64) error
}

// Config configures a Manager.
type Config struct {
	// URL is the websocket endpoint.
	URL string

	// Token is the bearer credential bound to the connection.
	Token string

	Handlers   Handlers
	Reconciler Reconciler

	// Transport overrides the websocket transport. Nil selects the
	// default gorilla dialer; tests inject fakes here.
	Transport Transport
}

// Manager owns the client's channel subscriptions and the socket
// lifecycle. It is an explicitly owned instance: create it when an
// authenticated session starts, Close it on logout. All methods are safe
// for concurrent use.
type Manager struct {
	transport  Transport
	handlers   Handlers
	reconciler Reconciler

	mu      sync.Mutex
	state   State
	session Session
	rooms   map[int64]struct{}

	// sessionRooms are the rooms already subscribed on the current session,
	// claimed before writing so JoinRoom and resubscribe never both send a
	// subscribe frame for the same room.
	sessionRooms map[int64]struct{}

	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// NewManager builds a Manager. Call Start to connect.
func NewManager(cfg Config) *Manager {
	transport := cfg.Transport
	if transport == nil {
		transport = newWebsocketTransport(cfg.URL, cfg.Token)
	}

	return &Manager{
		transport:  transport,
		handlers:   cfg.Handlers,
		reconciler: cfg.Reconciler,
		state:      StateDisconnected,
		rooms:      make(map[int64]struct{}),
		closed:     make(chan struct{}),
		logger:     logx.Logger().With().Str("component", "subscription_manager").Logger(),
	}
}

// Start launches the connection loop.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
}

// Close tears the manager down: the session closes, pending deliveries for
// its subscriptions are cancelled with it, and the run loop exits.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.closed) })

	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session != nil {
		session.Close()
	}

	m.wg.Wait()
	m.setState(StateDisconnected)
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// JoinRoom subscribes to the room's channel. Idempotent: joining a room
// twice keeps a single subscription handle and registers no duplicate
// listener.
func (m *Manager) JoinRoom(roomID int64) error {
	m.mu.Lock()
	if _, ok := m.rooms[roomID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.rooms[roomID] = struct{}{}
	session, claimed := m.claimRoomLocked(roomID)
	m.mu.Unlock()

	if !claimed {
		// Subscribed lazily by the (re)connect cycle.
		return nil
	}

	return m.writeFrame(session, subscribeFrame(realtime.RoomChannel(roomID)))
}

// LeaveRoom releases the room subscription: the transport unsubscribe is
// sent before the handle is forgotten, so repeated join/leave cycles leak
// nothing. Leaving an unjoined room is a no-op.
func (m *Manager) LeaveRoom(roomID int64) error {
	m.mu.Lock()
	if _, ok := m.rooms[roomID]; !ok {
		m.mu.Unlock()
		return nil
	}
	session := m.session
	m.mu.Unlock()

	var err error
	if session != nil {
		err = m.writeFrame(session, unsubscribeFrame(realtime.RoomChannel(roomID)))
	}

	m.mu.Lock()
	delete(m.rooms, roomID)
	if m.sessionRooms != nil {
		delete(m.sessionRooms, roomID)
	}
	m.mu.Unlock()

	return err
}

// SendTyping emits an ephemeral typing signal for the room.
func (m *Manager) SendTyping(roomID int64, isTyping bool) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return errors.New("not connected")
	}

	return m.writeFrame(session, typingFrame(roomID, isTyping))
}

// run is the connection loop: connect, resubscribe, reconcile, read until
// failure, back off, repeat. Exits when Close fires.
func (m *Manager) run() {
	defer m.wg.Done()

	backoff := minBackoff

	for {
		select {
		case <-m.closed:
			return
		default:
		}

		m.setState(StateConnecting)

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		session, err := m.transport.Dial(ctx)
		cancel()

		if err != nil {
			m.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Transport connect failed")
			m.setState(StateDisconnected)

			select {
			case <-m.closed:
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = minBackoff

		m.mu.Lock()
		m.session = session
		m.sessionRooms = make(map[int64]struct{})
		m.mu.Unlock()
		m.setState(StateConnected)

		if err := m.resubscribe(session); err != nil {
			m.logger.Warn().Err(err).Msg("Resubscribe failed, reconnecting")
			m.teardownSession(session)
			continue
		}

		m.setState(StateReady)
		m.reconcile()

		m.readLoop(session)
		m.teardownSession(session)
	}
}

// resubscribe re-establishes the presence channel and every joined room
// subscription on a fresh session.
func (m *Manager) resubscribe(session Session) error {
	m.setState(StateSubscribing)

	if err := m.writeFrame(session, subscribeFrame(realtime.PresenceChannelName)); err != nil {
		return err
	}

	for _, roomID := range m.joinedRooms() {
		m.mu.Lock()
		_, claimed := m.claimRoomLocked(roomID)
		m.mu.Unlock()
		if !claimed {
			continue
		}

		if err := m.writeFrame(session, subscribeFrame(realtime.RoomChannel(roomID))); err != nil {
			return err
		}
	}

	return nil
}

// claimRoomLocked marks the room subscribed on the current session. It
// reports false when no session is active or the room was already claimed
// for this session. Caller holds m.mu.
func (m *Manager) claimRoomLocked(roomID int64) (Session, bool) {
	if m.session == nil || m.sessionRooms == nil {
		return nil, false
	}
	if _, ok := m.sessionRooms[roomID]; ok {
		return nil, false
	}

	m.sessionRooms[roomID] = struct{}{}
	return m.session, true
}

// reconcile runs the catch-up fetch after reaching StateReady.
func (m *Manager) reconcile() {
	if m.reconciler == nil {
		return
	}

	if err := m.reconciler.Reconcile(context.Background(), m.joinedRooms()); err != nil {
		m.logger.Warn().Err(err).Msg("Catch-up reconciliation failed")
	}
}

// readLoop dispatches inbound events until the session errors.
func (m *Manager) readLoop(session Session) {
	for {
		raw, err := session.Read()
		if err != nil {
			select {
			case <-m.closed:
			default:
				m.logger.Info().Err(err).Msg("Session read failed, will reconnect")
			}
			return
		}

		m.dispatch(raw)
	}
}

// dispatch decodes one wire event and invokes its typed callback.
// Malformed payloads are logged and dropped; unknown kinds are ignored.
func (m *Manager) dispatch(raw []byte) {
	var ev realtime.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		m.logger.Warn().Err(err).Msg("Dropping malformed event frame")
		return
	}

	switch ev.Name {
	case realtime.EventMessageSent:
		dispatchPayload(m, ev, m.handlers.OnMessageSent)
	case realtime.EventMessageUpdated:
		dispatchPayload(m, ev, m.handlers.OnMessageUpdated)
	case realtime.EventMessageDeleted:
		dispatchPayload(m, ev, m.handlers.OnMessageDeleted)
	case realtime.EventUserJoined:
		dispatchPayload(m, ev, m.handlers.OnMemberJoined)
	case realtime.EventUserLeft:
		dispatchPayload(m, ev, m.handlers.OnMemberLeft)
	case realtime.EventUserTyping:
		dispatchPayload(m, ev, m.handlers.OnTyping)
	case realtime.EventPresenceJoining:
		dispatchPayload(m, ev, m.handlers.OnPresenceJoining)
	case realtime.EventPresenceLeaving:
		dispatchPayload(m, ev, m.handlers.OnPresenceLeaving)
	case realtime.EventSubscribeError:
		dispatchPayload(m, ev, m.handlers.OnSubscribeError)

	case realtime.EventPresenceHere:
		if m.handlers.OnPresenceHere == nil {
			return
		}
		var payload realtime.HerePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			m.logger.Warn().Err(err).Str("event", ev.Name).Msg("Dropping event with malformed payload")
			return
		}
		m.handlers.OnPresenceHere(ev.Channel, payload)

	case realtime.EventSubscribeRevoked:
		m.handleRevoked(ev.Channel)

	case realtime.EventSubscribeSucceeded:
		// Ack only; nothing to deliver.

	default:
		m.logger.Debug().Str("event", ev.Name).Msg("Ignoring unknown event kind")
	}
}

// handleRevoked forgets the room handle for a force-unsubscribed channel.
func (m *Manager) handleRevoked(channelName string) {
	if ch, ok := realtime.ParseChannel(channelName); ok && ch.Kind == realtime.ChannelRoom {
		m.mu.Lock()
		delete(m.rooms, ch.RoomID)
		if m.sessionRooms != nil {
			delete(m.sessionRooms, ch.RoomID)
		}
		m.mu.Unlock()
	}

	if m.handlers.OnRevoked != nil {
		m.handlers.OnRevoked(channelName)
	}
}

func (m *Manager) joinedRooms() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) teardownSession(session Session) {
	session.Close()

	m.mu.Lock()
	if m.session == session {
		m.session = nil
		m.sessionRooms = nil
	}
	m.mu.Unlock()

	m.setState(StateDisconnected)
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.mu.Unlock()

	if m.handlers.OnStateChange != nil {
		m.handlers.OnStateChange(next)
	}
}

func (m *Manager) writeFrame(session Session, frame any) error {
	if err := session.WriteJSON(frame); err != nil {
		m.logger.Warn().Err(err).Msg("Session write failed")
		return err
	}
	return nil
}

// dispatchPayload decodes ev.Data into P and invokes the callback.
func dispatchPayload[P any](m *Manager, ev realtime.Event, callback func(P)) {
	if callback == nil {
		return
	}

	var payload P
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		m.logger.Warn().Err(err).Str("event", ev.Name).Msg("Dropping event with malformed payload")
		return
	}

	callback(payload)
}
