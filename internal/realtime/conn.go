package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chathub/internal/app/user"
	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/logx"
)

const (
	// writeWait is the timeout for writing a frame to the socket.
	writeWait = 10 * time.Second

	// pongWait is the maximum wait for a Pong before the read deadline fires.
	pongWait = 60 * time.Second

	// pingPeriod is the heartbeat interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize caps inbound client frames in bytes.
	maxFrameSize = 4096

	// sendQueueSize is the per-connection outbound buffer. Each queue
	// drains sequentially, which is what keeps per-channel delivery
	// ordered on a single connection.
	sendQueueSize = 256
)

// Client frame actions. Shared with the client package, which speaks the
// same wire contract.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionTyping      = "typing"
)

// clientFrame is the inbound message shape from a websocket client.
type clientFrame struct {
	Action   string `json:"action"`
	Channel  string `json:"channel,omitempty"`
	RoomID   int64  `json:"room_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// Conn is one active websocket session bound to an authenticated user.
// The read pump handles inbound control frames (subscribe, unsubscribe,
// typing); the write pump drains the send queue and keeps the heartbeat.
type Conn struct {
	id   string
	hub  *Hub
	ws   *websocket.Conn
	user user.User

	authorizer *ChannelAuthorizer

	// send queues marshaled events for sequential delivery.
	send chan []byte

	// mu guards channels and closed.
	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool

	closeOnce sync.Once

	logger zerolog.Logger
}

// NewConn wraps an upgraded websocket connection for the given user.
func NewConn(hub *Hub, ws *websocket.Conn, u user.User, authorizer *ChannelAuthorizer) *Conn {
	id := uuid.NewString()

	return &Conn{
		id:         id,
		hub:        hub,
		ws:         ws,
		user:       u,
		authorizer: authorizer,
		send:       make(chan []byte, sendQueueSize),
		channels:   make(map[string]struct{}),
		logger: logx.Logger().With().
			Str("conn_id", id).
			Int64("user_id", u.ID).
			Logger(),
	}
}

// User returns the identity bound to this connection.
func (c *Conn) User() user.User {
	return c.user
}

// ReadPump reads frames from the socket until it closes, then detaches the
// connection from the hub. Run on the handler goroutine.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxFrameSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed while reading")
			}
			break
		}

		c.handleFrame(raw)
	}
}

// cleanupOnDisconnect detaches from the hub and closes the socket. Every
// channel the connection held is released, including presence refs.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting")

	c.markClosed()
	c.hub.DropConnection(c)

	if err := c.ws.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Socket close error during cleanup")
	}
}

// handleFrame dispatches one inbound client frame. Malformed frames are
// logged and dropped; they never terminate the connection.
func (c *Conn) handleFrame(raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON frame")
		return
	}

	switch frame.Action {
	case ActionSubscribe:
		c.handleSubscribe(frame.Channel)

	case ActionUnsubscribe:
		c.hub.Unsubscribe(c, frame.Channel)

	case ActionTyping:
		c.handleTyping(frame.RoomID, frame.IsTyping)

	default:
		c.logger.Warn().Str("action", frame.Action).Msg("Client sent unsupported frame action")
	}
}

// handleSubscribe authorizes and registers a channel subscription. A
// denied admission mutates nothing and answers with subscription.error.
func (c *Conn) handleSubscribe(channelName string) {
	ch, ok := ParseChannel(channelName)
	if !ok {
		c.sendSubscribeError(channelName)
		return
	}

	admission := c.authorizer.Authorize(context.Background(), Identity{UserID: c.user.ID}, ch)
	if !admission.Granted {
		c.logger.Info().Str("channel", channelName).Msg("Subscription denied")
		c.sendSubscribeError(channelName)
		return
	}

	// The admission check awaited the store; if the socket dropped in the
	// meantime the result is discarded rather than applied.
	if c.isClosed() {
		return
	}

	c.hub.Subscribe(c, ch)
}

// handleTyping relays an ephemeral typing signal to the room channel.
// The signal is only relayed when the sender is subscribed to the room,
// and it is never echoed back or persisted.
func (c *Conn) handleTyping(roomID int64, isTyping bool) {
	if roomID <= 0 {
		return
	}

	channelName := RoomChannel(roomID)
	if !c.onChannel(channelName) {
		c.logger.Warn().Int64("room_id", roomID).Msg("Typing signal for unsubscribed room ignored")
		return
	}

	ev, err := NewEvent(EventUserTyping, channelName, TypingPayload{
		User:     c.user,
		RoomID:   roomID,
		IsTyping: isTyping,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build typing event")
		return
	}

	c.hub.PublishExcept(ev, c)
}

// WritePump drains the send queue to the socket and keeps the heartbeat.
// Run on its own goroutine; exits when the queue closes or a write fails.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Socket close error in write pump")
		}
	}()

	for {
		select {
		case raw, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

// Close shuts the socket down. Idempotent; the read pump's cleanup path
// performs the hub detach.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.markClosed()
		if c.ws != nil {
			if err := c.ws.Close(); err != nil {
				c.logger.Debug().Err(err).Msg("Socket close error")
			}
		}
	})
}

// enqueue queues one marshaled event, reporting false when the queue is
// full or the connection already closed.
func (c *Conn) enqueue(raw []byte) bool {
	if c.isClosed() {
		return false
	}

	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *Conn) sendSubscribeError(channelName string) {
	denied := errs.NewError(errs.ErrAdmissionDenied)

	ev, err := NewEvent(EventSubscribeError, channelName, SubscriptionErrorPayload{
		Channel: channelName,
		Code:    denied.Code,
		Message: denied.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build subscription error event")
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal subscription error event")
		return
	}

	c.enqueue(raw)
}

func (c *Conn) trackChannel(name string) {
	c.mu.Lock()
	c.channels[name] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) untrackChannel(name string) {
	c.mu.Lock()
	delete(c.channels, name)
	c.mu.Unlock()
}

func (c *Conn) onChannel(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[name]
	return ok
}

func (c *Conn) trackedChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.channels))
	for name := range c.channels {
		names = append(names, name)
	}
	return names
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
