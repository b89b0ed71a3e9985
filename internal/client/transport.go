package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"chathub/internal/realtime"
)

// Transport connects to the realtime endpoint. The manager only ever
// talks through this interface, so tests can drive it with an in-memory
// fake.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is one live connection.
type Session interface {
	// Read blocks for the next event frame.
	Read() ([]byte, error)

	// WriteJSON sends one client frame.
	WriteJSON(v any) error

	Close() error
}

// clientFrame mirrors the server's inbound frame shape.
type clientFrame struct {
	Action   string `json:"action"`
	Channel  string `json:"channel,omitempty"`
	RoomID   int64  `json:"room_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

func subscribeFrame(channel string) clientFrame {
	return clientFrame{Action: realtime.ActionSubscribe, Channel: channel}
}

func unsubscribeFrame(channel string) clientFrame {
	return clientFrame{Action: realtime.ActionUnsubscribe, Channel: channel}
}

func typingFrame(roomID int64, isTyping bool) clientFrame {
	return clientFrame{Action: realtime.ActionTyping, RoomID: roomID, IsTyping: isTyping}
}

type wsTransport struct {
	url   string
	token string
}

func newWebsocketTransport(url, token string) *wsTransport {
	return &wsTransport{url: url, token: token}
}

// Dial opens the websocket with the bearer credential attached.
func (t *wsTransport) Dial(ctx context.Context) (Session, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, t.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	return &wsSession{ws: ws}, nil
}

type wsSession struct {
	ws *websocket.Conn
}

func (s *wsSession) Read() ([]byte, error) {
	_, raw, err := s.ws.ReadMessage()
	return raw, err
}

func (s *wsSession) WriteJSON(v any) error {
	return s.ws.WriteJSON(v)
}

func (s *wsSession) Close() error {
	return s.ws.Close()
}
