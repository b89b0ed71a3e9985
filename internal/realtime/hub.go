package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"chathub/internal/app/user"
	"chathub/internal/pkg/logx"
)

// Hub is the room event bus. It routes published events to every
// connection currently subscribed to the target channel and owns the
// presence registry.
//
// Delivery is best-effort: a connection that disconnects during a publish
// simply misses the event and recovers through the paginated history
// fetch, never through bus replay. Per-channel publish order is preserved
// by serializing fan-out under the hub lock; each connection's send queue
// then delivers sequentially.
type Hub struct {
	// mu guards subscribers and orders fan-out.
	mu sync.Mutex

	// subscribers maps channel name to the set of subscribed connections.
	subscribers map[string]map[*Conn]struct{}

	// presence tracks channel rosters for presence-kind channels.
	presence *Presence

	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Conn]struct{}),
		presence:    NewPresence(),
		logger:      logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// Subscribe adds the connection to the channel after admission has already
// been granted. For presence channels the subscriber receives the
// subscription ack and the roster snapshot on its own queue before any
// diff fanned out afterwards, so the snapshot is always observed first.
func (h *Hub) Subscribe(c *Conn, ch Channel) {
	h.mu.Lock()

	set, ok := h.subscribers[ch.Name]
	if !ok {
		set = make(map[*Conn]struct{})
		h.subscribers[ch.Name] = set
	}

	if _, already := set[c]; already {
		h.mu.Unlock()
		return
	}

	set[c] = struct{}{}
	c.trackChannel(ch.Name)

	var slow []*Conn

	h.enqueueEvent(c, EventSubscribeSucceeded, ch.Name, SubscriptionPayload{Channel: ch.Name}, &slow)

	if ch.Kind == ChannelPresence {
		snapshot, first := h.presence.Join(ch.Name, c.user)

		h.enqueueEvent(c, EventPresenceHere, ch.Name, HerePayload{Users: snapshot}, &slow)

		if first {
			h.fanoutEvent(ch.Name, EventPresenceJoining, RosterPayload{User: c.user}, c, &slow)
		}
	}

	h.mu.Unlock()

	h.closeSlow(slow)
}

// Unsubscribe removes the connection from the channel, emitting the
// presence leaving diff when this was the identity's last connection.
func (h *Hub) Unsubscribe(c *Conn, channelName string) {
	h.mu.Lock()
	slow := h.removeLocked(c, channelName)
	h.mu.Unlock()

	h.closeSlow(slow)
}

// DropConnection removes the connection from every channel it is on.
// Called when the connection's read pump terminates.
func (h *Hub) DropConnection(c *Conn) {
	h.mu.Lock()
	var slow []*Conn
	for _, name := range c.trackedChannels() {
		slow = append(slow, h.removeLocked(c, name)...)
	}
	h.mu.Unlock()

	h.closeSlow(slow)
}

// Revoke force-unsubscribes every connection of the given user from the
// channel. The mutation that removed a member from a room calls this;
// the bus itself never re-checks authorization per publish.
func (h *Hub) Revoke(channelName string, userID int64) {
	h.mu.Lock()

	var slow []*Conn
	for c := range h.subscribers[channelName] {
		if c.user.ID != userID {
			continue
		}

		slow = append(slow, h.removeLocked(c, channelName)...)
		h.enqueueEvent(c, EventSubscribeRevoked, channelName, SubscriptionPayload{Channel: channelName}, &slow)
	}

	h.mu.Unlock()

	h.closeSlow(slow)

	h.logger.Info().Str("channel", channelName).Int64("user_id", userID).Msg("Subscription revoked")
}

// Publish fans the event out to every current subscriber of its channel.
func (h *Hub) Publish(ev Event) {
	h.publish(ev, nil)
}

// PublishExcept fans the event out to every subscriber except skip.
// Used for typing relays, which never echo back to the sender.
func (h *Hub) PublishExcept(ev Event, skip *Conn) {
	h.publish(ev, skip)
}

// Roster returns the current presence roster for the channel.
func (h *Hub) Roster(channelName string) []user.User {
	return h.presence.Roster(channelName)
}

// Shutdown closes every connected socket.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	seen := make(map[*Conn]struct{})
	for _, set := range h.subscribers {
		for c := range set {
			seen[c] = struct{}{}
		}
	}
	h.subscribers = make(map[string]map[*Conn]struct{})
	h.mu.Unlock()

	for c := range seen {
		c.Close()
	}

	h.logger.Info().Int("connections", len(seen)).Msg("Hub shut down")
}

func (h *Hub) publish(ev Event, skip *Conn) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event", ev.Name).Msg("Dropping unmarshalable event")
		return
	}

	h.mu.Lock()

	var slow []*Conn
	for c := range h.subscribers[ev.Channel] {
		if c == skip {
			continue
		}
		if !c.enqueue(raw) {
			slow = append(slow, c)
		}
	}

	h.mu.Unlock()

	h.closeSlow(slow)
}

// removeLocked detaches the connection from one channel. Caller holds h.mu.
func (h *Hub) removeLocked(c *Conn, channelName string) (slow []*Conn) {
	set, ok := h.subscribers[channelName]
	if !ok {
		return nil
	}
	if _, subscribed := set[c]; !subscribed {
		return nil
	}

	delete(set, c)
	if len(set) == 0 {
		delete(h.subscribers, channelName)
	}
	c.untrackChannel(channelName)

	if ch, ok := ParseChannel(channelName); ok && ch.Kind == ChannelPresence {
		left, last := h.presence.Leave(channelName, c.user.ID)
		if last {
			h.fanoutEvent(channelName, EventPresenceLeaving, RosterPayload{User: left}, nil, &slow)
		}
	}

	return slow
}

// enqueueEvent queues a single event for one connection. Caller holds h.mu.
func (h *Hub) enqueueEvent(c *Conn, name, channel string, payload any, slow *[]*Conn) {
	ev, err := NewEvent(name, channel, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", name).Msg("Dropping unmarshalable event")
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event", name).Msg("Dropping unmarshalable event")
		return
	}

	if !c.enqueue(raw) {
		*slow = append(*slow, c)
	}
}

// fanoutEvent queues an event for every subscriber of the channel except
// skip. Caller holds h.mu.
func (h *Hub) fanoutEvent(channel, name string, payload any, skip *Conn, slow *[]*Conn) {
	ev, err := NewEvent(name, channel, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", name).Msg("Dropping unmarshalable event")
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event", name).Msg("Dropping unmarshalable event")
		return
	}

	for c := range h.subscribers[channel] {
		if c == skip {
			continue
		}
		if !c.enqueue(raw) {
			*slow = append(*slow, c)
		}
	}
}

// closeSlow closes connections whose send queue overflowed. Closing happens
// outside the hub lock; the read pump's cleanup then detaches them.
func (h *Hub) closeSlow(conns []*Conn) {
	for _, c := range conns {
		h.logger.Warn().Str("conn_id", c.id).Int64("user_id", c.user.ID).Msg("Send queue full, closing slow connection")
		c.Close()
	}
}
