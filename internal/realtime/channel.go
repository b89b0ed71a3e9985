/*
Package realtime contains the server-side core of the realtime distribution
plane: channel naming, admission control, the presence registry, the event
hub, and the per-socket connection lifecycle.
*/
package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelKind is the tagged variant a channel name parses into. Dispatching
// on the kind replaces string-prefix matching at every decision point.
type ChannelKind int

const (
	// ChannelInvalid marks an unparseable channel name.
	ChannelInvalid ChannelKind = iota

	// ChannelRoom is a room-scoped channel ("chat-room.{roomId}"). Whether it
	// is membership-gated depends on the room's visibility.
	ChannelRoom

	// ChannelPresence is the global presence channel ("online-users").
	ChannelPresence

	// ChannelUser is a user's private channel ("user.{userId}").
	ChannelUser
)

const (
	// PresenceChannelName is the single global presence channel.
	PresenceChannelName = "online-users"

	roomChannelPrefix = "chat-room."
	userChannelPrefix = "user."
)

// Channel is a parsed channel name.
type Channel struct {
	// Name is the raw channel name used as the routing key.
	Name string

	// Kind tags which channel family the name belongs to.
	Kind ChannelKind

	// RoomID is set for ChannelRoom channels.
	RoomID int64

	// UserID is set for ChannelUser channels.
	UserID int64
}

// RoomChannel returns the channel name for a room.
func RoomChannel(roomID int64) string {
	return fmt.Sprintf("%s%d", roomChannelPrefix, roomID)
}

// UserChannel returns the private channel name for a user.
func UserChannel(userID int64) string {
	return fmt.Sprintf("%s%d", userChannelPrefix, userID)
}

// ParseChannel parses a raw channel name into its tagged variant.
// The second return value is false for names outside the three families.
func ParseChannel(name string) (Channel, bool) {
	switch {
	case name == PresenceChannelName:
		return Channel{Name: name, Kind: ChannelPresence}, true

	case strings.HasPrefix(name, roomChannelPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(name, roomChannelPrefix), 10, 64)
		if err != nil || id <= 0 {
			return Channel{Name: name}, false
		}
		return Channel{Name: name, Kind: ChannelRoom, RoomID: id}, true

	case strings.HasPrefix(name, userChannelPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(name, userChannelPrefix), 10, 64)
		if err != nil || id <= 0 {
			return Channel{Name: name}, false
		}
		return Channel{Name: name, Kind: ChannelUser, UserID: id}, true
	}

	return Channel{Name: name}, false
}
