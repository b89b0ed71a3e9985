package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChannel(t *testing.T) {
	assert := assert.New(t)

	// Room channels carry the parsed room ID.
	ch, ok := ParseChannel("chat-room.42")
	assert.True(ok)
	assert.Equal(ChannelRoom, ch.Kind)
	assert.Equal(int64(42), ch.RoomID)
	assert.Equal("chat-room.42", ch.Name)

	// The global presence channel.
	ch, ok = ParseChannel("online-users")
	assert.True(ok)
	assert.Equal(ChannelPresence, ch.Kind)

	// Per-user channels carry the user ID.
	ch, ok = ParseChannel("user.7")
	assert.True(ok)
	assert.Equal(ChannelUser, ch.Kind)
	assert.Equal(int64(7), ch.UserID)

	// Everything else is invalid.
	for _, name := range []string{
		"",
		"chat-room.",
		"chat-room.abc",
		"chat-room.-5",
		"chat-room.0",
		"user.",
		"user.x",
		"presence-online-users",
		"unknown.1",
	} {
		_, ok := ParseChannel(name)
		assert.False(ok, "expected %q to be rejected", name)
	}
}

func TestChannelConstructorsRoundTrip(t *testing.T) {
	assert := assert.New(t)

	ch, ok := ParseChannel(RoomChannel(9))
	assert.True(ok)
	assert.Equal(int64(9), ch.RoomID)

	ch, ok = ParseChannel(UserChannel(3))
	assert.True(ok)
	assert.Equal(int64(3), ch.UserID)
}
