package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chathub/internal/app/user"
)

func TestPresenceRefCounting(t *testing.T) {
	assert := assert.New(t)

	p := NewPresence()
	alice := user.User{ID: 1, Name: "alice"}

	// First connection crosses the joining threshold.
	snapshot, first := p.Join(PresenceChannelName, alice)
	assert.True(first)
	assert.Equal([]user.User{alice}, snapshot)

	// A duplicate tab does not.
	snapshot, first = p.Join(PresenceChannelName, alice)
	assert.False(first)
	assert.Len(snapshot, 1)

	// Closing one of two connections is not a departure.
	_, last := p.Leave(PresenceChannelName, alice.ID)
	assert.False(last)
	assert.Len(p.Roster(PresenceChannelName), 1)

	// Closing the final connection is.
	left, last := p.Leave(PresenceChannelName, alice.ID)
	assert.True(last)
	assert.Equal(alice, left)
	assert.Empty(p.Roster(PresenceChannelName))
}

func TestPresenceSnapshotSortedAndIncludesSelf(t *testing.T) {
	assert := assert.New(t)

	p := NewPresence()
	carol := user.User{ID: 3, Name: "carol"}
	bob := user.User{ID: 2, Name: "bob"}

	p.Join(PresenceChannelName, carol)
	snapshot, _ := p.Join(PresenceChannelName, bob)

	// The joiner sees the roster including themselves, ordered by ID.
	assert.Equal([]user.User{bob, carol}, snapshot)
}

func TestPresenceLeaveUnknownIsNoop(t *testing.T) {
	assert := assert.New(t)

	p := NewPresence()
	_, last := p.Leave(PresenceChannelName, 42)
	assert.False(last)
}
