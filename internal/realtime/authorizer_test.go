package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeMembershipStore is an in-memory MembershipStore for admission tests.
type fakeMembershipStore struct {
	mu         sync.Mutex
	visibility map[int64]RoomVisibility
	members    map[int64]map[int64]bool
	failing    bool
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{
		visibility: make(map[int64]RoomVisibility),
		members:    make(map[int64]map[int64]bool),
	}
}

func (f *fakeMembershipStore) addRoom(roomID int64, visibility RoomVisibility) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visibility[roomID] = visibility
	f.members[roomID] = make(map[int64]bool)
}

func (f *fakeMembershipStore) setMember(roomID, userID int64, member bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[roomID][userID] = member
}

func (f *fakeMembershipStore) RoomVisibility(_ context.Context, roomID int64) (RoomVisibility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", errors.New("store down")
	}
	v, ok := f.visibility[roomID]
	if !ok {
		return "", errors.New("room not found")
	}
	return v, nil
}

func (f *fakeMembershipStore) IsMember(_ context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errors.New("store down")
	}
	return f.members[roomID][userID], nil
}

func TestAuthorizeRoomChannels(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := newFakeMembershipStore()
	store.addRoom(1, RoomPrivate)
	store.addRoom(2, RoomPublic)
	store.setMember(1, 10, true)

	uut := NewChannelAuthorizer(store)

	private := mustParse(t, "chat-room.1")
	public := mustParse(t, "chat-room.2")

	// Private rooms admit members and refuse everyone else. Identical
	// attempts by different identities resolve independently.
	assert.True(uut.Authorize(ctx, Identity{UserID: 10}, private).Granted)
	assert.False(uut.Authorize(ctx, Identity{UserID: 11}, private).Granted)

	// Public rooms admit any authenticated identity.
	assert.True(uut.Authorize(ctx, Identity{UserID: 11}, public).Granted)

	// Unknown rooms are denied, not errored.
	unknown := mustParse(t, "chat-room.99")
	assert.False(uut.Authorize(ctx, Identity{UserID: 10}, unknown).Granted)
}

func TestAuthorizeReadsMembershipFresh(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := newFakeMembershipStore()
	store.addRoom(1, RoomPrivate)

	uut := NewChannelAuthorizer(store)
	ch := mustParse(t, "chat-room.1")

	// Denied while not a member, admitted right after membership appears:
	// no stale cached verdict in between.
	assert.False(uut.Authorize(ctx, Identity{UserID: 5}, ch).Granted)

	store.setMember(1, 5, true)
	assert.True(uut.Authorize(ctx, Identity{UserID: 5}, ch).Granted)

	store.setMember(1, 5, false)
	assert.False(uut.Authorize(ctx, Identity{UserID: 5}, ch).Granted)
}

func TestAuthorizePresenceAndSelfChannels(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	uut := NewChannelAuthorizer(newFakeMembershipStore())

	presence := mustParse(t, PresenceChannelName)
	assert.True(uut.Authorize(ctx, Identity{UserID: 1}, presence).Granted)
	assert.False(uut.Authorize(ctx, Identity{}, presence).Granted)

	// A user reaches their own channel only.
	own := mustParse(t, "user.8")
	assert.True(uut.Authorize(ctx, Identity{UserID: 8}, own).Granted)
	assert.False(uut.Authorize(ctx, Identity{UserID: 9}, own).Granted)
}

func TestAuthorizeStoreFailureDenies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := newFakeMembershipStore()
	store.addRoom(1, RoomPrivate)
	store.setMember(1, 10, true)
	store.failing = true

	uut := NewChannelAuthorizer(store)

	// A failed lookup collapses to denial rather than surfacing an error.
	admission := uut.Authorize(ctx, Identity{UserID: 10}, mustParse(t, "chat-room.1"))
	assert.False(admission.Granted)
}

func mustParse(t *testing.T, name string) Channel {
	t.Helper()
	ch, ok := ParseChannel(name)
	if !ok {
		t.Fatalf("failed to parse channel %q", name)
	}
	return ch
}
