package realtime

import (
	"sort"
	"sync"

	"chathub/internal/app/user"
)

// Presence tracks which identities are subscribed to which channel,
// reference-counted per connection. An identity with several open
// connections (duplicate tabs) appears in a roster exactly once; only the
// first subscription and the last unsubscription cross the diff threshold.
type Presence struct {
	mu       sync.Mutex
	channels map[string]map[int64]*presenceEntry
}

type presenceEntry struct {
	user user.User
	refs int
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{channels: make(map[string]map[int64]*presenceEntry)}
}

// Join records a subscription of u to the channel. It returns the roster
// snapshot as of this join (including u) and whether this was the
// identity's first subscription to the channel. Re-subscription by an
// already-present identity is idempotent.
func (p *Presence) Join(channel string, u user.User) (snapshot []user.User, first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roster, ok := p.channels[channel]
	if !ok {
		roster = make(map[int64]*presenceEntry)
		p.channels[channel] = roster
	}

	entry, ok := roster[u.ID]
	if ok {
		entry.refs++
	} else {
		roster[u.ID] = &presenceEntry{user: u, refs: 1}
		first = true
	}

	return rosterSlice(roster), first
}

// Leave records an unsubscription for the identity. It returns the stored
// user payload and whether this was the identity's last connection on the
// channel. Leaving a channel the identity is not on is a no-op.
func (p *Presence) Leave(channel string, userID int64) (u user.User, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roster, ok := p.channels[channel]
	if !ok {
		return user.User{}, false
	}

	entry, ok := roster[userID]
	if !ok {
		return user.User{}, false
	}

	entry.refs--
	if entry.refs > 0 {
		return entry.user, false
	}

	delete(roster, userID)
	if len(roster) == 0 {
		delete(p.channels, channel)
	}

	return entry.user, true
}

// Roster returns the current members of the channel, sorted by user id.
func (p *Presence) Roster(channel string) []user.User {
	p.mu.Lock()
	defer p.mu.Unlock()

	return rosterSlice(p.channels[channel])
}

func rosterSlice(roster map[int64]*presenceEntry) []user.User {
	users := make([]user.User, 0, len(roster))
	for _, entry := range roster {
		users = append(users, entry.user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users
}
