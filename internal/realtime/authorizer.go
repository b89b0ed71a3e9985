package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chathub/internal/pkg/logx"
)

// AuthorizeTimeout bounds the membership lookup during admission. A
// subscribe attempt never waits on the data store longer than this.
const AuthorizeTimeout = 3 * time.Second

// RoomVisibility is a room's access mode as recorded by the data store.
type RoomVisibility string

const (
	RoomPublic  RoomVisibility = "public"
	RoomPrivate RoomVisibility = "private"
)

// MembershipStore is the data-store collaborator consulted during
// admission. Implementations must be safe for concurrent use.
type MembershipStore interface {
	// RoomVisibility reports whether the room is public or private.
	// A nonexistent room returns an error.
	RoomVisibility(ctx context.Context, roomID int64) (RoomVisibility, error)

	// IsMember reports whether the user currently has a membership row for
	// the room. Called fresh on every admission; results are never cached,
	// since membership can change between attempts.
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// Admission is the outcome of an authorization check. A denied admission
// carries no error: lookup failures, unknown rooms, and non-membership all
// collapse to Deny, and the caller maps Deny to a subscription rejection.
type Admission struct {
	// Granted reports whether the subscription may proceed.
	Granted bool
}

// Admit is the granted admission.
func Admit() Admission { return Admission{Granted: true} }

// Deny is the refused admission.
func Deny() Admission { return Admission{} }

// Identity is the authenticated principal attempting a subscription.
// The zero value is an unauthenticated caller and is admitted nowhere.
type Identity struct {
	UserID int64
}

// Authorizer decides admission for one channel kind.
type Authorizer interface {
	Authorize(ctx context.Context, identity Identity, ch Channel) Admission
}

// ChannelAuthorizer dispatches admission checks to the per-kind variants.
// It is idempotent and mutation-free: safe to call concurrently and
// repeatedly for the same identity and channel.
type ChannelAuthorizer struct {
	variants map[ChannelKind]Authorizer
	logger   zerolog.Logger
}

// NewChannelAuthorizer wires the per-kind authorizers over the given store.
func NewChannelAuthorizer(store MembershipStore) *ChannelAuthorizer {
	return &ChannelAuthorizer{
		variants: map[ChannelKind]Authorizer{
			ChannelRoom:     &roomAuthorizer{store: store},
			ChannelPresence: presenceAuthorizer{},
			ChannelUser:     selfAuthorizer{},
		},
		logger: logx.Logger().With().Str("component", "authorizer").Logger(),
	}
}

// Authorize runs the admission check for the channel. Unknown channel
// kinds and unauthenticated identities are denied outright.
func (a *ChannelAuthorizer) Authorize(ctx context.Context, identity Identity, ch Channel) Admission {
	if identity.UserID <= 0 || ch.Kind == ChannelInvalid {
		return Deny()
	}

	variant, ok := a.variants[ch.Kind]
	if !ok {
		a.logger.Warn().Str("channel", ch.Name).Msg("No authorizer variant for channel kind")
		return Deny()
	}

	ctx, cancel := context.WithTimeout(ctx, AuthorizeTimeout)
	defer cancel()

	return variant.Authorize(ctx, identity, ch)
}

// roomAuthorizer gates room channels. Public rooms admit any authenticated
// identity; private rooms re-read membership on every attempt.
type roomAuthorizer struct {
	store MembershipStore
}

func (a *roomAuthorizer) Authorize(ctx context.Context, identity Identity, ch Channel) Admission {
	visibility, err := a.store.RoomVisibility(ctx, ch.RoomID)
	if err != nil {
		return Deny()
	}

	if visibility == RoomPublic {
		return Admit()
	}

	member, err := a.store.IsMember(ctx, ch.RoomID, identity.UserID)
	if err != nil || !member {
		return Deny()
	}

	return Admit()
}

// presenceAuthorizer admits any authenticated identity to the global
// presence channel.
type presenceAuthorizer struct{}

func (presenceAuthorizer) Authorize(_ context.Context, identity Identity, _ Channel) Admission {
	if identity.UserID <= 0 {
		return Deny()
	}
	return Admit()
}

// selfAuthorizer admits a user only to their own private channel.
type selfAuthorizer struct{}

func (selfAuthorizer) Authorize(_ context.Context, identity Identity, ch Channel) Admission {
	if identity.UserID != ch.UserID {
		return Deny()
	}
	return Admit()
}
