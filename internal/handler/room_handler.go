/*
Package handler provides the HTTP handlers and routing for the chat service.

Handlers that mutate rooms or messages publish the corresponding realtime
event on the hub after the durable write commits, so connected clients
observe every change without polling.
*/
package handler

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"chathub/internal/pkg/auth/jwt"
	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/logx"
	"chathub/internal/pkg/req"
	"chathub/internal/pkg/resp"
	"chathub/internal/realtime"
)

type CreateRoomInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Type        string `json:"type" validate:"required,oneof=public private"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// HandleCreateRoom creates a room and makes the creator its admin member.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Store.CreateRoom(r.Context(),
			input.Name, roomSlug(input.Name), input.Type, input.Description, identity.UserID)
		if err != nil {
			logx.Error(err, "Failed to create room", "user_id", identity.UserID)
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		resp.RespondCreated(w, r, room)
	}
}

// HandleListRooms lists the caller's rooms with unread counts.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		rooms, err := deps.Store.ListJoinedRooms(r.Context(), identity.UserID)
		if err != nil {
			logx.Error(err, "Failed to list rooms", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"rooms": rooms})
	}
}

// HandleGetRoom returns one room with its member list. Private rooms are
// visible to members only.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := requireRoomAccess(r, deps, roomID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Store.GetRoom(r.Context(), roomID)
		if err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		members, err := deps.Store.ListMembers(r.Context(), roomID)
		if err != nil {
			logx.Error(err, "Failed to list room members", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"room":    room,
			"members": members,
		})
	}
}

// HandleJoinRoom adds the caller to a public room and announces the join on
// the room channel. Private rooms cannot be self-joined.
func HandleJoinRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		visibility, err := deps.Store.RoomVisibility(r.Context(), roomID)
		if err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}
		if visibility != realtime.RoomPublic {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomAccessDenied))
			return
		}

		if err := deps.Store.AddMember(r.Context(), roomID, identity.UserID, "member"); err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		publishMemberEvent(deps, realtime.EventUserJoined, roomID, identity)

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleLeaveRoom removes the caller's membership, announces the departure,
// and force-unsubscribes their live connections from the room channel.
func HandleLeaveRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Store.RemoveMember(r.Context(), roomID, identity.UserID); err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		// Revoke before announcing so the leaver's own connections never
		// see the user.left event for themselves.
		deps.Hub.Revoke(realtime.RoomChannel(roomID), identity.UserID)

		publishMemberEvent(deps, realtime.EventUserLeft, roomID, identity)

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMarkRead advances the caller's read mark for the room.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Store.MarkRead(r.Context(), roomID, identity.UserID); err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// requireRoomAccess allows members always and anyone for public rooms.
func requireRoomAccess(r *http.Request, deps *AppDeps, roomID, userID int64) *errs.CustomError {
	visibility, err := deps.Store.RoomVisibility(r.Context(), roomID)
	if err != nil {
		return mapStoreError(err)
	}
	if visibility == realtime.RoomPublic {
		return nil
	}

	member, err := deps.Store.IsMember(r.Context(), roomID, userID)
	if err != nil {
		logx.Error(err, "Membership lookup failed", "room_id", roomID, "user_id", userID)
		return errs.NewError(errs.ErrUnknown)
	}
	if !member {
		return errs.NewError(errs.ErrRoomAccessDenied)
	}

	return nil
}

// requireMembership allows members only, regardless of room visibility.
func requireMembership(r *http.Request, deps *AppDeps, roomID, userID int64) *errs.CustomError {
	member, err := deps.Store.IsMember(r.Context(), roomID, userID)
	if err != nil {
		logx.Error(err, "Membership lookup failed", "room_id", roomID, "user_id", userID)
		return errs.NewError(errs.ErrUnknown)
	}
	if !member {
		return errs.NewError(errs.ErrNotRoomMember)
	}

	return nil
}

// publishMemberEvent fans a membership change out on the room channel.
func publishMemberEvent(deps *AppDeps, name string, roomID int64, identity *jwt.Payload) {
	ev, err := realtime.NewEvent(name, realtime.RoomChannel(roomID), realtime.MemberPayload{
		User:   identity.Identity(),
		RoomID: roomID,
	})
	if err != nil {
		logx.Error(err, "Failed to build membership event", "event", name, "room_id", roomID)
		return
	}

	deps.Hub.Publish(ev)
}

// roomSlug derives a URL slug from the room name with a random suffix for
// uniqueness.
func roomSlug(name string) string {
	var b strings.Builder
	lastDash := true

	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	suffix := uuid.NewString()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
