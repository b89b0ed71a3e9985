/*
Package user contains the representation of a chat participant shared by the
realtime plane and the HTTP handlers.
*/
package user

// User is the public identity payload attached to presence rosters and
// broadcast events. Field names follow the wire format clients consume.
type User struct {
	// ID is the unique database identifier for the user.
	ID int64 `json:"id"`

	// Name is the display name shown in rooms and rosters.
	Name string `json:"name"`

	// AvatarURL points at the user's avatar image, when set.
	AvatarURL string `json:"avatar_url,omitempty"`
}
