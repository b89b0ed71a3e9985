package jwt

import (
	"github.com/golang-jwt/jwt"

	"chathub/internal/app/user"
)

// Payload defines the JWT claims carried by a bearer identity token.
// The token binds an already-verified user identity to a connection or
// request; credential issuance itself lives outside this service.
type Payload struct {
	// StandardClaims embeds Exp, Iat, and Iss, required for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the authenticated user's database identifier.
	UserID int64 `json:"user_id"`

	// Name is the user's display name, carried so the realtime plane can
	// build roster entries without a user lookup.
	Name string `json:"name"`

	// AvatarURL is the user's avatar, when set.
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Identity converts the claims into the public user representation.
func (p *Payload) Identity() user.User {
	return user.User{
		ID:        p.UserID,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
	}
}
