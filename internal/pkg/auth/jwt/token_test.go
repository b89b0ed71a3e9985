package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	assert := assert.New(t)

	payload := &Payload{UserID: 7, Name: "alice", AvatarURL: "https://cdn.example.com/a.png"}

	tokenString, err := GenerateToken(payload, testSecret, IdentityExpiration)
	require.NoError(t, err)

	parsed, err := ParseToken(tokenString, testSecret)
	require.NoError(t, err)

	assert.Equal(int64(7), parsed.UserID)
	assert.Equal("alice", parsed.Name)
	assert.Equal(TokenIssuer, parsed.Issuer)

	identity := parsed.Identity()
	assert.Equal(int64(7), identity.ID)
	assert.Equal("alice", identity.Name)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tokenString, err := GenerateToken(&Payload{UserID: 7}, testSecret, IdentityExpiration)
	require.NoError(t, err)

	_, err = ParseToken(tokenString, "other-secret")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tokenString, err := GenerateToken(&Payload{UserID: 7}, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(tokenString, testSecret)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	assert.Error(t, err)
}
