package jwt

import (
	"context"
	"net/http"
	"strings"

	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/logx"
	"chathub/internal/pkg/resp"
)

// contextKey prevents context key collisions with other packages.
type contextKey string

const (
	// ContextAuthPayloadKey stores the parsed Payload in the request context.
	ContextAuthPayloadKey contextKey = "auth_payload"
)

// RequireAuth validates the Authorization bearer token and injects the
// Payload into the request context. Requests with a missing, malformed,
// or expired token are rejected with 401; a rejected credential is a full
// authentication failure, never silently refreshed here.
func RequireAuth(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Rejected invalid or expired bearer token", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header.
// Websocket clients may not be able to set headers, so the "token" query
// parameter is accepted as a fallback.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}

	return "", false
}

// GetPayloadFromContext extracts the authenticated Payload from the request
// context. It returns nil when the request passed through no auth middleware.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}
	return payload
}
