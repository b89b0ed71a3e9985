package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chathub/internal/pkg/auth/jwt"
	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/limiter"
	"chathub/internal/pkg/logx"
	"chathub/internal/pkg/resp"
	"chathub/internal/realtime"
)

// HandleWebSocket authenticates and upgrades a realtime connection. The
// socket starts with no subscriptions; the client subscribes to channels
// over the socket and each one passes admission individually.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		tokenString, ok := jwt.BearerToken(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Invalid token", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := realtime.NewConn(deps.Hub, ws, payload.Identity(), deps.Authorizer)

		go conn.WritePump()

		logx.Info("WebSocket connection established", "user_id", payload.UserID)

		conn.ReadPump()
	}
}
