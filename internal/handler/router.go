package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chathub/internal/pkg/auth/jwt"
	"chathub/internal/pkg/limiter"
	"chathub/internal/pkg/logx"
	"chathub/internal/pkg/resp"
)

const (
	CreateRate   = 0.05
	CreateBurst  = 2
	SendRate     = 2
	SendBurst    = 10
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router builds the HTTP routing table: CORS and logging middleware, the
// authenticated REST API, and the websocket endpoint.
func Router(deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
	sendLimiter := limiter.NewIPRateLimiter(rate.Limit(SendRate), SendBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "chathub",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.RequireAuth(deps.Config.JWTSecret))

		api.Route("/rooms", func(rooms chi.Router) {
			rooms.With(createLimiter.Middleware).Post("/", HandleCreateRoom(deps))
			rooms.Get("/", HandleListRooms(deps))

			rooms.Route("/{roomID}", func(room chi.Router) {
				room.Get("/", HandleGetRoom(deps))
				room.Post("/join", HandleJoinRoom(deps))
				room.Post("/leave", HandleLeaveRoom(deps))
				room.Post("/read", HandleMarkRead(deps))

				room.Get("/messages", HandleListMessages(deps))
				room.With(sendLimiter.Middleware).Post("/messages", HandleSendMessage(deps))

				room.Post("/attachments/presign", HandlePresignUpload(deps))
			})
		})

		api.Route("/messages/{messageID}", func(msg chi.Router) {
			msg.Patch("/", HandleEditMessage(deps))
			msg.Delete("/", HandleDeleteMessage(deps))
		})

		api.Get("/attachments/presign-download", HandlePresignDownload(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
