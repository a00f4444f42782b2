/*
Package handler provides the HTTP handlers and routing setup for the support relay.

This file defines the main Router, applying logging, CORS and recovery middleware before
delegating to the WebSocket upgrade and the support API handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"companysync/internal/pkg/auth/jwt"
	"companysync/internal/pkg/logx"
	"companysync/internal/pkg/resp"
)

const (
	// UpgradeRate and UpgradeBurst bound WebSocket upgrades per client IP.
	UpgradeRate  = 1
	UpgradeBurst = 10

	// APIRate and APIBurst bound support API calls per client IP.
	APIRate  = 5
	APIBurst = 20
)

// Router sets up the relay's routing table. Upgrades are accepted on "/" and "/ws"; the
// support API lives under /api/support and reads its identity from the session token.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, map[string]any{
			"status":      "ok",
			"connections": deps.Hub.Count(),
		})
	})

	r.Route("/api/support", func(api chi.Router) {
		if deps.APILimiter != nil {
			api.Use(deps.APILimiter.Middleware)
		}
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/history", HandleGetHistory(deps))
		api.Get("/moderator", HandleGetModerator(deps))
		api.Put("/moderator", HandleSetModerator(deps))
	})

	wsHandler := HandleWebSocket(wsUpgrader, deps)
	r.Get("/", wsHandler)
	r.Get("/ws", wsHandler)

	return r
}
