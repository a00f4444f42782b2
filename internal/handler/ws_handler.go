package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"companysync/internal/app/user"
	"companysync/internal/configs"
	"companysync/internal/pkg/auth/jwt"
	"companysync/internal/pkg/errs"
	"companysync/internal/pkg/logx"
	"companysync/internal/pkg/resp"
)

var (
	errMissingUserID = errors.New("missing userId")
	errInvalidToken  = errors.New("invalid session token")
	errTokenRequired = errors.New("session token required")
)

// HandleWebSocket creates the handler that binds a connection to an identity and hands it
// to the hub. Connections without a usable identity have their transport closed before the
// upgrade, with no HTTP response.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteIP := logx.AnonymizeIP(r.RemoteAddr)

		if deps.UpgradeLimiter != nil && !deps.UpgradeLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "remote_ip", remoteIP)
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity, err := resolveIdentity(r, deps.Config)
		if err != nil {
			logx.Warn("WebSocket connection rejected.", "reason", err.Error(), "remote_ip", remoteIP)
			destroyTransport(w)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "client_key", identity.Key())
			return
		}

		logx.Info("WebSocket connection established", "client_key", identity.Key(), "remote_ip", remoteIP)

		deps.Hub.Serve(conn, identity)
	}
}

// resolveIdentity decides who a connection speaks for. A verified session token wins and
// grants the moderator slot only when both the token and the request ask for it. Without a
// token the legacy query identity is used unless the config demands a token.
func resolveIdentity(r *http.Request, cfg *configs.AppConfig) (user.Identity, error) {
	query := r.URL.Query()
	wantsModerator := query.Get("moderator") == "1"

	if token := jwt.TokenFromRequest(r); token != "" {
		payload, err := jwt.ParseToken(token, cfg.JWTSecret)
		if err != nil {
			return user.Identity{}, errInvalidToken
		}

		return user.Identity{
			ID:        payload.ID,
			Moderator: payload.Moderator && wantsModerator,
		}, nil
	}

	if cfg.RequireSessionToken {
		return user.Identity{}, errTokenRequired
	}

	userID := query.Get("userId")
	if userID == "" {
		return user.Identity{}, errMissingUserID
	}

	return user.Identity{ID: userID, Moderator: wantsModerator}, nil
}

// destroyTransport closes the underlying TCP connection without writing a response.
func destroyTransport(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, _, err := hj.Hijack()
	if err != nil {
		logx.Error(err, "Failed to hijack rejected connection")
		return
	}
	_ = conn.Close()
}
