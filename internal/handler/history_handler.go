package handler

import (
	"net/http"
	"strings"

	"companysync/internal/app/db"
	"companysync/internal/app/relay"
	"companysync/internal/pkg/auth/jwt"
	"companysync/internal/pkg/errs"
	"companysync/internal/pkg/req"
	"companysync/internal/pkg/resp"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

type HistoryMessage struct {
	ID            int64   `json:"id"`
	UserID        string  `json:"userId"`
	ModeratorID   *string `json:"moderatorId"`
	Message       string  `json:"message"`
	FromModerator bool    `json:"fromModerator"`
	CreatedAt     string  `json:"created_at"`
}

type HistoryResponse struct {
	UserID   string           `json:"userId"`
	Messages []HistoryMessage `json:"messages"`
}

// HandleGetHistory returns the latest messages of one user's support conversation.
// Plain users may only read their own; moderators may read anyone's.
func HandleGetHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, errs.NewError(errs.ErrUnauthorized))
			return
		}

		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			userID = identity.ID
		}

		if userID != identity.ID && !identity.Moderator {
			resp.RespondError(w, errs.NewError(errs.ErrForbidden))
			return
		}

		limit, bindErr := req.QueryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
		if bindErr != nil {
			resp.RespondError(w, bindErr)
			return
		}

		stored, err := deps.Store.ListChatMessagesByUser(r.Context(), userID, limit)
		if err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrStorageFailed, err))
			return
		}

		resp.RespondSuccess(w, HistoryResponse{
			UserID:   userID,
			Messages: toHistoryMessages(stored),
		})
	}
}

func toHistoryMessages(stored []db.ChatMessage) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(stored))
	for _, m := range stored {
		out = append(out, HistoryMessage{
			ID:            m.ID,
			UserID:        m.UserID,
			ModeratorID:   m.ModeratorID,
			Message:       m.Message,
			FromModerator: m.FromModerator,
			CreatedAt:     relay.FormatTimestamp(m.CreatedAt),
		})
	}
	return out
}
