package handler

import (
	"net/http"
	"strings"

	"companysync/internal/app/db"
	"companysync/internal/app/relay"
	"companysync/internal/app/user"
	"companysync/internal/pkg/auth/jwt"
	"companysync/internal/pkg/errs"
	"companysync/internal/pkg/logx"
	"companysync/internal/pkg/req"
	"companysync/internal/pkg/resp"
)

type ModeratorStatus struct {
	ModeratorID string `json:"moderatorId"`
	Online      bool   `json:"online"`
}

type SetModeratorInput struct {
	ModeratorID string `json:"moderatorId"`
}

// HandleGetModerator reports the active moderator and whether their moderator slot is live.
func HandleGetModerator(deps *AppDeps) http.HandlerFunc {
	moderators := relay.NewSettingsModeratorSource(deps.Store)

	return func(w http.ResponseWriter, r *http.Request) {
		if jwt.GetPayloadFromContext(r) == nil {
			resp.RespondError(w, errs.NewError(errs.ErrUnauthorized))
			return
		}

		activeID, err := moderators.ActiveModeratorID(r.Context())
		if err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrStorageFailed, err))
			return
		}

		resp.RespondSuccess(w, moderatorStatus(deps, activeID))
	}
}

// HandleSetModerator designates the active moderator. An empty id clears the designation.
func HandleSetModerator(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, errs.NewError(errs.ErrUnauthorized))
			return
		}
		if !identity.Moderator {
			resp.RespondError(w, errs.NewError(errs.ErrForbidden))
			return
		}

		var input SetModeratorInput
		if bindErr := req.BindJSON(w, r, &input); bindErr != nil {
			resp.RespondError(w, bindErr)
			return
		}

		moderatorID := strings.TrimSpace(input.ModeratorID)

		if err := deps.Store.UpsertSetting(r.Context(), db.ActiveModeratorSettingKey, moderatorID); err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrStorageFailed, err))
			return
		}

		logx.Info("Active support moderator changed", "moderator_id", moderatorID, "changed_by", identity.ID)

		resp.RespondSuccess(w, moderatorStatus(deps, moderatorID))
	}
}

func moderatorStatus(deps *AppDeps, moderatorID string) ModeratorStatus {
	if moderatorID == "" {
		return ModeratorStatus{}
	}

	return ModeratorStatus{
		ModeratorID: moderatorID,
		Online:      deps.Hub.IsConnected(user.ModeratorKey(moderatorID)),
	}
}
