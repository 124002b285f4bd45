package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/api/responses"
	"github.com/angelmondragon/binarycomp-backend/api/validators"
	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

// notificationOwner reads the optional memberId filter. Without it the
// request targets operator notices such as batch summaries.
func notificationOwner(r *http.Request) (*uuid.UUID, error) {
	return validators.ParseQueryUUID(r, "memberId")
}

// ListNotifications returns paginated notifications for a member or the operator feed.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		memberID, err := notificationOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := notifications.ListParams{MemberID: memberID}

		if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.UnreadOnly, err = validators.ParseQueryBool(r, "unreadOnly"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Cursor = validators.SanitizeString(r.URL.Query().Get("cursor"), 0)

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := resp.Items
		if items == nil {
			items = []models.Notification{}
		}
		responses.WriteList(w, items, resp.Cursor)
	}
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := notificationOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := validators.PathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkRead(r.Context(), memberID, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := notificationOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.MarkAllRead(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}
