package notifications

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/api/responses"
	"github.com/angelmondragon/homedoc-backend/api/validators"
	internalnotifications "github.com/angelmondragon/homedoc-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/pagination"
)

// doctorHandler serves one doctor's feed. Returning an error renders it.
type doctorHandler func(w http.ResponseWriter, r *http.Request, svc internalnotifications.Service, doctorID uuid.UUID) error

// forDoctor resolves the doctor_id query parameter and tags the request log.
func forDoctor(svc internalnotifications.Service, logg *logger.Logger, h doctorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		doctorID, err := validators.ParseUUID(r.URL.Query().Get("doctor_id"), "doctor_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			r = r.WithContext(logg.WithField(ctx, "doctor_id", doctorID.String()))
		}
		if err := h(w, r, svc, doctorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}

// ListNotifications returns one page of a doctor's feed.
func ListNotifications(svc internalnotifications.Service, logg *logger.Logger) http.HandlerFunc {
	return forDoctor(svc, logg, func(w http.ResponseWriter, r *http.Request, svc internalnotifications.Service, doctorID uuid.UUID) error {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return err
		}
		unread, err := parseFlag(r, "unreadOnly")
		if err != nil {
			return err
		}
		page, err := svc.List(r.Context(), internalnotifications.ListParams{
			DoctorID:   doctorID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unread,
		})
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, page)
		return nil
	})
}

func MarkNotificationRead(svc internalnotifications.Service, logg *logger.Logger) http.HandlerFunc {
	return forDoctor(svc, logg, func(w http.ResponseWriter, r *http.Request, svc internalnotifications.Service, doctorID uuid.UUID) error {
		notificationID, err := validators.ParseUUID(chi.URLParam(r, "notificationId"), "notificationId")
		if err != nil {
			return err
		}
		if err := svc.MarkRead(r.Context(), doctorID, notificationID); err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]any{"read": true})
		return nil
	})
}

func MarkAllNotificationsRead(svc internalnotifications.Service, logg *logger.Logger) http.HandlerFunc {
	return forDoctor(svc, logg, func(w http.ResponseWriter, r *http.Request, svc internalnotifications.Service, doctorID uuid.UUID) error {
		updated, err := svc.MarkAllRead(r.Context(), doctorID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]any{"updated": updated})
		return nil
	})
}

// parseFlag reads an optional boolean query parameter; absent means false.
func parseFlag(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key+" value").WithDetails(map[string]any{"field": key})
	}
	return v, nil
}
