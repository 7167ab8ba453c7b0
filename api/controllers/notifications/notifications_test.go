package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	internalnotifications "github.com/angelmondragon/homedoc-backend/internal/notifications"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

type stubService struct {
	lastParams internalnotifications.ListParams
	lastMarked uuid.UUID
	err        error
}

func (s *stubService) List(_ context.Context, params internalnotifications.ListParams) (*internalnotifications.ListResult, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &internalnotifications.ListResult{Items: []models.Notification{{ID: uuid.New()}}, Cursor: "next"}, nil
}

func (s *stubService) MarkRead(_ context.Context, _, notificationID uuid.UUID) error {
	s.lastMarked = notificationID
	return s.err
}

func (s *stubService) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 2, s.err
}

func TestListNotificationsParsesQuery(t *testing.T) {
	svc := &stubService{}
	doctorID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?doctor_id="+doctorID.String()+"&limit=5&cursor=abc&unreadOnly=true", nil)
	rec := httptest.NewRecorder()

	ListNotifications(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, internalnotifications.ListParams{DoctorID: doctorID, Limit: 5, Cursor: "abc", UnreadOnly: true}, svc.lastParams)

	var envelope struct {
		Data internalnotifications.ListResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Items, 1)
	require.Equal(t, "next", envelope.Data.Cursor)
}

func TestListNotificationsRejectsBadInput(t *testing.T) {
	doctorID := uuid.New().String()
	for _, target := range []string{
		"/api/v1/notifications",
		"/api/v1/notifications?doctor_id=" + doctorID + "&limit=0",
		"/api/v1/notifications?doctor_id=" + doctorID + "&unreadOnly=maybe",
	} {
		rec := httptest.NewRecorder()
		ListNotifications(&stubService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &stubService{}
	notificationID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read?doctor_id="+uuid.NewString(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("notificationId", notificationID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	MarkNotificationRead(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, notificationID, svc.lastMarked)

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	rec = httptest.NewRecorder()
	MarkNotificationRead(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all?doctor_id="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	MarkAllNotificationsRead(&stubService{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":{"updated":2}}`, rec.Body.String())
}

func TestNotificationsNilService(t *testing.T) {
	rec := httptest.NewRecorder()
	ListNotifications(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParseFlagNamesField(t *testing.T) {
	_, err := parseFlag(httptest.NewRequest(http.MethodGet, "/?unreadOnly=maybe", nil), "unreadOnly")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]any{"field": "unreadOnly"}, typed.Details())

	v, err := parseFlag(httptest.NewRequest(http.MethodGet, "/", nil), "unreadOnly")
	require.NoError(t, err)
	require.False(t, v)
}
