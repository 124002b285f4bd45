package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
)

type testNotificationsService struct {
	markReadFn    func(ctx context.Context, memberID *uuid.UUID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, memberID *uuid.UUID) (int64, error)
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, memberID *uuid.UUID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, memberID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, memberID *uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, memberID)
	}
	return 0, nil
}

func TestListNotificationsForMember(t *testing.T) {
	memberID := uuid.New()
	var got notifications.ListParams
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			got = params
			return &notifications.ListResult{
				Items:  []models.Notification{{ID: uuid.New(), MemberID: &memberID, Message: "payout created"}},
				Cursor: "next",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?memberId="+memberID.String()+"&unreadOnly=true&limit=5", nil)
	resp := serve(ListNotifications(svc, quietLogger()), req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, got.MemberID)
	assert.Equal(t, memberID, *got.MemberID)
	assert.True(t, got.UnreadOnly)
	assert.Equal(t, 5, got.Limit)
	assert.Contains(t, resp.Body.String(), `"next_cursor":"next"`)
}

func TestListNotificationsOperatorFeedReturnsEmptyArray(t *testing.T) {
	var got notifications.ListParams
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			got = params
			return &notifications.ListResult{}, nil
		},
	}

	resp := serve(ListNotifications(svc, quietLogger()), httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, got.MemberID)
	assert.Contains(t, resp.Body.String(), `"data":[]`)
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"?memberId=nope", "?unreadOnly=maybe", "?limit=0"} {
		resp := serve(ListNotifications(&testNotificationsService{}, quietLogger()), httptest.NewRequest(http.MethodGet, "/api/v1/notifications"+query, nil))
		assert.Equal(t, http.StatusBadRequest, resp.Code, query)
	}
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	memberID := uuid.New()
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, mid *uuid.UUID, nid uuid.UUID) error {
			called = true
			require.NotNil(t, mid)
			assert.Equal(t, memberID, *mid)
			assert.Equal(t, notificationID, nid)
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read?memberId="+memberID.String(), nil)
	req = withRouteParams(req, "notificationId", notificationID.String())
	resp := serve(MarkNotificationRead(svc, quietLogger()), req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, called)
	assert.True(t, decodeData[map[string]bool](t, resp)["read"])
}

func TestMarkNotificationReadInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/invalid/read", nil)
	req = withRouteParams(req, "notificationId", "invalid")
	resp := serve(MarkNotificationRead(&testNotificationsService{}, quietLogger()), req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, _ *uuid.UUID, _ uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		},
	}
	id := uuid.NewString()
	req := withRouteParams(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+id+"/read", nil), "notificationId", id)
	resp := serve(MarkNotificationRead(svc, quietLogger()), req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMarkAllNotificationsReadSuccess(t *testing.T) {
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, mid *uuid.UUID) (int64, error) {
			assert.Nil(t, mid)
			return 5, nil
		},
	}

	resp := serve(MarkAllNotificationsRead(svc, quietLogger()), httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(5), decodeData[map[string]float64](t, resp)["updated"])
}
