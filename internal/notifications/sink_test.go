package notifications

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/internal/testdb"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type failingRepository struct {
	fakeRepository
}

func (f *failingRepository) Create(ctx context.Context, notification *models.Notification) error {
	return errors.New("disk full")
}

func TestSink_RecordsAndPages(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	sink, err := NewSink(repo, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	member := uuid.New()
	for i := 0; i < 3; i++ {
		sink.Notify(ctx, Notice{MemberID: &member, Type: enums.NotificationTypeRankAchieved, Title: "Rank", Message: "up"})
		time.Sleep(2 * time.Millisecond)
	}
	sink.Notify(ctx, Notice{Type: enums.NotificationTypePayoutBatch, Title: "Batch", Message: "done"})

	page, err := svc.List(ctx, ListParams{MemberID: &member, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := svc.List(ctx, ListParams{MemberID: &member, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)
	assert.NotEqual(t, page.Items[0].ID, rest.Items[0].ID)
	assert.NotEqual(t, page.Items[1].ID, rest.Items[0].ID)

	ops, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, ops.Items, 1)
	assert.Equal(t, enums.NotificationTypePayoutBatch, ops.Items[0].Type)

	require.NoError(t, svc.MarkRead(ctx, &member, rest.Items[0].ID))
	unread, err := svc.List(ctx, ListParams{MemberID: &member, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 2)

	deleted, err := repo.DeleteOlderThan(ctx, nil, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}

func TestSink_PagesBurstWithoutRepeats(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	sink, err := NewSink(repo, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	member := uuid.New()
	for i := 0; i < 5; i++ {
		sink.Notify(ctx, Notice{MemberID: &member, Type: enums.NotificationTypePayoutCreated, Title: "Payout", Message: "created"})
	}

	seen := map[uuid.UUID]bool{}
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		page, err := svc.List(ctx, ListParams{MemberID: &member, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "notification %s listed twice", item.ID)
			seen[item.ID] = true
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	assert.Len(t, seen, 5)
}

func TestRepository_CursorBreaksTiesByID(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	member := uuid.New()
	at := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			ID:        uuid.New(),
			MemberID:  &member,
			Type:      enums.NotificationTypeSystem,
			Title:     "Tie",
			Message:   "same instant",
			CreatedAt: at,
		}))
	}

	first, err := svc.List(ctx, ListParams{MemberID: &member, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, ListParams{MemberID: &member, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.NotContains(t, []uuid.UUID{first.Items[0].ID, first.Items[1].ID}, second.Items[0].ID)
	assert.True(t, at.Equal(second.Items[0].CreatedAt))
}

func TestSink_FailureIsLoggedNotReturned(t *testing.T) {
	buf := &bytes.Buffer{}
	sink, err := NewSink(&failingRepository{}, logger.New(logger.Options{ServiceName: "test", Output: buf}))
	require.NoError(t, err)

	member := uuid.New()
	sink.Notify(context.Background(), Notice{MemberID: &member, Type: "unknown", Title: "x", Message: "y"})
	assert.Contains(t, buf.String(), "record notification failed")
	assert.Contains(t, buf.String(), member.String())
	assert.Contains(t, buf.String(), string(enums.NotificationTypeSystem))
}
