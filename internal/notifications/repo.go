package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/pagination"
)

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, memberID *uuid.UUID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, memberID *uuid.UUID, now time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// listNotificationsParams scopes a page to one member; a nil MemberID lists
// operator notices.
type listNotificationsParams struct {
	MemberID   *uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func scopeMember(query *gorm.DB, memberID *uuid.UUID) *gorm.DB {
	if memberID == nil {
		return query.Where("member_id IS NULL")
	}
	return query.Where("member_id = ?", *memberID)
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := scopeMember(r.db.WithContext(ctx).Model(&models.Notification{}), params.MemberID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, nil, err
	}

	if len(notifications) > normalized {
		next := notifications[normalized-1]
		notifications = notifications[:normalized]
		return notifications, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return notifications, nil, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, memberID *uuid.UUID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	result := scopeMember(r.db.WithContext(ctx).Model(&models.Notification{}), memberID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}

	mark := notificationMarkResult{Updated: result.RowsAffected > 0}
	if result.RowsAffected > 0 {
		mark.Found = true
		return mark, nil
	}

	var count int64
	if err := scopeMember(r.db.WithContext(ctx).Model(&models.Notification{}), memberID).
		Where("id = ?", notificationID).
		Count(&count).Error; err != nil {
		return notificationMarkResult{}, err
	}
	mark.Found = count > 0
	return mark, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, memberID *uuid.UUID, now time.Time) (int64, error) {
	result := scopeMember(r.db.WithContext(ctx).Model(&models.Notification{}), memberID).
		Where("read_at IS NULL").
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteOlderThan removes notices created before cutoff. tx may be nil.
func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	result := conn.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
