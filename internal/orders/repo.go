package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error) {
	out := make(map[uuid.UUID]models.Order, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// MarkCompleted moves a pending order to completed. It reports false when the
// order was not pending.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, firstOrder bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":         enums.OrderStatusCompleted,
			"completed_at":   at,
			"is_first_order": firstOrder,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Update("status", enums.OrderStatusCanceled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListCompletedBetween returns orders completed in [from, to), oldest first.
func (r *repository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", enums.OrderStatusCompleted, from.UTC(), to.UTC()).
		Order("completed_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkBonusPaid sets the processed flag for one bonus type. It reports false
// when the flag was already set.
func (r *repository) MarkBonusPaid(ctx context.Context, id uuid.UUID, bonus enums.BonusType, at time.Time) (bool, error) {
	column, err := bonusColumn(bonus)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND "+column+" IS NULL", id).
		UpdateColumn(column, at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func bonusColumn(bonus enums.BonusType) (string, error) {
	switch bonus {
	case enums.BonusTypeDirect:
		return "direct_bonus_paid_at", nil
	case enums.BonusTypeRepurchase:
		return "repurchase_bonus_paid_at", nil
	case enums.BonusTypeInfinity:
		return "infinity_bonus_paid_at", nil
	default:
		return "", fmt.Errorf("bonus type %q has no order flag", bonus)
	}
}

// BonusPaid reports whether the order's processed flag for bonus is set.
func BonusPaid(order models.Order, bonus enums.BonusType) bool {
	switch bonus {
	case enums.BonusTypeDirect:
		return order.DirectBonusPaidAt != nil
	case enums.BonusTypeRepurchase:
		return order.RepurchaseBonusPaidAt != nil
	case enums.BonusTypeInfinity:
		return order.InfinityBonusPaidAt != nil
	default:
		return false
	}
}
