package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Repository manages persistence for ledger events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LedgerEvent) error
	ListByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]models.LedgerEvent, error)
	PayoutIDsWith(ctx context.Context, payoutIDs []uuid.UUID, eventType enums.LedgerEventType) (map[uuid.UUID]struct{}, error)
	TotalsByType(ctx context.Context, memberID uuid.UUID) (map[enums.LedgerEventType]decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	if err := r.db.WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// PayoutIDsWith returns the subset of payoutIDs that already carry an event
// of eventType.
func (r *repository) PayoutIDsWith(ctx context.Context, payoutIDs []uuid.UUID, eventType enums.LedgerEventType) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(payoutIDs))
	if len(payoutIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Where("payout_id IN ? AND type = ?", payoutIDs, eventType).
		Pluck("payout_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

type typeTotal struct {
	Type  enums.LedgerEventType
	Total decimal.Decimal
}

func (r *repository) TotalsByType(ctx context.Context, memberID uuid.UUID) (map[enums.LedgerEventType]decimal.Decimal, error) {
	var rows []typeTotal
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("member_id = ?", memberID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.LedgerEventType]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}
