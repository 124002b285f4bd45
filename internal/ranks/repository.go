package ranks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
)

// Repository persists consumed referral pairs and the unpaired pool.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListQualifications(ctx context.Context, memberID uuid.UUID) ([]models.RankQualification, error)
	CreateQualifications(ctx context.Context, rows []models.RankQualification) error
	GetPool(ctx context.Context, memberID uuid.UUID) (*models.RankPool, error)
	SavePool(ctx context.Context, pool *models.RankPool) error
	FindQualifications(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.RankQualification, error)
	ListUnpaidBetween(ctx context.Context, from, to time.Time) ([]models.RankQualification, error)
	MarkBonusPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListQualifications(ctx context.Context, memberID uuid.UUID) ([]models.RankQualification, error) {
	var rows []models.RankQualification
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("level ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateQualifications inserts granted pairs. The unique constraints on
// (member, level) and (member, referral) reject a concurrent duplicate grant.
func (r *repository) CreateQualifications(ctx context.Context, rows []models.RankQualification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// GetPool returns nil when the member has never been evaluated.
func (r *repository) GetPool(ctx context.Context, memberID uuid.UUID) (*models.RankPool, error) {
	var rows []models.RankPool
	if err := r.db.WithContext(ctx).Where("member_id = ?", memberID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) SavePool(ctx context.Context, pool *models.RankPool) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"left_ids", "right_ids", "updated_at"}),
	}).Create(pool).Error
}

func (r *repository) FindQualifications(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.RankQualification, error) {
	out := make(map[uuid.UUID]models.RankQualification, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.RankQualification
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ListUnpaidBetween returns grants created in [from, to) whose rank bonus is
// still unpaid.
func (r *repository) ListUnpaidBetween(ctx context.Context, from, to time.Time) ([]models.RankQualification, error) {
	var rows []models.RankQualification
	err := r.db.WithContext(ctx).
		Where("bonus_paid_at IS NULL AND created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkBonusPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RankQualification{}).
		Where("id = ? AND bonus_paid_at IS NULL", id).
		UpdateColumn("bonus_paid_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
