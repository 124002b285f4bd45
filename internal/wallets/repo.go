package wallets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
)

// Repository persists payout destinations and verification flags.
type Repository interface {
	FindByMemberIDs(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]models.Wallet, error)
	Upsert(ctx context.Context, wallet *models.Wallet) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByMemberIDs(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]models.Wallet, error) {
	out := make(map[uuid.UUID]models.Wallet, len(memberIDs))
	if len(memberIDs) == 0 {
		return out, nil
	}
	var rows []models.Wallet
	if err := r.db.WithContext(ctx).Where("member_id IN ?", memberIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MemberID] = row
	}
	return out, nil
}

func (r *repository) Upsert(ctx context.Context, wallet *models.Wallet) error {
	if wallet == nil {
		return errors.New("wallet required")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payout_destination", "identity_verified", "updated_at"}),
	}).Create(wallet).Error
}
