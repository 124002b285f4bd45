package infinity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
)

// Repository persists owners' leveled infinity lists.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ReplaceOwner(ctx context.Context, ownerID uuid.UUID, rows []models.InfinityMember) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InfinityMember, error)
	OwnersOf(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error)
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

// ReplaceOwner clears the owner's list and writes rows. Callers run it inside
// a transaction so readers never see a half-built list. The owner's member row
// is locked first so overlapping rebuilds of one owner run one after another.
func (r *repository) ReplaceOwner(ctx context.Context, ownerID uuid.UUID, rows []models.InfinityMember) error {
	if err := lockOwner(r.db.WithContext(ctx), ownerID).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.InfinityMember{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, 500).Error
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InfinityMember, error) {
	var rows []models.InfinityMember
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("level ASC").
		Order("member_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// OwnersOf lists every owner whose stored team includes memberID.
func (r *repository) OwnersOf(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error) {
	var rows []models.InfinityMember
	err := r.db.WithContext(ctx).
		Select("owner_id").
		Where("member_id = ?", memberID).
		Order("level ASC").
		Order("owner_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	owners := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		owners = append(owners, row.OwnerID)
	}
	return owners, nil
}

// lockOwner takes a row lock on the owner's member record. SQLite has no row
// locks; its single writer already serializes rebuilds.
func lockOwner(db *gorm.DB, ownerID uuid.UUID) *gorm.DB {
	var owner struct{ ID uuid.UUID }
	return db.Model(&models.Member{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", ownerID).
		Take(&owner)
}
