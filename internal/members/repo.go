package members

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Repository is the member directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Member, error)
	IncrementReferralCount(ctx context.Context, sponsorID uuid.UUID) (int, error)
	CreateReferral(ctx context.Context, referral *models.MemberReferral) error
	ReferralsOf(ctx context.Context, sponsorIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	PaidReferrals(ctx context.Context, sponsorID uuid.UUID) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) (bool, error)
	PromoteRank(ctx context.Context, id uuid.UUID, rank int) (bool, error)
	PromoteClub(ctx context.Context, id uuid.UUID, from, to enums.Club) (bool, error)
	SetInfinitySponsor(ctx context.Context, memberIDs []uuid.UUID, ownerID uuid.UUID) error
	CreditVolume(ctx context.Context, id uuid.UUID, personal, business decimal.Decimal) error
	StampFirstOrder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListActiveIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a member repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Member, error) {
	out := make(map[uuid.UUID]models.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// IncrementReferralCount bumps the sponsor's counter and returns the new
// value, which doubles as the next referral position. The row lock taken by
// the update serializes concurrent registrations under one sponsor.
func (r *repository) IncrementReferralCount(ctx context.Context, sponsorID uuid.UUID) (int, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.Member{}).
		Where("id = ?", sponsorID).
		UpdateColumn("referral_count", gorm.Expr("referral_count + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var counts []int
	if err := db.Model(&models.Member{}).Where("id = ?", sponsorID).Pluck("referral_count", &counts).Error; err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return counts[0], nil
}

func (r *repository) CreateReferral(ctx context.Context, referral *models.MemberReferral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

// ReferralsOf returns each sponsor's referred ids ordered by position.
func (r *repository) ReferralsOf(ctx context.Context, sponsorIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(sponsorIDs))
	if len(sponsorIDs) == 0 {
		return out, nil
	}
	var rows []models.MemberReferral
	if err := r.db.WithContext(ctx).
		Where("sponsor_id IN ?", sponsorIDs).
		Order("sponsor_id ASC, position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SponsorID] = append(out[row.SponsorID], row.ReferredID)
	}
	return out, nil
}

// PaidReferrals returns the sponsor's direct referrals that completed a first
// order, in referral order.
func (r *repository) PaidReferrals(ctx context.Context, sponsorID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("member_referrals AS mr").
		Joins("JOIN members m ON m.id = mr.referred_id").
		Where("mr.sponsor_id = ? AND m.first_order_at IS NOT NULL", sponsorID).
		Order("mr.position ASC").
		Pluck("mr.referred_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PromoteRank raises the rank only; a lower or equal value is a no-op.
func (r *repository) PromoteRank(ctx context.Context, id uuid.UUID, rank int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ? AND rank < ?", id, rank).
		Update("rank", rank)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PromoteClub moves the club from one tier to another only if the stored tier
// is still from.
func (r *repository) PromoteClub(ctx context.Context, id uuid.UUID, from, to enums.Club) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ? AND club = ?", id, from).
		Update("club", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetInfinitySponsor(ctx context.Context, memberIDs []uuid.UUID, ownerID uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id IN ?", memberIDs).
		UpdateColumn("infinity_sponsor_id", ownerID).Error
}

func (r *repository) CreditVolume(ctx context.Context, id uuid.UUID, personal, business decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"personal_volume": gorm.Expr("personal_volume + ?", personal),
			"business_volume": gorm.Expr("business_volume + ?", business),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// StampFirstOrder sets first_order_at once; later calls report false.
func (r *repository) StampFirstOrder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ? AND first_order_at IS NULL", id).
		UpdateColumn("first_order_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListActiveIDs pages through active members by id.
func (r *repository) ListActiveIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("status = ?", enums.MemberStatusActive)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var ids []uuid.UUID
	if err := query.Order("id ASC").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
