package payouts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/pagination"
)

// Repository persists payouts. TransitionStatus is the only way a stored
// payout changes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindBySource(ctx context.Context, bonus enums.BonusType, sourceID, beneficiaryID uuid.UUID) (*models.Payout, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to enums.PayoutStatus, change StatusChange) (*models.Payout, error)
	ListByStatus(ctx context.Context, status enums.PayoutStatus, after uuid.UUID, limit int) ([]models.Payout, error)
	ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.Payout, error)
	List(ctx context.Context, filter listFilter) ([]models.Payout, *pagination.Cursor, error)
	TotalsByStatus(ctx context.Context, beneficiaryID uuid.UUID) (map[enums.PayoutStatus]StatusTotal, error)
}

// StatusChange carries the columns written alongside a status move.
type StatusChange struct {
	HoldReason  *string
	CompletedAt *time.Time
}

// StatusTotal aggregates payouts sharing a status.
type StatusTotal struct {
	Count int64           `json:"count"`
	Gross decimal.Decimal `json:"gross"`
}

type listFilter struct {
	BeneficiaryID *uuid.UUID
	From          *time.Time
	To            *time.Time
	Status        *enums.PayoutStatus
	Search        string
	Limit         int
	Cursor        *pagination.Cursor
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

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

// FindBySource returns nil when the source has not produced a payout yet.
func (r *repository) FindBySource(ctx context.Context, bonus enums.BonusType, sourceID, beneficiaryID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Where("bonus_type = ? AND source_id = ? AND beneficiary_id = ?", bonus, sourceID, beneficiaryID).
		First(&payout).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// TransitionStatus moves a payout to `to` when the lifecycle allows it. The
// update is conditional on the status read, so a concurrent move makes this
// one fail instead of overwriting it.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, to enums.PayoutStatus, change StatusChange) (*models.Payout, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout status transition not allowed").
			WithDetails(map[string]any{"from": string(current.Status), "to": string(to)})
	}

	updates := map[string]any{
		"status":      to,
		"hold_reason": change.HoldReason,
	}
	if change.CompletedAt != nil {
		updates["completed_at"] = change.CompletedAt.UTC()
	}
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, current.Status).
		Updates(updates)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update payout status")
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout changed concurrently")
	}
	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
	}
	return updated, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PayoutStatus, after uuid.UUID, limit int) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).Where("status = ?", status)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var rows []models.Payout
	if err := query.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).Model(&models.Payout{})
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var rows []models.Payout
	if err := query.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// List pages payouts newest first. Search matches the bonus type, the source
// type, or the beneficiary's name, case-insensitively. The term is matched
// literally; % and _ are not wildcards.
func (r *repository) List(ctx context.Context, filter listFilter) ([]models.Payout, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(filter.Limit)
	normalized := pagination.NormalizeLimit(filter.Limit)

	query := r.db.WithContext(ctx).Model(&models.Payout{}).Select("payouts.*")
	if filter.BeneficiaryID != nil {
		query = query.Where("payouts.beneficiary_id = ?", *filter.BeneficiaryID)
	}
	if filter.From != nil {
		query = query.Where("payouts.created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("payouts.created_at < ?", filter.To.UTC())
	}
	if filter.Status != nil {
		query = query.Where("payouts.status = ?", *filter.Status)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		query = query.
			Joins("LEFT JOIN members ON members.id = payouts.beneficiary_id").
			Where(`(LOWER(CAST(payouts.bonus_type AS TEXT)) LIKE ? ESCAPE '\' OR LOWER(payouts.source_type) LIKE ? ESCAPE '\' OR LOWER(members.name) LIKE ? ESCAPE '\')`, like, like, like)
	}
	if filter.Cursor != nil {
		query = query.Where("((payouts.created_at < ?) OR (payouts.created_at = ? AND payouts.id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	var rows []models.Payout
	if err := query.Order("payouts.created_at DESC, payouts.id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		last := rows[normalized-1]
		return rows[:normalized], &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

type statusTotalRow struct {
	Status enums.PayoutStatus
	Count  int64
	Gross  decimal.Decimal
}

func (r *repository) TotalsByStatus(ctx context.Context, beneficiaryID uuid.UUID) (map[enums.PayoutStatus]StatusTotal, error) {
	var rows []statusTotalRow
	if err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(gross), 0) AS gross").
		Where("beneficiary_id = ?", beneficiaryID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.PayoutStatus]StatusTotal, len(rows))
	for _, row := range rows {
		out[row.Status] = StatusTotal{Count: row.Count, Gross: row.Gross}
	}
	return out, nil
}
