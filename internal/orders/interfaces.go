package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Repository defines persistence operations for the order feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, firstOrder bool) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
	MarkBonusPaid(ctx context.Context, id uuid.UUID, bonus enums.BonusType, at time.Time) (bool, error)
}

// Evaluator re-runs rank and club rules after volume changes.
type Evaluator interface {
	EvaluateRank(ctx context.Context, memberID uuid.UUID) error
	EvaluateClub(ctx context.Context, memberID uuid.UUID) error
}

// OwnerLookup finds the infinity owners whose deep volume includes a member.
type OwnerLookup interface {
	OwnersOf(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error)
}
