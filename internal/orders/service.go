package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order feed: orders are created pending and completed once.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	Complete(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
}

// ServiceParams groups the order service dependencies. Evaluator and Owners
// are optional.
type ServiceParams struct {
	TxRunner  txRunner
	Repo      Repository
	Members   members.Repository
	Evaluator Evaluator
	Owners    OwnerLookup
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	members   members.Repository
	evaluator Evaluator
	owners    OwnerLookup
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order feed service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, errors.New("transaction runner required")
	case params.Repo == nil:
		return nil, errors.New("orders repository required")
	case params.Members == nil:
		return nil, errors.New("members repository required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:        params.TxRunner,
		repo:      params.Repo,
		members:   params.Members,
		evaluator: params.Evaluator,
		owners:    params.Owners,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Create records a pending order. The referrer is the payer's sponsor at
// the time of purchase.
func (s *service) Create(ctx context.Context, input CreateInput) (*OrderDTO, error) {
	if input.PayerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Volume.IsNegative() || input.BusinessVolume.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "volumes must not be negative")
	}

	payer, err := s.members.FindByID(ctx, input.PayerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payer")
	}
	if payer.Status == enums.MemberStatusBlocked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payer is blocked")
	}

	order := &models.Order{
		ID:             uuid.New(),
		PayerID:        payer.ID,
		ReferrerID:     payer.SponsorID,
		Amount:         input.Amount,
		Volume:         input.Volume,
		BusinessVolume: input.BusinessVolume,
		Status:         enums.OrderStatusPending,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return s.Get(ctx, order.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := fromModel(*order)
	return &dto, nil
}

// Complete credits the payer's volume and stamps the first order. Completing
// an already completed order is a no-op.
func (s *service) Complete(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	var (
		completed *models.Order
		changed   bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		memberRepo := s.members.WithTx(tx)

		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		switch order.Status {
		case enums.OrderStatusCompleted:
			completed = order
			return nil
		case enums.OrderStatusCanceled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is canceled")
		}

		now := s.now()
		first, err := memberRepo.StampFirstOrder(ctx, order.PayerID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp first order")
		}
		ok, err := repo.MarkCompleted(ctx, order.ID, now, first)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		if err := memberRepo.CreditVolume(ctx, order.PayerID, order.Volume, order.BusinessVolume); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeIntegrity, "order payer is missing").
					WithDetails(map[string]any{"order_id": order.ID.String(), "payer_id": order.PayerID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit volume")
		}

		completed, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterCompletion(ctx, *completed)
	}
	dto := fromModel(*completed)
	return &dto, nil
}

// afterCompletion re-evaluates the upline the new volume counts for. A payer's
// own business volume never enters their club metrics; it counts as direct
// volume for the referrer and as deep volume for every infinity owner.
func (s *service) afterCompletion(ctx context.Context, order models.Order) {
	if s.evaluator == nil {
		return
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if order.IsFirstOrder && order.ReferrerID != nil {
		if err := s.evaluator.EvaluateRank(ctx, *order.ReferrerID); err != nil {
			s.logg.Error(s.logg.WithMemberID(ctx, order.ReferrerID.String()), "rank evaluation after order failed", err)
		}
	}
	for _, id := range s.clubCandidates(ctx, order) {
		if err := s.evaluator.EvaluateClub(ctx, id); err != nil {
			s.logg.Error(s.logg.WithMemberID(ctx, id.String()), "club evaluation after order failed", err)
		}
	}
}

// clubCandidates returns the referrer followed by the payer's infinity
// owners, without duplicates.
func (s *service) clubCandidates(ctx context.Context, order models.Order) []uuid.UUID {
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{order.PayerID: true}
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if order.ReferrerID != nil {
		add(*order.ReferrerID)
	}
	if s.owners != nil {
		owners, err := s.owners.OwnersOf(ctx, order.PayerID)
		if err != nil {
			s.logg.Error(s.logg.WithMemberID(ctx, order.PayerID.String()), "load infinity owners after order failed", err)
		}
		for _, id := range owners {
			add(id)
		}
	}
	return ids
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	ok, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !ok {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == enums.OrderStatusCanceled {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be canceled")
	}
	return s.Get(ctx, id)
}
