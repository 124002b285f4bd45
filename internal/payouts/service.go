package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/ledger"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
	"github.com/angelmondragon/binarycomp-backend/pkg/pagination"
)

// Service exposes stored payouts to callers.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*PayoutDTO, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*PayoutDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error)
}

// ServiceParams groups the payout service dependencies.
type ServiceParams struct {
	TxRunner txRunner
	Repo     Repository
	Members  MemberReader
	Ledger   ledger.Service
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx      txRunner
	repo    Repository
	members MemberReader
	ledger  ledger.Service
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, errors.New("transaction runner required")
	case params.Repo == nil:
		return nil, errors.New("payouts repository required")
	case params.Members == nil:
		return nil, errors.New("member reader required")
	case params.Ledger == nil:
		return nil, errors.New("ledger service required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:      params.TxRunner,
		repo:    params.Repo,
		members: params.Members,
		ledger:  params.Ledger,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PayoutDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	dto := fromModel(*payout)
	return &dto, nil
}

// MarkCompleted settles a pending payout and mirrors the debit in the
// ledger. A held payout must be released first; completing twice is a no-op.
func (s *service) MarkCompleted(ctx context.Context, id uuid.UUID) (*PayoutDTO, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case enums.PayoutStatusCompleted:
		return current, nil
	case enums.PayoutStatusOnHold:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout is on hold").
			WithDetails(map[string]any{"hold_reason": current.HoldReason})
	}

	completedAt := s.now()
	var dto PayoutDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.repo.WithTx(tx).TransitionStatus(ctx, id, enums.PayoutStatusCompleted, StatusChange{CompletedAt: &completedAt})
		if err != nil {
			return err
		}
		if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, debitInput(updated)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout debit")
		}
		dto = fromModel(*updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_id": id.String(),
		"member_id": dto.BeneficiaryID.String(),
	}), "payout completed")
	return &dto, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.MemberID != nil && *params.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payout status")
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}

	filter := listFilter{
		BeneficiaryID: params.MemberID,
		From:          params.From,
		To:            params.To,
		Status:        params.Status,
		Search:        params.Search,
		Limit:         params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filter.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	items := make([]PayoutDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromModel(row))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	totals, err := s.ledger.Summary(ctx, memberID)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.TotalsByStatus(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payouts")
	}
	return &Summary{Summary: *totals, ByStatus: byStatus}, nil
}
