package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Service defines operations that record and aggregate ledger events.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, payoutID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	LifetimeTotal(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error)
	Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
type RecordLedgerEventInput struct {
	MemberID uuid.UUID             `json:"member_id"`
	PayoutID uuid.UUID             `json:"payout_id"`
	Type     enums.LedgerEventType `json:"type"`
	Amount   decimal.Decimal       `json:"amount"`
	Metadata json.RawMessage       `json:"metadata"`
}

// Summary aggregates a member's ledger. Outstanding is credited minus debited.
type Summary struct {
	MemberID    uuid.UUID       `json:"member_id"`
	Credited    decimal.Decimal `json:"credited"`
	Debited     decimal.Decimal `json:"debited"`
	Adjusted    decimal.Decimal `json:"adjusted"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

// RecordEvent appends an event. A payout carries at most one event per type,
// so recording the same mirror twice returns the stored row.
func (s *service) RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if input.MemberID == uuid.Nil {
		return nil, fmt.Errorf("member id is required")
	}
	if input.PayoutID == uuid.Nil {
		return nil, fmt.Errorf("payout id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("ledger amount must not be negative")
	}

	event := &models.LedgerEvent{
		ID:       uuid.New(),
		MemberID: input.MemberID,
		PayoutID: input.PayoutID,
		Type:     input.Type,
		Amount:   input.Amount,
	}
	if len(input.Metadata) > 0 {
		raw := string(input.Metadata)
		event.Metadata = &raw
	}

	if err := s.repo.Create(ctx, event); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, err
		}
		existing, lookupErr := s.find(ctx, input.PayoutID, input.Type)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	return event, nil
}

func (s *service) find(ctx context.Context, payoutID uuid.UUID, eventType enums.LedgerEventType) (*models.LedgerEvent, error) {
	events, err := s.repo.ListByPayoutID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].Type == eventType {
			return &events[i], nil
		}
	}
	return nil, nil
}

func (s *service) HasEvent(ctx context.Context, payoutID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if payoutID == uuid.Nil {
		return false, fmt.Errorf("payout id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}
	event, err := s.find(ctx, payoutID, eventType)
	if err != nil {
		return false, err
	}
	return event != nil, nil
}

// LifetimeTotal is everything ever credited to the member.
func (s *service) LifetimeTotal(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	totals, err := s.repo.TotalsByType(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	return totals[enums.LedgerEventTypePayoutCredit], nil
}

func (s *service) Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error) {
	totals, err := s.repo.TotalsByType(ctx, memberID)
	if err != nil {
		return nil, err
	}
	credited := totals[enums.LedgerEventTypePayoutCredit]
	debited := totals[enums.LedgerEventTypePayoutDebit]
	return &Summary{
		MemberID:    memberID,
		Credited:    credited,
		Debited:     debited,
		Adjusted:    totals[enums.LedgerEventTypeAdjustment],
		Outstanding: credited.Sub(debited),
	}, nil
}
