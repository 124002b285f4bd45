package wallets

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
)

// Status is what payout rules need to know about a beneficiary's wallet.
type Status struct {
	MemberID          uuid.UUID `json:"member_id"`
	HasDestination    bool      `json:"has_destination"`
	IdentityVerified  bool      `json:"identity_verified"`
	PayoutDestination *string   `json:"payout_destination,omitempty"`
}

// UpdateInput carries a wallet change from the member.
type UpdateInput struct {
	MemberID          uuid.UUID
	PayoutDestination *string
	IdentityVerified  bool
}

// Service is the wallet and identity lookup.
type Service interface {
	Lookup(ctx context.Context, memberID uuid.UUID) (Status, error)
	LookupMany(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]Status, error)
	Update(ctx context.Context, input UpdateInput) (Status, error)
}

type service struct {
	repo Repository
}

// NewService wires the wallet lookup.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet repository required")
	}
	return &service{repo: repo}, nil
}

// Lookup never fails for a member without a wallet; the zero Status means no
// destination and no verification.
func (s *service) Lookup(ctx context.Context, memberID uuid.UUID) (Status, error) {
	statuses, err := s.LookupMany(ctx, []uuid.UUID{memberID})
	if err != nil {
		return Status{}, err
	}
	return statuses[memberID], nil
}

func (s *service) LookupMany(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]Status, error) {
	rows, err := s.repo.FindByMemberIDs(ctx, memberIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallets")
	}
	out := make(map[uuid.UUID]Status, len(memberIDs))
	for _, id := range memberIDs {
		wallet, ok := rows[id]
		if !ok {
			out[id] = Status{MemberID: id}
			continue
		}
		out[id] = toStatus(wallet)
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (Status, error) {
	if input.MemberID == uuid.Nil {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	var destination *string
	if input.PayoutDestination != nil {
		if trimmed := strings.TrimSpace(*input.PayoutDestination); trimmed != "" {
			destination = &trimmed
		}
	}
	wallet := &models.Wallet{
		MemberID:          input.MemberID,
		PayoutDestination: destination,
		IdentityVerified:  input.IdentityVerified,
	}
	if err := s.repo.Upsert(ctx, wallet); err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wallet")
	}
	return toStatus(*wallet), nil
}

func toStatus(wallet models.Wallet) Status {
	return Status{
		MemberID:          wallet.MemberID,
		HasDestination:    wallet.PayoutDestination != nil && strings.TrimSpace(*wallet.PayoutDestination) != "",
		IdentityVerified:  wallet.IdentityVerified,
		PayoutDestination: wallet.PayoutDestination,
	}
}
