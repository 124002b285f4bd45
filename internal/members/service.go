package members

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/tree"
	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ChainRebuilder recomputes infinity teams from a member up its sponsor chain.
type ChainRebuilder interface {
	RebuildChain(ctx context.Context, memberID uuid.UUID) error
}

// Evaluator re-evaluates rank and club for a member.
type Evaluator interface {
	Evaluate(ctx context.Context, memberID uuid.UUID) error
}

// Service exposes the member directory operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*MemberDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) (*MemberDTO, error)
}

// ServiceParams groups the member service dependencies. Infinity and Ranks
// are optional; when set they run after a registration commits.
type ServiceParams struct {
	TxRunner txRunner
	Repo     Repository
	Tree     tree.Repository
	Placer   *tree.Placer
	Wallets  wallets.Service
	Infinity ChainRebuilder
	Ranks    Evaluator
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	repo     Repository
	tree     tree.Repository
	placer   *tree.Placer
	wallets  wallets.Service
	infinity ChainRebuilder
	ranks    Evaluator
	logg     *logger.Logger
}

// NewService wires the member service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	case params.Repo == nil:
		return nil, errors.New("member repository required")
	case params.Tree == nil:
		return nil, errors.New("tree repository required")
	case params.Placer == nil:
		return nil, errors.New("placer required")
	case params.Wallets == nil:
		return nil, errors.New("wallet service required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		tree:     params.Tree,
		placer:   params.Placer,
		wallets:  params.Wallets,
		infinity: params.Infinity,
		ranks:    params.Ranks,
		logg:     params.Logger,
	}, nil
}

// Register creates the member, places it in the tree and appends it to the
// sponsor's referral list in one transaction. Infinity and rank triggers run
// afterwards; their failures are logged and do not undo the registration.
func (s *service) Register(ctx context.Context, input RegisterInput) (*MemberDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	preferred := enums.SideLeft
	if input.PreferredSide != nil {
		if !input.PreferredSide.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "preferred side must be left or right")
		}
		preferred = *input.PreferredSide
	}
	if input.Side != nil && !input.Side.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "side must be left or right")
	}

	var created *models.Member
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		side := preferred
		if input.SponsorID != nil {
			sponsor, err := repo.FindByID(ctx, *input.SponsorID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "sponsor not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor")
			}
			if sponsor.Status == enums.MemberStatusBlocked {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "sponsor is blocked")
			}
			side = sponsor.PreferredSide
			if input.Side != nil {
				side = *input.Side
			}
		}

		member := &models.Member{
			ID:            uuid.New(),
			Name:          name,
			Status:        enums.MemberStatusActive,
			SponsorID:     input.SponsorID,
			PreferredSide: preferred,
			Club:          enums.ClubNone,
		}
		if err := repo.Create(ctx, member); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
		}

		if _, err := s.placer.WithTx(tx).Place(ctx, tree.PlaceInput{
			MemberID:  member.ID,
			SponsorID: input.SponsorID,
			Side:      side,
		}); err != nil {
			return err
		}

		if input.SponsorID != nil {
			position, err := repo.IncrementReferralCount(ctx, *input.SponsorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment referral count")
			}
			if err := repo.CreateReferral(ctx, &models.MemberReferral{
				ID:         uuid.New(),
				SponsorID:  *input.SponsorID,
				ReferredID: member.ID,
				Position:   position,
			}); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "referral position taken")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record referral")
			}
		}

		reloaded, err := repo.FindByID(ctx, member.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload member")
		}
		created = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if input.SponsorID != nil {
		s.afterReferral(ctx, *input.SponsorID)
	}

	dto := FromModel(*created)
	return &dto, nil
}

func (s *service) afterReferral(ctx context.Context, sponsorID uuid.UUID) {
	ctx = s.logg.WithMemberID(ctx, sponsorID.String())
	if s.infinity != nil {
		if err := s.infinity.RebuildChain(ctx, sponsorID); err != nil {
			s.logg.Error(ctx, "infinity rebuild after registration failed", err)
		}
	}
	if s.ranks != nil {
		if err := s.ranks.Evaluate(ctx, sponsorID); err != nil {
			s.logg.Error(ctx, "rank evaluation after registration failed", err)
		}
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	wallet, err := s.wallets.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{Member: FromModel(*member), Wallet: wallet}, nil
}

// SetStatus changes the member status and its tree node mirror together.
func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) (*MemberDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member status")
	}

	var updated *models.Member
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.UpdateStatus(ctx, id, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member status")
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		if err := s.tree.WithTx(tx).SetStatus(ctx, id, status); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeIntegrity, "member has no tree node").WithDetails(map[string]any{"member_id": id.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror status to tree")
		}
		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload member")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(*updated)
	return &dto, nil
}
