package ranks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/infinity"
	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/internal/tree"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/binarycomp-backend/pkg/db/types"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

const sweepPageSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SideIndexer splits a member's whole binary subtree by leg.
type SideIndexer interface {
	SideSets(ctx context.Context, memberID uuid.UUID) (*tree.SideSets, error)
}

// TeamReader reads a stored infinity team.
type TeamReader interface {
	Levels(ctx context.Context, ownerID uuid.UUID) (*infinity.Team, error)
}

// LifetimeReader reports everything ever paid out to a member.
type LifetimeReader interface {
	LifetimeTotal(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error)
}

type notifier interface {
	Notify(ctx context.Context, notice notifications.Notice)
}

// EngineParams groups the rank and club engine dependencies.
type EngineParams struct {
	TxRunner       txRunner
	Repo           Repository
	Members        members.Repository
	Sides          SideIndexer
	Teams          TeamReader
	Lifetime       LifetimeReader
	Notifier       notifier
	Logger         *logger.Logger
	MaxRank        int
	PairingCeiling enums.Club
	Thresholds     []ClubThreshold
}

// Engine grants sequential ranks from left/right referral pairs and assigns
// club tiers from volume and payout history.
type Engine struct {
	tx         txRunner
	repo       Repository
	members    members.Repository
	sides      SideIndexer
	teams      TeamReader
	lifetime   LifetimeReader
	notify     notifier
	logg       *logger.Logger
	maxRank    int
	ceiling    enums.Club
	thresholds []ClubThreshold
}

func NewEngine(params EngineParams) (*Engine, error) {
	switch {
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	case params.Repo == nil:
		return nil, errors.New("ranks repository required")
	case params.Members == nil:
		return nil, errors.New("members repository required")
	case params.Sides == nil:
		return nil, errors.New("side indexer required")
	case params.Teams == nil:
		return nil, errors.New("team reader required")
	case params.Lifetime == nil:
		return nil, errors.New("lifetime reader required")
	case params.Notifier == nil:
		return nil, errors.New("notifier required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.MaxRank <= 0:
		return nil, errors.New("max rank must be positive")
	}
	ceiling := params.PairingCeiling
	if ceiling == "" {
		ceiling = enums.ClubSilver
	}
	if !ceiling.IsValid() {
		return nil, fmt.Errorf("invalid pairing ceiling %q", ceiling)
	}
	thresholds := params.Thresholds
	if len(thresholds) == 0 {
		thresholds = DefaultClubThresholds()
	}
	return &Engine{
		tx:         params.TxRunner,
		repo:       params.Repo,
		members:    params.Members,
		sides:      params.Sides,
		teams:      params.Teams,
		lifetime:   params.Lifetime,
		notify:     params.Notifier,
		logg:       params.Logger,
		maxRank:    params.MaxRank,
		ceiling:    ceiling,
		thresholds: thresholds,
	}, nil
}

// RankResult describes one pairing pass.
type RankResult struct {
	MemberID      uuid.UUID                  `json:"member_id"`
	PreviousRank  int                        `json:"previous_rank"`
	Rank          int                        `json:"rank"`
	Granted       []models.RankQualification `json:"granted"`
	UnpairedLeft  []uuid.UUID                `json:"unpaired_left"`
	UnpairedRight []uuid.UUID                `json:"unpaired_right"`
	Skipped       bool                       `json:"skipped"`
}

// PairRanks pairs unused left and right paid directs in referral order, each
// pair granting the next rank up to the cap. Remainders stay in the pool.
// Running it again without new paid directs changes nothing.
func (e *Engine) PairRanks(ctx context.Context, memberID uuid.UUID) (*RankResult, error) {
	member, err := e.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	result := &RankResult{MemberID: memberID, PreviousRank: member.Rank, Rank: member.Rank}
	if member.Club.Above(e.ceiling) {
		result.Skipped = true
		return result, nil
	}

	paid, err := e.members.PaidReferrals(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid referrals")
	}
	sides, err := e.sides.SideSets(ctx, memberID)
	if err != nil {
		return nil, err
	}

	promoted := false
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		existing, err := repo.ListQualifications(ctx, memberID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qualifications")
		}
		consumed := make(map[uuid.UUID]struct{}, 2*len(existing))
		level := 0
		for _, q := range existing {
			consumed[q.LeftReferralID] = struct{}{}
			consumed[q.RightReferralID] = struct{}{}
			if q.Level > level {
				level = q.Level
			}
		}

		var left, right []uuid.UUID
		for _, id := range paid {
			if _, used := consumed[id]; used {
				continue
			}
			side, ok := sides.SideOf(id)
			if !ok {
				e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
					"member_id":   memberID.String(),
					"referral_id": id.String(),
				}), "paid referral not found in binary subtree")
				continue
			}
			if side == enums.SideLeft {
				left = append(left, id)
			} else {
				right = append(right, id)
			}
		}

		var granted []models.RankQualification
		for len(left) > 0 && len(right) > 0 && level < e.maxRank {
			level++
			granted = append(granted, models.RankQualification{
				ID:              uuid.New(),
				MemberID:        memberID,
				Level:           level,
				LeftReferralID:  left[0],
				RightReferralID: right[0],
			})
			left, right = left[1:], right[1:]
		}

		if err := repo.CreateQualifications(ctx, granted); err != nil {
			return err
		}
		if err := repo.SavePool(ctx, &models.RankPool{
			MemberID: memberID,
			LeftIDs:  dbtypes.UUIDArray(left),
			RightIDs: dbtypes.UUIDArray(right),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rank pool")
		}
		if len(granted) > 0 {
			promoted, err = e.members.WithTx(tx).PromoteRank(ctx, memberID, level)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote rank")
			}
		}

		result.Granted = granted
		result.UnpairedLeft = left
		result.UnpairedRight = right
		if level > result.Rank {
			result.Rank = level
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// A concurrent pass granted the same pair first.
			e.logg.Debug(e.logg.WithMemberID(ctx, memberID.String()), "rank pairing lost a concurrent race")
			return &RankResult{MemberID: memberID, PreviousRank: member.Rank, Rank: member.Rank}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist rank pairing")
	}

	if promoted {
		e.notify.Notify(ctx, notifications.Notice{
			MemberID: &memberID,
			Type:     enums.NotificationTypeRankAchieved,
			Title:    "Rank achieved",
			Message:  fmt.Sprintf("You reached rank %d.", result.Rank),
		})
	}
	return result, nil
}

// ClubResult describes one club evaluation.
type ClubResult struct {
	MemberID uuid.UUID   `json:"member_id"`
	Previous enums.Club  `json:"previous"`
	Club     enums.Club  `json:"club"`
	Metrics  ClubMetrics `json:"metrics"`
}

// AssignClub measures both legs and upgrades the club when a higher tier is
// met. Clubs never move down.
func (e *Engine) AssignClub(ctx context.Context, memberID uuid.UUID) (*ClubResult, error) {
	member, err := e.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	metrics, err := e.measure(ctx, memberID)
	if err != nil {
		return nil, err
	}
	result := &ClubResult{MemberID: memberID, Previous: member.Club, Club: member.Club, Metrics: *metrics}

	target := qualifyingClub(*metrics, e.thresholds)
	if !target.Above(member.Club) {
		return result, nil
	}
	ok, err := e.members.PromoteClub(ctx, memberID, member.Club, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote club")
	}
	if !ok {
		// Changed underneath us; the next evaluation sees the new club.
		return result, nil
	}
	result.Club = target
	e.notify.Notify(ctx, notifications.Notice{
		MemberID: &memberID,
		Type:     enums.NotificationTypeClubUpgraded,
		Title:    "Club upgraded",
		Message:  fmt.Sprintf("Welcome to the %s club.", target),
	})
	return result, nil
}

func (e *Engine) measure(ctx context.Context, memberID uuid.UUID) (*ClubMetrics, error) {
	sides, err := e.sides.SideSets(ctx, memberID)
	if err != nil {
		return nil, err
	}
	referrals, err := e.members.ReferralsOf(ctx, []uuid.UUID{memberID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referrals")
	}
	team, err := e.teams.Levels(ctx, memberID)
	if err != nil {
		return nil, err
	}
	lifetime, err := e.lifetime.LifetimeTotal(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lifetime payout")
	}

	directLeft, directRight, err := e.volumeBySide(ctx, referrals[memberID], sides)
	if err != nil {
		return nil, err
	}
	deepLeft, deepRight, err := e.volumeBySide(ctx, team.Members(), sides)
	if err != nil {
		return nil, err
	}
	return &ClubMetrics{
		LeftDirectVolume:    directLeft,
		RightDirectVolume:   directRight,
		LeftInfinityVolume:  deepLeft,
		RightInfinityVolume: deepRight,
		LifetimePayout:      lifetime,
	}, nil
}

// volumeBySide sums business volume of ids per binary leg. Ids outside the
// subtree count for neither side.
func (e *Engine) volumeBySide(ctx context.Context, ids []uuid.UUID, sides *tree.SideSets) (left, right decimal.Decimal, err error) {
	loaded, err := e.members.FindMany(ctx, ids)
	if err != nil {
		return decimal.Zero, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load volumes")
	}
	left, right = decimal.Zero, decimal.Zero
	for _, id := range ids {
		side, ok := sides.SideOf(id)
		if !ok {
			continue
		}
		bv := loaded[id].BusinessVolume
		if side == enums.SideLeft {
			left = left.Add(bv)
		} else {
			right = right.Add(bv)
		}
	}
	return left, right, nil
}

func (e *Engine) loadMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member, err := e.members.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

// EvaluateRank runs a pairing pass and discards the result.
func (e *Engine) EvaluateRank(ctx context.Context, memberID uuid.UUID) error {
	_, err := e.PairRanks(ctx, memberID)
	return err
}

// EvaluateClub runs a club evaluation and discards the result.
func (e *Engine) EvaluateClub(ctx context.Context, memberID uuid.UUID) error {
	_, err := e.AssignClub(ctx, memberID)
	return err
}

// Evaluate runs pairing then club. A pairing failure does not stop the club
// evaluation; both errors are returned together.
func (e *Engine) Evaluate(ctx context.Context, memberID uuid.UUID) error {
	return multierr.Append(e.EvaluateRank(ctx, memberID), e.EvaluateClub(ctx, memberID))
}

// SweepReport summarizes a pass over all active members.
type SweepReport struct {
	Evaluated int
	Failed    int
	Err       error
}

// Sweep evaluates every active member. One member's failure is logged and
// collected in the report without stopping the rest; only failing to list
// members aborts the sweep.
func (e *Engine) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	after := uuid.Nil
	for {
		ids, err := e.members.ListActiveIDs(ctx, after, sweepPageSize)
		if err != nil {
			return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active members")
		}
		for _, id := range ids {
			report.Evaluated++
			if err := e.Evaluate(ctx, id); err != nil {
				report.Failed++
				report.Err = multierr.Append(report.Err, fmt.Errorf("member %s: %w", id, err))
				e.logg.Error(e.logg.WithMemberID(ctx, id.String()), "rank sweep evaluation failed", err)
			}
		}
		if len(ids) < sweepPageSize {
			return report, nil
		}
		after = ids[len(ids)-1]
	}
}
