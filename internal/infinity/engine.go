package infinity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Level is one depth of an owner's infinity team.
type Level struct {
	Level     int         `json:"level"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// Team is an owner's full leveled infinity list.
type Team struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Levels  []Level   `json:"levels"`
}

// Size counts members across all levels.
func (t *Team) Size() int {
	n := 0
	for _, lvl := range t.Levels {
		n += len(lvl.MemberIDs)
	}
	return n
}

// Members flattens the team into one id list, shallowest level first.
func (t *Team) Members() []uuid.UUID {
	out := make([]uuid.UUID, 0, t.Size())
	for _, lvl := range t.Levels {
		out = append(out, lvl.MemberIDs...)
	}
	return out
}

// EngineParams groups the infinity engine dependencies.
type EngineParams struct {
	TxRunner txRunner
	Repo     Repository
	Members  members.Repository
	MaxDepth int
	Logger   *logger.Logger
}

// Engine derives infinity teams from referral order.
type Engine struct {
	tx       txRunner
	repo     Repository
	members  members.Repository
	maxDepth int
	logg     *logger.Logger
}

func NewEngine(params EngineParams) (*Engine, error) {
	switch {
	case params.TxRunner == nil:
		return nil, errors.New("tx runner required")
	case params.Repo == nil:
		return nil, errors.New("infinity repository required")
	case params.Members == nil:
		return nil, errors.New("members repository required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.MaxDepth <= 0:
		return nil, errors.New("max depth must be positive")
	}
	return &Engine{
		tx:       params.TxRunner,
		repo:     params.Repo,
		members:  params.Members,
		maxDepth: params.MaxDepth,
		logg:     params.Logger,
	}, nil
}

// Rebuild clears and recomputes the owner's infinity list in one transaction
// and points each level-1 member's infinity sponsor at the owner.
func (e *Engine) Rebuild(ctx context.Context, ownerID uuid.UUID) (*Team, error) {
	var team *Team
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		memberRepo := e.members.WithTx(tx)
		owner, err := memberRepo.FindByID(ctx, ownerID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owner")
		}

		team, err = e.compute(ctx, memberRepo, *owner)
		if err != nil {
			return err
		}

		rows := make([]models.InfinityMember, 0, team.Size())
		for _, lvl := range team.Levels {
			for _, id := range lvl.MemberIDs {
				rows = append(rows, models.InfinityMember{
					ID:       uuid.New(),
					OwnerID:  ownerID,
					MemberID: id,
					Level:    lvl.Level,
				})
			}
		}
		if err := e.repo.WithTx(tx).ReplaceOwner(ctx, ownerID, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace infinity list")
		}
		if len(team.Levels) > 0 {
			if err := memberRepo.SetInfinitySponsor(ctx, team.Levels[0].MemberIDs, ownerID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set infinity sponsor")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// compute walks the referral lists level by level. Level 1 is what the owner
// keeps plus what each direct referral rolls up; every deeper level is the
// union of the previous level's own claims. Members already placed are
// skipped so each member sits on exactly one level.
func (e *Engine) compute(ctx context.Context, repo members.Repository, owner models.Member) (*Team, error) {
	team := &Team{OwnerID: owner.ID}
	seen := map[uuid.UUID]struct{}{owner.ID: {}}

	frontier := []models.Member{owner}
	for depth := 1; len(frontier) > 0; depth++ {
		claims, err := e.claims(ctx, repo, frontier)
		if err != nil {
			return nil, err
		}

		var level []uuid.UUID
		for _, id := range claims {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			level = append(level, id)
		}
		if len(level) == 0 {
			break
		}
		if depth > e.maxDepth {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "infinity depth bound exceeded").
				WithDetails(map[string]any{"owner_id": owner.ID.String(), "max_depth": e.maxDepth})
		}
		team.Levels = append(team.Levels, Level{Level: depth, MemberIDs: level})

		loaded, err := repo.FindMany(ctx, level)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load infinity level")
		}
		next := make([]models.Member, 0, len(level))
		for _, id := range level {
			member, ok := loaded[id]
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "referral points at missing member").
					WithDetails(map[string]any{"owner_id": owner.ID.String(), "member_id": id.String()})
			}
			next = append(next, member)
		}
		frontier = next
	}
	return team, nil
}

// claims returns, in order, the ids each frontier member claims for its own
// first level.
func (e *Engine) claims(ctx context.Context, repo members.Repository, frontier []models.Member) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(frontier))
	for _, m := range frontier {
		ids = append(ids, m.ID)
	}
	referrals, err := repo.ReferralsOf(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referrals")
	}

	var directs []uuid.UUID
	for _, id := range ids {
		directs = append(directs, referrals[id]...)
	}
	grand, err := repo.ReferralsOf(ctx, directs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load second-line referrals")
	}

	var out []uuid.UUID
	for _, m := range frontier {
		kept, _ := SplitByParity(ReferralSequence(referrals[m.ID]), m.SponsorID != nil)
		out = append(out, kept...)
		for _, direct := range referrals[m.ID] {
			_, rolled := SplitByParity(ReferralSequence(grand[direct]), true)
			out = append(out, rolled...)
		}
	}
	return out, nil
}

// RebuildChain rebuilds memberID and then every sponsor above it.
func (e *Engine) RebuildChain(ctx context.Context, memberID uuid.UUID) error {
	visited := make(map[uuid.UUID]struct{})
	current := &memberID
	for steps := 0; current != nil; steps++ {
		if steps >= e.maxDepth {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "sponsor chain exceeds depth bound").
				WithDetails(map[string]any{"member_id": memberID.String(), "max_depth": e.maxDepth})
		}
		if _, loop := visited[*current]; loop {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "sponsor chain contains a cycle").
				WithDetails(map[string]any{"member_id": current.String()})
		}
		visited[*current] = struct{}{}

		if _, err := e.Rebuild(ctx, *current); err != nil {
			return err
		}
		member, err := e.members.FindByID(ctx, *current)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor chain")
		}
		current = member.SponsorID
	}
	return nil
}

// OwnersOf lists the owners whose infinity team contains memberID, nearest
// level first.
func (e *Engine) OwnersOf(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error) {
	owners, err := e.repo.OwnersOf(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list infinity owners")
	}
	return owners, nil
}

// Levels reads the stored team grouped by level.
func (e *Engine) Levels(ctx context.Context, ownerID uuid.UUID) (*Team, error) {
	if _, err := e.members.FindByID(ctx, ownerID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owner")
	}
	rows, err := e.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list infinity members")
	}
	team := &Team{OwnerID: ownerID}
	for _, row := range rows {
		if n := len(team.Levels); n == 0 || team.Levels[n-1].Level != row.Level {
			team.Levels = append(team.Levels, Level{Level: row.Level})
		}
		last := &team.Levels[len(team.Levels)-1]
		last.MemberIDs = append(last.MemberIDs, row.MemberID)
	}
	return team, nil
}
