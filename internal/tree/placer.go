package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
)

const defaultMaxDepth = 512

// PlaceInput describes a new member joining under a sponsor.
type PlaceInput struct {
	MemberID  uuid.UUID
	SponsorID *uuid.UUID
	Side      enums.Side
}

// Placement is the slot a member ended up in. ParentID and Side are nil for
// the root.
type Placement struct {
	MemberID uuid.UUID
	ParentID *uuid.UUID
	Side     *enums.Side
	Depth    int
}

// Placer finds the deepest vacancy on the sponsor's preferred side and claims it.
type Placer struct {
	repo     Repository
	maxDepth int
}

// NewPlacer wires a placement engine. maxDepth bounds the slot walk.
func NewPlacer(repo Repository, maxDepth int) (*Placer, error) {
	if repo == nil {
		return nil, errors.New("tree repository required")
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Placer{repo: repo, maxDepth: maxDepth}, nil
}

// WithTx returns a placer whose reads and writes run on tx.
func (p *Placer) WithTx(tx *gorm.DB) *Placer {
	return &Placer{repo: p.repo.WithTx(tx), maxDepth: p.maxDepth}
}

// Place inserts the member. An empty tree makes the member root; otherwise the
// walk follows only the preferred side from the sponsor's node. Each claim is a
// conditional write, and a lost race continues one level deeper.
func (p *Placer) Place(ctx context.Context, in PlaceInput) (*Placement, error) {
	if in.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}

	count, err := p.repo.Count(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tree nodes")
	}
	if count == 0 {
		return p.placeRoot(ctx, in.MemberID)
	}

	if in.SponsorID == nil || *in.SponsorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sponsor id is required once the tree has a root")
	}
	if !in.Side.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "side must be left or right")
	}

	current, err := p.repo.Get(ctx, *in.SponsorID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, integrityError("sponsor node missing", map[string]any{"sponsor_id": in.SponsorID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor node")
	}

	for depth := 1; depth <= p.maxDepth; depth++ {
		child := current.Child(in.Side)
		if child == nil {
			claimed, err := p.repo.ClaimSlot(ctx, current.ID, in.Side, in.MemberID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim slot")
			}
			if claimed {
				return p.attach(ctx, current.ID, in.Side, in.MemberID, depth)
			}

			reloaded, err := p.repo.Get(ctx, current.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload contended node")
			}
			child = reloaded.Child(in.Side)
			if child == nil {
				return nil, integrityError("slot claim rejected while slot is empty", map[string]any{"node_id": current.ID.String()})
			}
		}

		next, err := p.repo.Get(ctx, *child)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, integrityError("slot references missing node", map[string]any{
					"node_id":  current.ID.String(),
					"side":     in.Side.String(),
					"child_id": child.String(),
				})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load child node")
		}
		current = next
	}

	return nil, integrityError(fmt.Sprintf("no vacancy within %d levels", p.maxDepth), map[string]any{"sponsor_id": in.SponsorID.String()})
}

func (p *Placer) placeRoot(ctx context.Context, memberID uuid.UUID) (*Placement, error) {
	node := &models.TreeNode{ID: memberID, Status: enums.MemberStatusActive}
	if err := p.repo.Create(ctx, node); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tree root already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create root node")
	}
	if err := p.repo.MirrorPlacement(ctx, nil, nil, memberID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror root placement")
	}
	return &Placement{MemberID: memberID}, nil
}

func (p *Placer) attach(ctx context.Context, parentID uuid.UUID, side enums.Side, memberID uuid.UUID, depth int) (*Placement, error) {
	parent := parentID
	slot := side
	node := &models.TreeNode{
		ID:       memberID,
		ParentID: &parent,
		Side:     &slot,
		Status:   enums.MemberStatusActive,
	}
	if err := p.repo.Create(ctx, node); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "member already placed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tree node")
	}
	if err := p.repo.MirrorPlacement(ctx, &parent, &slot, memberID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror placement")
	}
	return &Placement{MemberID: memberID, ParentID: &parent, Side: &slot, Depth: depth}, nil
}

func integrityError(message string, details map[string]any) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, message).WithDetails(details)
}
