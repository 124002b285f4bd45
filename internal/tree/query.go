package tree

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
)

const defaultSnapshotDepth = 8

// Snapshot is one node of a nested tree view with live member metrics.
// Counts cover the whole leg, not just the levels included in the view.
type Snapshot struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Status         enums.MemberStatus `json:"status"`
	Side           *enums.Side        `json:"side,omitempty"`
	PersonalVolume decimal.Decimal    `json:"personal_volume"`
	BusinessVolume decimal.Decimal    `json:"business_volume"`
	Rank           int                `json:"rank"`
	Club           enums.Club         `json:"club"`
	LeftCount      int                `json:"left_count"`
	RightCount     int                `json:"right_count"`
	Left           *Snapshot          `json:"left,omitempty"`
	Right          *Snapshot          `json:"right,omitempty"`
}

// SideSets holds the member ids found in each leg under a member.
type SideSets struct {
	Left  map[uuid.UUID]struct{}
	Right map[uuid.UUID]struct{}
}

// SideOf reports which leg contains id.
func (s SideSets) SideOf(id uuid.UUID) (enums.Side, bool) {
	if _, ok := s.Left[id]; ok {
		return enums.SideLeft, true
	}
	if _, ok := s.Right[id]; ok {
		return enums.SideRight, true
	}
	return "", false
}

// Query answers read-only questions about the binary structure.
type Query struct {
	repo          Repository
	maxDepth      int
	snapshotDepth int
}

// NewQuery wires the query engine. maxDepth bounds every walk; snapshotDepth
// caps how many levels BuildTree nests.
func NewQuery(repo Repository, maxDepth, snapshotDepth int) (*Query, error) {
	if repo == nil {
		return nil, errors.New("tree repository required")
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if snapshotDepth <= 0 {
		snapshotDepth = defaultSnapshotDepth
	}
	return &Query{repo: repo, maxDepth: maxDepth, snapshotDepth: snapshotDepth}, nil
}

// subtree is the result of one bounded breadth-first walk. order lists ids in
// visit order so parents always precede children.
type subtree struct {
	rootID uuid.UUID
	nodes  map[uuid.UUID]models.TreeNode
	level  map[uuid.UUID]int
	leg    map[uuid.UUID]enums.Side
	order  []uuid.UUID
}

// walk loads the subtree under rootID level by level. A node reached twice,
// a child whose parent pointer disagrees, or a pointer to a missing node is
// reported as an integrity error.
func (q *Query) walk(ctx context.Context, rootID uuid.UUID) (*subtree, error) {
	root, err := q.repo.Get(ctx, rootID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not placed in tree")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tree root")
	}

	st := &subtree{
		rootID: rootID,
		nodes:  map[uuid.UUID]models.TreeNode{rootID: *root},
		level:  map[uuid.UUID]int{rootID: 0},
		leg:    map[uuid.UUID]enums.Side{},
		order:  []uuid.UUID{rootID},
	}

	frontier := []uuid.UUID{rootID}
	for depth := 1; len(frontier) > 0; depth++ {
		type edge struct {
			parent uuid.UUID
			side   enums.Side
			child  uuid.UUID
		}
		var edges []edge
		for _, id := range frontier {
			node := st.nodes[id]
			for _, side := range []enums.Side{enums.SideLeft, enums.SideRight} {
				if child := node.Child(side); child != nil {
					edges = append(edges, edge{parent: id, side: side, child: *child})
				}
			}
		}
		if len(edges) == 0 {
			break
		}
		if depth > q.maxDepth {
			return nil, integrityError("tree deeper than traversal bound", map[string]any{"root_id": rootID.String(), "max_depth": q.maxDepth})
		}

		ids := make([]uuid.UUID, 0, len(edges))
		for _, e := range edges {
			if _, seen := st.nodes[e.child]; seen {
				return nil, integrityError("cycle detected", map[string]any{"node_id": e.child.String()})
			}
			ids = append(ids, e.child)
		}
		loaded, err := q.repo.GetMany(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tree level")
		}

		frontier = frontier[:0]
		for _, e := range edges {
			child, ok := loaded[e.child]
			if !ok {
				return nil, integrityError("slot references missing node", map[string]any{
					"node_id":  e.parent.String(),
					"side":     e.side.String(),
					"child_id": e.child.String(),
				})
			}
			if _, seen := st.nodes[e.child]; seen {
				return nil, integrityError("cycle detected", map[string]any{"node_id": e.child.String()})
			}
			if child.ParentID == nil || *child.ParentID != e.parent || child.Side == nil || *child.Side != e.side {
				return nil, integrityError("child parent pointer mismatch", map[string]any{"node_id": e.child.String()})
			}
			st.nodes[e.child] = child
			st.level[e.child] = depth
			if e.parent == rootID {
				st.leg[e.child] = e.side
			} else {
				st.leg[e.child] = st.leg[e.parent]
			}
			st.order = append(st.order, e.child)
			frontier = append(frontier, e.child)
		}
	}
	return st, nil
}

// CollectDescendants returns every member below startID in the binary tree.
func (q *Query) CollectDescendants(ctx context.Context, startID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	st, err := q.walk(ctx, startID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]struct{}, len(st.order)-1)
	for _, id := range st.order[1:] {
		out[id] = struct{}{}
	}
	return out, nil
}

// SideSets splits the full subtree under memberID by leg.
func (q *Query) SideSets(ctx context.Context, memberID uuid.UUID) (*SideSets, error) {
	st, err := q.walk(ctx, memberID)
	if err != nil {
		return nil, err
	}
	sets := &SideSets{Left: map[uuid.UUID]struct{}{}, Right: map[uuid.UUID]struct{}{}}
	for id, side := range st.leg {
		if side == enums.SideLeft {
			sets.Left[id] = struct{}{}
		} else {
			sets.Right[id] = struct{}{}
		}
	}
	return sets, nil
}

// BuildTree returns the nested view rooted at rootID, nesting at most depth
// levels below the root.
func (q *Query) BuildTree(ctx context.Context, rootID uuid.UUID, depth int) (*Snapshot, error) {
	if depth <= 0 || depth > q.snapshotDepth {
		depth = q.snapshotDepth
	}

	st, err := q.walk(ctx, rootID)
	if err != nil {
		return nil, err
	}

	// Descendant counts, children before parents.
	size := make(map[uuid.UUID]int, len(st.order))
	for i := len(st.order) - 1; i >= 0; i-- {
		node := st.nodes[st.order[i]]
		total := 1
		for _, child := range []*uuid.UUID{node.LeftID, node.RightID} {
			if child != nil {
				total += size[*child]
			}
		}
		size[node.ID] = total
	}

	var visible []uuid.UUID
	for _, id := range st.order {
		if st.level[id] <= depth {
			visible = append(visible, id)
		}
	}
	members, err := q.repo.MembersByIDs(ctx, visible)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member metrics")
	}

	snapshots := make(map[uuid.UUID]*Snapshot, len(visible))
	for _, id := range visible {
		node := st.nodes[id]
		member, ok := members[id]
		if !ok {
			return nil, integrityError("tree node without member record", map[string]any{"node_id": id.String()})
		}
		snap := &Snapshot{
			ID:             id,
			Name:           member.Name,
			Status:         member.Status,
			Side:           node.Side,
			PersonalVolume: member.PersonalVolume,
			BusinessVolume: member.BusinessVolume,
			Rank:           member.Rank,
			Club:           member.Club,
		}
		if node.LeftID != nil {
			snap.LeftCount = size[*node.LeftID]
		}
		if node.RightID != nil {
			snap.RightCount = size[*node.RightID]
		}
		snapshots[id] = snap

		if id == rootID {
			continue
		}
		parent := snapshots[*node.ParentID]
		if *node.Side == enums.SideLeft {
			parent.Left = snap
		} else {
			parent.Right = snap
		}
	}
	return snapshots[rootID], nil
}

// SearchDownline returns the view rooted at targetID only when the target is
// the viewer or lies inside the viewer's downline.
func (q *Query) SearchDownline(ctx context.Context, viewerID, targetID uuid.UUID, depth int) (*Snapshot, error) {
	if viewerID != targetID {
		downline, err := q.CollectDescendants(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if _, ok := downline[targetID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "member is outside the requester's downline")
		}
	}
	return q.BuildTree(ctx, targetID, depth)
}
