package tree

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/testdb"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
)

type fixture struct {
	t      *testing.T
	conn   *gorm.DB
	repo   Repository
	placer *Placer
	query  *Query
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	placer, err := NewPlacer(repo, 64)
	require.NoError(t, err)
	query, err := NewQuery(repo, 64, 4)
	require.NoError(t, err)
	return &fixture{t: t, conn: conn, repo: repo, placer: placer, query: query}
}

func (f *fixture) member(name string) uuid.UUID {
	f.t.Helper()
	id := uuid.New()
	require.NoError(f.t, f.conn.Create(&models.Member{
		ID:            id,
		Name:          name,
		Status:        enums.MemberStatusActive,
		PreferredSide: enums.SideLeft,
		Club:          enums.ClubNone,
	}).Error)
	return id
}

func (f *fixture) place(name string, sponsor *uuid.UUID, side enums.Side) uuid.UUID {
	f.t.Helper()
	id := f.member(name)
	_, err := f.placer.Place(context.Background(), PlaceInput{MemberID: id, SponsorID: sponsor, Side: side})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) node(id uuid.UUID) models.TreeNode {
	f.t.Helper()
	node, err := f.repo.Get(context.Background(), id)
	require.NoError(f.t, err)
	return *node
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestPlace_EmptyTreeMakesRoot(t *testing.T) {
	f := newFixture(t)
	m1 := f.member("M1")

	placement, err := f.placer.Place(context.Background(), PlaceInput{MemberID: m1, Side: enums.SideLeft})
	require.NoError(t, err)
	assert.Nil(t, placement.ParentID)
	assert.Nil(t, placement.Side)

	root := f.node(m1)
	assert.Nil(t, root.ParentID)
	assert.Nil(t, root.LeftID)
	assert.Nil(t, root.RightID)
}

func TestPlace_WalksSingleSide(t *testing.T) {
	f := newFixture(t)
	m1 := f.place("M1", nil, enums.SideLeft)
	m2 := f.place("M2", &m1, enums.SideLeft)
	m3 := f.place("M3", &m1, enums.SideLeft)

	root := f.node(m1)
	require.NotNil(t, root.LeftID)
	assert.Equal(t, m2, *root.LeftID)
	assert.Nil(t, root.RightID)

	second := f.node(m2)
	require.NotNil(t, second.LeftID)
	assert.Equal(t, m3, *second.LeftID)

	third := f.node(m3)
	require.NotNil(t, third.ParentID)
	assert.Equal(t, m2, *third.ParentID)
	assert.Equal(t, enums.SideLeft, *third.Side)

	var mirrored models.Member
	require.NoError(t, f.conn.First(&mirrored, "id = ?", m2).Error)
	require.NotNil(t, mirrored.LeftID)
	assert.Equal(t, m3, *mirrored.LeftID)
	require.NotNil(t, mirrored.ParentID)
	assert.Equal(t, m1, *mirrored.ParentID)
	assert.Equal(t, enums.SideLeft, *mirrored.PlacementSide)
}

func TestPlace_SidesAreIndependent(t *testing.T) {
	f := newFixture(t)
	m1 := f.place("M1", nil, enums.SideLeft)
	m2 := f.place("M2", &m1, enums.SideLeft)
	m3 := f.place("M3", &m1, enums.SideRight)
	m4 := f.place("M4", &m2, enums.SideRight)

	root := f.node(m1)
	assert.Equal(t, m2, *root.LeftID)
	assert.Equal(t, m3, *root.RightID)
	assert.Equal(t, m4, *f.node(m2).RightID)
}

func TestPlace_RequiresSponsorOnceRooted(t *testing.T) {
	f := newFixture(t)
	f.place("M1", nil, enums.SideLeft)

	_, err := f.placer.Place(context.Background(), PlaceInput{MemberID: f.member("M2"), Side: enums.SideLeft})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestPlace_MissingSponsorIsIntegrityError(t *testing.T) {
	f := newFixture(t)
	f.place("M1", nil, enums.SideLeft)
	ghost := uuid.New()

	_, err := f.placer.Place(context.Background(), PlaceInput{MemberID: f.member("M2"), SponsorID: &ghost, Side: enums.SideLeft})
	requireCode(t, err, pkgerrors.CodeIntegrity)
}

func TestPlace_DanglingSlotIsNotRepaired(t *testing.T) {
	f := newFixture(t)
	m1 := f.place("M1", nil, enums.SideLeft)
	ghost := uuid.New()
	require.NoError(t, f.conn.Model(&models.TreeNode{}).Where("id = ?", m1).UpdateColumn("left_id", ghost).Error)

	_, err := f.placer.Place(context.Background(), PlaceInput{MemberID: f.member("M2"), SponsorID: &m1, Side: enums.SideLeft})
	requireCode(t, err, pkgerrors.CodeIntegrity)

	root := f.node(m1)
	assert.Equal(t, ghost, *root.LeftID)
	count, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPlace_DepthBound(t *testing.T) {
	f := newFixture(t)
	m1 := f.place("M1", nil, enums.SideLeft)
	f.place("M2", &m1, enums.SideLeft)

	shallow, err := NewPlacer(f.repo, 1)
	require.NoError(t, err)
	_, err = shallow.Place(context.Background(), PlaceInput{MemberID: f.member("M3"), SponsorID: &m1, Side: enums.SideLeft})
	requireCode(t, err, pkgerrors.CodeIntegrity)
}

// racingRepository lets a competing writer take the first empty slot between
// the placer's read and its conditional write.
type racingRepository struct {
	Repository
	competitor uuid.UUID
	raced      bool
}

func (r *racingRepository) ClaimSlot(ctx context.Context, parentID uuid.UUID, side enums.Side, childID uuid.UUID) (bool, error) {
	if !r.raced {
		r.raced = true
		ok, err := r.Repository.ClaimSlot(ctx, parentID, side, r.competitor)
		if err != nil || !ok {
			return ok, err
		}
		parent, slot := parentID, side
		if err := r.Repository.Create(ctx, &models.TreeNode{ID: r.competitor, ParentID: &parent, Side: &slot, Status: enums.MemberStatusActive}); err != nil {
			return false, err
		}
	}
	return r.Repository.ClaimSlot(ctx, parentID, side, childID)
}

func TestPlace_LostRaceRetriesDeeper(t *testing.T) {
	f := newFixture(t)
	m1 := f.place("M1", nil, enums.SideLeft)
	competitor := f.member("competitor")

	racing := &racingRepository{Repository: f.repo, competitor: competitor}
	placer, err := NewPlacer(racing, 16)
	require.NoError(t, err)

	loser := f.member("loser")
	placement, err := placer.Place(context.Background(), PlaceInput{MemberID: loser, SponsorID: &m1, Side: enums.SideLeft})
	require.NoError(t, err)
	assert.Equal(t, competitor, *placement.ParentID)
	assert.Equal(t, 2, placement.Depth)

	assert.Equal(t, competitor, *f.node(m1).LeftID)
	assert.Equal(t, loser, *f.node(competitor).LeftID)
}

func TestPlace_RandomInsertionsKeepValidTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	ids := []uuid.UUID{f.place("root", nil, enums.SideLeft)}
	for i := 0; i < 40; i++ {
		sponsor := ids[rng.Intn(len(ids))]
		side := enums.SideLeft
		if rng.Intn(2) == 1 {
			side = enums.SideRight
		}
		id := f.place("m", &sponsor, side)
		ids = append(ids, id)

		// Following only the chosen side from the sponsor must land on the new
		// node, and the new node's own slot on that side must be empty.
		cursor := f.node(sponsor)
		for cursor.Child(side) != nil && *cursor.Child(side) != id {
			cursor = f.node(*cursor.Child(side))
		}
		require.NotNil(t, cursor.Child(side))
		assert.Nil(t, f.node(id).Child(side))
	}

	var nodes []models.TreeNode
	require.NoError(t, f.conn.WithContext(ctx).Find(&nodes).Error)
	require.Len(t, nodes, len(ids))

	parents := map[uuid.UUID]uuid.UUID{}
	roots := 0
	for _, node := range nodes {
		if node.ParentID == nil {
			roots++
			continue
		}
		parent := f.node(*node.ParentID)
		require.NotNil(t, parent.Child(*node.Side))
		assert.Equal(t, node.ID, *parent.Child(*node.Side))
		for _, child := range []*uuid.UUID{node.LeftID, node.RightID} {
			if child == nil {
				continue
			}
			_, dup := parents[*child]
			assert.False(t, dup, "node has two parents")
			parents[*child] = node.ID
		}
	}
	assert.Equal(t, 1, roots)

	descendants, err := f.query.CollectDescendants(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, descendants, len(ids)-1)
}
