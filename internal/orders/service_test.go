package orders

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/testdb"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type stubEvaluator struct {
	ranks []uuid.UUID
	clubs []uuid.UUID
}

func (s *stubEvaluator) EvaluateRank(ctx context.Context, memberID uuid.UUID) error {
	s.ranks = append(s.ranks, memberID)
	return nil
}

func (s *stubEvaluator) EvaluateClub(ctx context.Context, memberID uuid.UUID) error {
	s.clubs = append(s.clubs, memberID)
	return nil
}

type stubOwners struct {
	owners map[uuid.UUID][]uuid.UUID
	err    error
}

func (s *stubOwners) OwnersOf(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error) {
	return s.owners[memberID], s.err
}

type orderFixture struct {
	conn      *gorm.DB
	svc       Service
	repo      Repository
	members   members.Repository
	evaluator *stubEvaluator
	owners    *stubOwners
	now       time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	conn := testdb.Open(t)
	f := &orderFixture{
		conn:      conn,
		repo:      NewRepository(conn),
		members:   members.NewRepository(conn),
		evaluator: &stubEvaluator{},
		owners:    &stubOwners{owners: map[uuid.UUID][]uuid.UUID{}},
		now:       time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		TxRunner:  db.Wrap(conn),
		Repo:      f.repo,
		Members:   f.members,
		Evaluator: f.evaluator,
		Owners:    f.owners,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		Now:       func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *orderFixture) member(t *testing.T, sponsor *uuid.UUID) uuid.UUID {
	t.Helper()
	m := &models.Member{
		ID:            uuid.New(),
		Name:          "member",
		Status:        enums.MemberStatusActive,
		SponsorID:     sponsor,
		PreferredSide: enums.SideLeft,
		Club:          enums.ClubNone,
	}
	require.NoError(t, f.members.Create(context.Background(), m))
	return m.ID
}

func (f *orderFixture) order(t *testing.T, payer uuid.UUID, volume int64) *OrderDTO {
	t.Helper()
	dto, err := f.svc.Create(context.Background(), CreateInput{
		PayerID:        payer,
		Amount:         decimal.NewFromInt(volume * 2),
		Volume:         decimal.NewFromInt(volume),
		BusinessVolume: decimal.NewFromInt(volume / 2),
	})
	require.NoError(t, err)
	return dto
}

func TestCreate_ReferrerIsPayerSponsor(t *testing.T) {
	f := newOrderFixture(t)
	sponsor := f.member(t, nil)
	payer := f.member(t, &sponsor)

	dto := f.order(t, payer, 100)
	require.NotNil(t, dto.ReferrerID)
	assert.Equal(t, sponsor, *dto.ReferrerID)
	assert.Equal(t, enums.OrderStatusPending, dto.Status)

	_, err := f.svc.Create(context.Background(), CreateInput{PayerID: uuid.New(), Amount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(context.Background(), CreateInput{PayerID: payer, Amount: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestComplete_FirstOrderCreditsAndTriggers(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	sponsor := f.member(t, nil)
	payer := f.member(t, &sponsor)

	first := f.order(t, payer, 100)
	done, err := f.svc.Complete(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, done.Status)
	assert.True(t, done.IsFirstOrder)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, f.now.Equal(*done.CompletedAt))

	stored, err := f.members.FindByID(ctx, payer)
	require.NoError(t, err)
	assert.True(t, stored.PersonalVolume.Equal(decimal.NewFromInt(100)))
	assert.True(t, stored.BusinessVolume.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, stored.FirstOrderAt)

	assert.Equal(t, []uuid.UUID{sponsor}, f.evaluator.ranks)
	assert.Equal(t, []uuid.UUID{sponsor}, f.evaluator.clubs)

	again, err := f.svc.Complete(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, done.ID, again.ID)
	assert.Len(t, f.evaluator.clubs, 1)

	stored, err = f.members.FindByID(ctx, payer)
	require.NoError(t, err)
	assert.True(t, stored.PersonalVolume.Equal(decimal.NewFromInt(100)))

	repeat := f.order(t, payer, 40)
	repeatDone, err := f.svc.Complete(ctx, repeat.ID)
	require.NoError(t, err)
	assert.False(t, repeatDone.IsFirstOrder)
	assert.Len(t, f.evaluator.ranks, 1)
	assert.Len(t, f.evaluator.clubs, 2)
}

func TestComplete_EvaluatesUplineClubs(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	owner := f.member(t, nil)
	sponsor := f.member(t, &owner)
	payer := f.member(t, &sponsor)
	f.owners.owners[payer] = []uuid.UUID{sponsor, owner}

	dto := f.order(t, payer, 100)
	_, err := f.svc.Complete(ctx, dto.ID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{sponsor, owner}, f.evaluator.clubs)
	assert.NotContains(t, f.evaluator.clubs, payer)
}

func TestComplete_OwnerLookupFailureStillEvaluatesReferrer(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	sponsor := f.member(t, nil)
	payer := f.member(t, &sponsor)
	f.owners.err = errors.New("db down")

	dto := f.order(t, payer, 100)
	done, err := f.svc.Complete(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, done.Status)
	assert.Equal(t, []uuid.UUID{sponsor}, f.evaluator.clubs)
}

func TestComplete_CanceledAndMissing(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	payer := f.member(t, nil)
	dto := f.order(t, payer, 10)

	canceled, err := f.svc.Cancel(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)

	_, err = f.svc.Complete(ctx, dto.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Complete(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepository_WindowAndBonusFlags(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	payer := f.member(t, nil)

	inside := f.order(t, payer, 10)
	_, err := f.svc.Complete(ctx, inside.ID)
	require.NoError(t, err)

	f.now = f.now.Add(12 * time.Hour)
	outside := f.order(t, payer, 10)
	_, err = f.svc.Complete(ctx, outside.ID)
	require.NoError(t, err)

	from := time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC)
	rows, err := f.repo.ListCompletedBetween(ctx, from, from.Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, inside.ID, rows[0].ID)

	ok, err := f.repo.MarkBonusPaid(ctx, inside.ID, enums.BonusTypeDirect, f.now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.repo.MarkBonusPaid(ctx, inside.ID, enums.BonusTypeDirect, f.now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.repo.MarkBonusPaid(ctx, inside.ID, enums.BonusTypeRank, f.now)
	assert.Error(t, err)

	stored, err := f.repo.FindByID(ctx, inside.ID)
	require.NoError(t, err)
	assert.True(t, BonusPaid(*stored, enums.BonusTypeDirect))
	assert.False(t, BonusPaid(*stored, enums.BonusTypeInfinity))
}
