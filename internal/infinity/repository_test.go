package infinity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/testdb"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

func TestLockOwnerTakesRowLockOnPostgres(t *testing.T) {
	conn, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=mlm dbname=mlm sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	owner := uuid.New()
	sql := conn.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return lockOwner(tx, owner)
	})
	assert.Contains(t, sql, `FROM "members"`)
	assert.Contains(t, sql, "FOR UPDATE")
	assert.Contains(t, sql, owner.String())
}

func TestReplaceOwnerRequiresOwnerAndReplaces(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	memberRepo := members.NewRepository(conn)
	ctx := context.Background()

	err := repo.ReplaceOwner(ctx, uuid.New(), nil)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	owner := &models.Member{ID: uuid.New(), Name: "owner", Status: enums.MemberStatusActive, PreferredSide: enums.SideLeft, Club: enums.ClubNone}
	require.NoError(t, memberRepo.Create(ctx, owner))
	member := uuid.New()
	rows := func() []models.InfinityMember {
		return []models.InfinityMember{{ID: uuid.New(), OwnerID: owner.ID, MemberID: member, Level: 1}}
	}

	require.NoError(t, repo.ReplaceOwner(ctx, owner.ID, rows()))
	require.NoError(t, repo.ReplaceOwner(ctx, owner.ID, rows()))

	stored, err := repo.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	owners, err := repo.OwnersOf(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{owner.ID}, owners)
}
