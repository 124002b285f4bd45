package wallets

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/internal/testdb"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(testdb.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestLookupMissingWalletIsEmptyStatus(t *testing.T) {
	svc := newTestService(t)
	id := uuid.New()

	status, err := svc.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, status.MemberID)
	assert.False(t, status.HasDestination)
	assert.False(t, status.IdentityVerified)
}

func TestUpdateThenLookup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := uuid.New()
	dest := "  acct-991  "

	_, err := svc.Update(ctx, UpdateInput{MemberID: id, PayoutDestination: &dest})
	require.NoError(t, err)

	status, err := svc.Lookup(ctx, id)
	require.NoError(t, err)
	assert.True(t, status.HasDestination)
	assert.Equal(t, "acct-991", *status.PayoutDestination)
	assert.False(t, status.IdentityVerified)

	_, err = svc.Update(ctx, UpdateInput{MemberID: id, IdentityVerified: true})
	require.NoError(t, err)

	status, err = svc.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, status.HasDestination)
	assert.True(t, status.IdentityVerified)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
